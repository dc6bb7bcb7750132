// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package insights

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/metrics"
)

// gatewayClient talks to the LLM gateway's messages endpoint.
type gatewayClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newGatewayClient(cfg config.InsightsConfig) *gatewayClient {
	return &gatewayClient{
		baseURL: strings.TrimSuffix(cfg.GatewayURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type gatewayRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	Messages  []gatewayMessage `json:"messages"`
}

type gatewayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gatewayResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends one prompt and returns the model's text.
func (c *gatewayClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := gatewayRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []gatewayMessage{
			{Role: "user", Content: prompt},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.InsightsGatewayDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}

	var gwResp gatewayResponse
	if err := json.Unmarshal(body, &gwResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if gwResp.Error != nil {
		return "", fmt.Errorf("gateway error: %s", gwResp.Error.Message)
	}
	if len(gwResp.Content) == 0 {
		return "", fmt.Errorf("empty gateway response")
	}
	return strings.TrimSpace(gwResp.Content[0].Text), nil
}
