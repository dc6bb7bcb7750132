// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

// maxErrorBodySize limits the maximum amount of response body read for error
// reporting. Prevents unbounded memory allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// Sentinel errors the adapters translate into fetch outcomes.
var (
	errRateLimited = errors.New("rate limit exceeded")
	errNotFound    = errors.New("not found")
)

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// apiClient is the shared HTTP layer under every platform adapter.
// It handles timeouts, HTTP 429 backoff, and JSON decoding; the adapters
// only differ in URLs, auth headers, and response shapes.
type apiClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

func newAPIClient(cfg config.PlatformConfig, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     5,               // Allow up to 5 retries for rate limiting
		retryBaseDelay: 1 * time.Second, // Start with 1 second, doubles each retry
	}
}

// doRequestWithRateLimit performs an HTTP request with automatic rate limit
// handling. Implements exponential backoff for HTTP 429 responses
// (1s, 2s, 4s, 8s, 16s), honoring Retry-After when present.
// The context is used for cancellation during backoff waits.
func (c *apiClient) doRequestWithRateLimit(ctx context.Context, method, reqURL string, header http.Header, body []byte) (*http.Response, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var reqBody io.Reader = http.NoBody
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
		if body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited (HTTP 429): close body and retry with backoff
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			return nil, fmt.Errorf("%w after %d retries (HTTP 429)", errRateLimited, c.maxRetries)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Check for Retry-After header (RFC 6585)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, errRateLimited
}

// getJSON performs a GET and decodes the response into result.
// A 404 maps to errNotFound so adapters can report confirmed absence.
func (c *apiClient) getJSON(ctx context.Context, reqURL string, header http.Header, result interface{}) error {
	return c.requestJSON(ctx, http.MethodGet, reqURL, header, nil, result)
}

// postJSON performs a POST with a JSON body and decodes the response.
func (c *apiClient) postJSON(ctx context.Context, reqURL string, header http.Header, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.requestJSON(ctx, http.MethodPost, reqURL, header, body, result)
}

func (c *apiClient) requestJSON(ctx context.Context, method, reqURL string, header http.Header, body []byte, result interface{}) error {
	resp, err := c.doRequestWithRateLimit(ctx, method, reqURL, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		errBody := readBodyForError(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// outcomeFromError translates a transport error into the uniform fetch
// outcome taxonomy. Confirmed absence is handled by the adapters before
// this point; everything arriving here is a failure of some kind.
func outcomeFromError(err error) models.FetchResult {
	var netErr net.Error
	switch {
	case errors.Is(err, errRateLimited):
		return models.RateLimited(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return models.Timeout(err.Error())
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.Timeout(err.Error())
	default:
		return models.APIError(err.Error())
	}
}
