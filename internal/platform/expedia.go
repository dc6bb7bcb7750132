// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

// ExpediaClient talks to the Expedia content API. Guest ratings are on the
// 0-10 scale, but the response shape is awkward: the top level is an object
// keyed by property ID, and the overall rating is a string.
type ExpediaClient struct {
	api *apiClient
}

func NewExpediaClient(cfg config.PlatformConfig, timeout time.Duration) *ExpediaClient {
	return &ExpediaClient{api: newAPIClient(cfg, timeout)}
}

func (c *ExpediaClient) Platform() models.Platform { return models.PlatformExpedia }

func (c *ExpediaClient) headers() http.Header {
	h := http.Header{}
	h.Set("Api-Key", c.api.apiKey)
	return h
}

type expediaPropertyContent struct {
	PropertyID string `json:"property_id"`
	Name       string `json:"name"`
	Ratings    struct {
		Guest struct {
			Count   int    `json:"count"`
			Overall string `json:"overall"`
		} `json:"guest"`
	} `json:"ratings"`
}

// FetchScore pulls the current guest rating for a property ID.
func (c *ExpediaClient) FetchScore(ctx context.Context, identifier string) models.FetchResult {
	params := url.Values{}
	params.Set("property_id", identifier)
	params.Set("language", "en-US")
	reqURL := fmt.Sprintf("%s/v3/properties/content?%s", c.api.baseURL, params.Encode())

	// Response is an object keyed by property ID, not an array.
	var content map[string]expediaPropertyContent
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &content); err != nil {
		if errors.Is(err, errNotFound) {
			return models.NotListed()
		}
		return outcomeFromError(err)
	}

	prop, ok := content[identifier]
	if !ok {
		return models.NotListed()
	}

	rating, err := strconv.ParseFloat(prop.Ratings.Guest.Overall, 64)
	if err != nil {
		return models.APIError(fmt.Sprintf("unparseable guest rating %q", prop.Ratings.Guest.Overall))
	}

	return models.Found(rating, 10, prop.Ratings.Guest.Count)
}

type expediaSearchResponse struct {
	Properties []struct {
		PropertyID string `json:"property_id"`
		Name       string `json:"name"`
		Address    struct {
			City          string `json:"city"`
			StateProvince string `json:"state_province_code"`
		} `json:"address"`
	} `json:"properties"`
}

// Search finds candidate property IDs by name and location.
func (c *ExpediaClient) Search(ctx context.Context, name, city, state string) ([]models.AliasCandidate, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("city", city)
	params.Set("state_province_code", state)
	reqURL := fmt.Sprintf("%s/v3/properties/search?%s", c.api.baseURL, params.Encode())

	var result expediaSearchResponse
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &result); err != nil {
		return nil, fmt.Errorf("expedia search failed: %w", err)
	}

	candidates := make([]models.AliasCandidate, 0, len(result.Properties))
	for _, p := range result.Properties {
		candidates = append(candidates, models.AliasCandidate{
			Identifier: p.PropertyID,
			Name:       p.Name,
			Location:   fmt.Sprintf("%s, %s", p.Address.City, p.Address.StateProvince),
		})
	}
	return candidates, nil
}
