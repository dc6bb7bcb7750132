// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

// TripAdvisorClient talks to the TripAdvisor Content API. Ratings are on
// the native 0-5 scale, and the API returns numbers as strings.
type TripAdvisorClient struct {
	api *apiClient
}

func NewTripAdvisorClient(cfg config.PlatformConfig, timeout time.Duration) *TripAdvisorClient {
	return &TripAdvisorClient{api: newAPIClient(cfg, timeout)}
}

func (c *TripAdvisorClient) Platform() models.Platform { return models.PlatformTripAdvisor }

type tripAdvisorDetails struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	Rating     string `json:"rating"`
	NumReviews string `json:"num_reviews"`
}

// FetchScore pulls the current rating for a location ID.
func (c *TripAdvisorClient) FetchScore(ctx context.Context, identifier string) models.FetchResult {
	params := url.Values{}
	params.Set("key", c.api.apiKey)
	params.Set("language", "en")
	reqURL := fmt.Sprintf("%s/api/v1/location/%s/details?%s", c.api.baseURL, identifier, params.Encode())

	var details tripAdvisorDetails
	if err := c.api.getJSON(ctx, reqURL, nil, &details); err != nil {
		if errors.Is(err, errNotFound) {
			return models.NotListed()
		}
		return outcomeFromError(err)
	}

	// Rating and review count arrive as strings.
	rating, err := strconv.ParseFloat(details.Rating, 64)
	if err != nil {
		return models.APIError(fmt.Sprintf("unparseable rating %q", details.Rating))
	}
	reviewCount := 0
	if details.NumReviews != "" {
		if n, err := strconv.Atoi(details.NumReviews); err == nil {
			reviewCount = n
		}
	}

	return models.Found(rating, 5, reviewCount)
}

type tripAdvisorSearchResponse struct {
	Data []struct {
		LocationID string `json:"location_id"`
		Name       string `json:"name"`
		AddressObj struct {
			City          string `json:"city"`
			State         string `json:"state"`
			AddressString string `json:"address_string"`
		} `json:"address_obj"`
	} `json:"data"`
}

// Search finds candidate location IDs for a property.
func (c *TripAdvisorClient) Search(ctx context.Context, name, city, state string) ([]models.AliasCandidate, error) {
	params := url.Values{}
	params.Set("key", c.api.apiKey)
	params.Set("searchQuery", fmt.Sprintf("%s %s %s", name, city, state))
	params.Set("category", "hotels")
	reqURL := fmt.Sprintf("%s/api/v1/location/search?%s", c.api.baseURL, params.Encode())

	var result tripAdvisorSearchResponse
	if err := c.api.getJSON(ctx, reqURL, nil, &result); err != nil {
		return nil, fmt.Errorf("tripadvisor search failed: %w", err)
	}

	candidates := make([]models.AliasCandidate, 0, len(result.Data))
	for _, d := range result.Data {
		location := d.AddressObj.AddressString
		if location == "" {
			location = fmt.Sprintf("%s, %s", d.AddressObj.City, d.AddressObj.State)
		}
		candidates = append(candidates, models.AliasCandidate{
			Identifier: d.LocationID,
			Name:       d.Name,
			Location:   location,
		})
	}
	return candidates, nil
}
