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

// KasaClient talks to the first-party guest review service. Scores are
// native 0-10. This is the one adapter every refresh run touches, so the
// registry wraps it in a circuit breaker.
type KasaClient struct {
	api *apiClient
}

func NewKasaClient(cfg config.PlatformConfig, timeout time.Duration) *KasaClient {
	return &KasaClient{api: newAPIClient(cfg, timeout)}
}

func (c *KasaClient) Platform() models.Platform { return models.PlatformKasa }

func (c *KasaClient) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.api.apiKey)
	return h
}

type kasaRating struct {
	PropertyID  string  `json:"property_id"`
	Score       float64 `json:"score"`
	ReviewCount int     `json:"review_count"`
}

// FetchScore pulls the current guest score for a property.
func (c *KasaClient) FetchScore(ctx context.Context, identifier string) models.FetchResult {
	reqURL := fmt.Sprintf("%s/v1/properties/%s/rating", c.api.baseURL, identifier)

	var rating kasaRating
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &rating); err != nil {
		if errors.Is(err, errNotFound) {
			return models.NotListed()
		}
		return outcomeFromError(err)
	}

	return models.Found(rating.Score, 10, rating.ReviewCount)
}

type kasaPropertiesResponse struct {
	Properties []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"properties"`
}

// Search finds property IDs by name and city.
func (c *KasaClient) Search(ctx context.Context, name, city, state string) ([]models.AliasCandidate, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("city", city)
	reqURL := fmt.Sprintf("%s/v1/properties?%s", c.api.baseURL, params.Encode())

	var result kasaPropertiesResponse
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &result); err != nil {
		return nil, fmt.Errorf("kasa search failed: %w", err)
	}

	candidates := make([]models.AliasCandidate, 0, len(result.Properties))
	for _, p := range result.Properties {
		candidates = append(candidates, models.AliasCandidate{
			Identifier: p.ID,
			Name:       p.Name,
			Location:   fmt.Sprintf("%s, %s", p.City, p.State),
		})
	}
	return candidates, nil
}

type kasaReviewsResponse struct {
	Reviews []struct {
		Rating    float64 `json:"rating"`
		Text      string  `json:"text"`
		Author    string  `json:"author"`
		CreatedAt string  `json:"created_at"`
	} `json:"reviews"`
}

// FetchReviews pulls the most recent guest reviews for a property.
func (c *KasaClient) FetchReviews(ctx context.Context, identifier string, limit int) ([]models.Review, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	params.Set("sort", "newest")
	reqURL := fmt.Sprintf("%s/v1/properties/%s/reviews?%s", c.api.baseURL, identifier, params.Encode())

	var result kasaReviewsResponse
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &result); err != nil {
		return nil, fmt.Errorf("kasa reviews fetch failed: %w", err)
	}

	reviews := make([]models.Review, 0, len(result.Reviews))
	for _, r := range result.Reviews {
		reviews = append(reviews, models.Review{
			Platform:  models.PlatformKasa,
			Rating:    r.Rating,
			Text:      r.Text,
			Author:    r.Author,
			CreatedAt: r.CreatedAt,
		})
	}
	return reviews, nil
}
