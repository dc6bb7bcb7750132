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
	"strings"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

// GoogleClient talks to the Google Places API (v1). Ratings are on the
// native 0-5 scale.
type GoogleClient struct {
	api *apiClient
}

func NewGoogleClient(cfg config.PlatformConfig, timeout time.Duration) *GoogleClient {
	return &GoogleClient{api: newAPIClient(cfg, timeout)}
}

func (c *GoogleClient) Platform() models.Platform { return models.PlatformGoogle }

func (c *GoogleClient) headers(fieldMask string) http.Header {
	h := http.Header{}
	h.Set("X-Goog-Api-Key", c.api.apiKey)
	h.Set("X-Goog-FieldMask", fieldMask)
	return h
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string  `json:"formattedAddress"`
	Rating           float64 `json:"rating"`
	UserRatingCount  int     `json:"userRatingCount"`
	Reviews          []struct {
		Rating int `json:"rating"`
		Text   struct {
			Text string `json:"text"`
		} `json:"text"`
		AuthorAttribution struct {
			DisplayName string `json:"displayName"`
		} `json:"authorAttribution"`
		PublishTime string `json:"publishTime"`
	} `json:"reviews"`
}

// FetchScore pulls the current rating for a place ID.
func (c *GoogleClient) FetchScore(ctx context.Context, identifier string) models.FetchResult {
	reqURL := fmt.Sprintf("%s/v1/places/%s", c.api.baseURL, identifier)

	var place googlePlace
	if err := c.api.getJSON(ctx, reqURL, c.headers("rating,userRatingCount"), &place); err != nil {
		if errors.Is(err, errNotFound) {
			return models.NotListed()
		}
		return outcomeFromError(err)
	}

	return models.Found(place.Rating, 5, place.UserRatingCount)
}

type googleSearchResponse struct {
	Places []googlePlace `json:"places"`
}

// Search finds candidate place IDs via the text search endpoint.
func (c *GoogleClient) Search(ctx context.Context, name, city, state string) ([]models.AliasCandidate, error) {
	reqURL := c.api.baseURL + "/v1/places:searchText"
	payload := map[string]interface{}{
		"textQuery": strings.TrimSpace(fmt.Sprintf("%s %s %s", name, city, state)),
		"pageSize":  5,
	}

	var result googleSearchResponse
	headers := c.headers("places.id,places.displayName,places.formattedAddress")
	if err := c.api.postJSON(ctx, reqURL, headers, payload, &result); err != nil {
		return nil, fmt.Errorf("google search failed: %w", err)
	}

	candidates := make([]models.AliasCandidate, 0, len(result.Places))
	for _, p := range result.Places {
		candidates = append(candidates, models.AliasCandidate{
			Identifier: p.ID,
			Name:       p.DisplayName.Text,
			Location:   p.FormattedAddress,
		})
	}
	return candidates, nil
}

// FetchReviews pulls the most recent review texts for a place ID.
// The Places API caps reviews per details call, so limit is best-effort.
func (c *GoogleClient) FetchReviews(ctx context.Context, identifier string, limit int) ([]models.Review, error) {
	reqURL := fmt.Sprintf("%s/v1/places/%s", c.api.baseURL, identifier)

	var place googlePlace
	if err := c.api.getJSON(ctx, reqURL, c.headers("reviews"), &place); err != nil {
		return nil, fmt.Errorf("google reviews fetch failed: %w", err)
	}

	reviews := make([]models.Review, 0, len(place.Reviews))
	for _, r := range place.Reviews {
		if limit > 0 && len(reviews) >= limit {
			break
		}
		reviews = append(reviews, models.Review{
			Platform:  models.PlatformGoogle,
			Rating:    float64(r.Rating),
			Text:      r.Text.Text,
			Author:    r.AuthorAttribution.DisplayName,
			CreatedAt: r.PublishTime,
		})
	}
	return reviews, nil
}
