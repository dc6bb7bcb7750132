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
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

// BookingClient talks to the Booking.com distribution API. Review scores
// are already on the 0-10 scale.
type BookingClient struct {
	api *apiClient
}

func NewBookingClient(cfg config.PlatformConfig, timeout time.Duration) *BookingClient {
	return &BookingClient{api: newAPIClient(cfg, timeout)}
}

func (c *BookingClient) Platform() models.Platform { return models.PlatformBooking }

func (c *BookingClient) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Basic "+c.api.apiKey)
	return h
}

type bookingReviewScores struct {
	Result []struct {
		HotelID     string  `json:"hotel_id"`
		ReviewScore float64 `json:"review_score"`
		ReviewNr    int     `json:"review_nr"`
	} `json:"result"`
}

// FetchScore pulls the current review score for a hotel ID. An empty
// result set means the hotel is no longer distributed, which the dashboard
// treats the same as not listed.
func (c *BookingClient) FetchScore(ctx context.Context, identifier string) models.FetchResult {
	params := url.Values{}
	params.Set("hotel_ids", identifier)
	reqURL := fmt.Sprintf("%s/json/bookings.getHotelReviewScores?%s", c.api.baseURL, params.Encode())

	var scores bookingReviewScores
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &scores); err != nil {
		if errors.Is(err, errNotFound) {
			return models.NotListed()
		}
		return outcomeFromError(err)
	}

	if len(scores.Result) == 0 {
		return models.NotListed()
	}

	hotel := scores.Result[0]
	return models.Found(hotel.ReviewScore, 10, hotel.ReviewNr)
}

type bookingHotelsResponse struct {
	Result []struct {
		HotelID   string `json:"hotel_id"`
		HotelName string `json:"hotel_name"`
		City      string `json:"city"`
	} `json:"result"`
}

// Search finds candidate hotel IDs by name within a city.
func (c *BookingClient) Search(ctx context.Context, name, city, state string) ([]models.AliasCandidate, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("city", city)
	params.Set("rows", "5")
	reqURL := fmt.Sprintf("%s/json/bookings.getHotels?%s", c.api.baseURL, params.Encode())

	var result bookingHotelsResponse
	if err := c.api.getJSON(ctx, reqURL, c.headers(), &result); err != nil {
		return nil, fmt.Errorf("booking search failed: %w", err)
	}

	candidates := make([]models.AliasCandidate, 0, len(result.Result))
	for _, h := range result.Result {
		candidates = append(candidates, models.AliasCandidate{
			Identifier: h.HotelID,
			Name:       h.HotelName,
			Location:   h.City,
		})
	}
	return candidates, nil
}
