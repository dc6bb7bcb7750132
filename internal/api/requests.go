// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreatePropertyRequest is the body for POST /properties.
type CreatePropertyRequest struct {
	Name            string   `json:"name" validate:"required,min=1,max=200"`
	City            string   `json:"city" validate:"max=100"`
	State           string   `json:"state" validate:"max=100"`
	KasaScore       *float64 `json:"kasa_score,omitempty" validate:"omitempty,gte=0,lte=10"`
	KasaReviewCount *int     `json:"kasa_review_count,omitempty" validate:"omitempty,gte=0"`
}

// UpdatePropertyRequest is the body for PUT /properties/{id}.
type UpdatePropertyRequest struct {
	Name            string   `json:"name" validate:"required,min=1,max=200"`
	City            string   `json:"city" validate:"max=100"`
	State           string   `json:"state" validate:"max=100"`
	KasaScore       *float64 `json:"kasa_score,omitempty" validate:"omitempty,gte=0,lte=10"`
	KasaReviewCount *int     `json:"kasa_review_count,omitempty" validate:"omitempty,gte=0"`
}

// CreateGroupRequest is the body for POST /groups.
type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	PropertyIDs []string `json:"property_ids" validate:"dive,required"`
}

// SetGroupMembersRequest is the body for PUT /groups/{id}/members.
type SetGroupMembersRequest struct {
	PropertyIDs []string `json:"property_ids" validate:"required,dive,required"`
}

// ManualAliasRequest is the body for PUT /properties/{id}/aliases/{platform}.
type ManualAliasRequest struct {
	Identifier string `json:"identifier" validate:"required,min=1,max=500"`
}

// fieldError is one entry in a validation error response.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest(fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]fieldError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
			rw.ValidationError("request validation failed", details)
			return false
		}
		rw.BadRequest(err.Error())
		return false
	}
	return true
}
