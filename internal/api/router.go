// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renownhq/renown/internal/config"
)

// NewRouter wires every endpoint with the shared middleware stack.
func NewRouter(handler *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg))

	// Ops endpoints sit outside rate limiting so probes and scrapes
	// never get throttled.
	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg))
		r.Use(Metrics)

		r.Get("/scores", handler.Scores)
		r.Get("/scores/export", handler.ExportScores)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", handler.ListProperties)
			r.Post("/", handler.CreateProperty)
			r.Get("/{id}", handler.GetProperty)
			r.Put("/{id}", handler.UpdateProperty)
			r.Delete("/{id}", handler.DeleteProperty)
			r.Get("/{id}/aliases", handler.ListAliases)
			r.Put("/{id}/aliases/{platform}", handler.SetAlias)
			r.Get("/{id}/history/{platform}", handler.ScoreHistory)
			r.Get("/{id}/insight", handler.GetInsight)
			r.Post("/{id}/insight", handler.GenerateInsight)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", handler.ListGroups)
			r.Post("/", handler.CreateGroup)
			r.Get("/{id}", handler.GetGroup)
			r.Put("/{id}/members", handler.SetGroupMembers)
			r.Delete("/{id}", handler.DeleteGroup)
			r.Get("/{id}/score", handler.GroupScore)
		})

		r.Route("/refresh", func(r chi.Router) {
			r.Post("/", handler.RefreshAll)
			r.Post("/property/{id}", handler.RefreshProperty)
			r.Post("/cell/{id}/{platform}", handler.RefreshCell)
			r.Post("/retry-failed", handler.RetryFailed)
			r.Get("/status", handler.RefreshStatus)
		})

		r.Get("/heal-log", handler.HealLog)
		r.Get("/ws", handler.WebSocket)
	})

	return r
}
