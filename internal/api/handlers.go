// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package api serves the dashboard's HTTP surface: the score grid,
// property and group management, refresh triggers, and WebSocket
// progress streaming.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/renownhq/renown/internal/cache"
	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/insights"
	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/refresh"
	"github.com/renownhq/renown/internal/score"
	"github.com/renownhq/renown/internal/websocket"
)

// Store is the persistence surface the handlers need.
type Store interface {
	Ping(ctx context.Context) error

	CreateProperty(ctx context.Context, p *models.Property) error
	UpdateProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
	DeleteProperty(ctx context.Context, id string) error

	ListAliasesForProperty(ctx context.Context, propertyID string) ([]models.PlatformAlias, error)

	LatestScores(ctx context.Context) ([]models.ScoreSnapshot, error)
	LatestScoresForProperty(ctx context.Context, propertyID string) ([]models.ScoreSnapshot, error)
	SnapshotHistory(ctx context.Context, propertyID string, platform models.Platform, limit int) ([]models.ScoreSnapshot, error)

	CreateGroup(ctx context.Context, g *models.Group) error
	SetGroupMembers(ctx context.Context, groupID string, propertyIDs []string) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	DeleteGroup(ctx context.Context, id string) error
	LatestGroupSnapshot(ctx context.Context, groupID string) (*models.GroupSnapshot, error)

	ListHealLog(ctx context.Context) ([]models.HealLogEntry, error)
}

// Refresher triggers and reports on refresh runs. *refresh.Orchestrator
// satisfies this.
type Refresher interface {
	TriggerAll() error
	TriggerProperty(propertyID string) error
	TriggerCell(propertyID string, p models.Platform) error
	TriggerRetryFailed() error
	Status() refresh.Status
	FailedCount() int
}

// AliasResolver applies manual identity overrides. *resolve.Resolver
// satisfies this.
type AliasResolver interface {
	ApplyManual(ctx context.Context, propertyID string, p models.Platform, identifier string) (*models.PlatformAlias, error)
}

// InsightService reads and regenerates review summaries.
// *insights.Generator satisfies this.
type InsightService interface {
	Get(ctx context.Context, propertyID string) (*models.Insight, error)
	Generate(ctx context.Context, propertyID string) (*models.Insight, error)
}

// Handler holds the dependencies behind the HTTP endpoints.
type Handler struct {
	store      Store
	refresher  Refresher
	resolver   AliasResolver
	insights   InsightService
	scoreCache *cache.Cache
	hub        *websocket.Hub
	upgrader   gorillaws.Upgrader
}

func NewHandler(store Store, refresher Refresher, resolver AliasResolver, insightSvc InsightService, scoreCache *cache.Cache, hub *websocket.Hub) *Handler {
	return &Handler{
		store:      store,
		refresher:  refresher,
		resolver:   resolver,
		insights:   insightSvc,
		scoreCache: scoreCache,
		hub:        hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// PlatformScore is one cell of the dashboard grid.
type PlatformScore struct {
	Normalized  *float64              `json:"normalized"`
	RawScore    float64               `json:"raw_score,omitempty"`
	RawScale    float64               `json:"raw_scale,omitempty"`
	ReviewCount int                   `json:"review_count"`
	Status      models.SnapshotStatus `json:"status"`
	CollectedAt time.Time             `json:"collected_at"`
}

// PropertyScores is one dashboard row: per-platform latest scores plus
// the property's composite.
type PropertyScores struct {
	Property  models.Property                    `json:"property"`
	Platforms map[models.Platform]*PlatformScore `json:"platforms"`
	Composite *CompositeScore                    `json:"composite,omitempty"`
}

// CompositeScore is a review-count-weighted average.
type CompositeScore struct {
	Score       float64 `json:"score"`
	ReviewCount int     `json:"review_count"`
}

const latestScoresCacheKey = "latest"

// Scores serves the full dashboard grid. Built from the latest snapshot
// per (property, platform) and cached until the next snapshot write.
func (h *Handler) Scores(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if cached, ok := h.scoreCache.Get(latestScoresCacheKey); ok {
		rw.Success(cached)
		return
	}

	rows, err := h.buildScoreRows(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.scoreCache.Set(latestScoresCacheKey, rows)
	rw.Success(rows)
}

func (h *Handler) buildScoreRows(ctx context.Context) ([]PropertyScores, error) {
	properties, err := h.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := h.store.LatestScores(ctx)
	if err != nil {
		return nil, err
	}

	byProperty := make(map[string][]models.ScoreSnapshot, len(properties))
	for _, snap := range latest {
		byProperty[snap.PropertyID] = append(byProperty[snap.PropertyID], snap)
	}

	rows := make([]PropertyScores, 0, len(properties))
	for _, prop := range properties {
		row := PropertyScores{
			Property:  prop,
			Platforms: make(map[models.Platform]*PlatformScore),
		}
		snaps := byProperty[prop.ID]
		for _, snap := range snaps {
			row.Platforms[snap.Platform] = &PlatformScore{
				Normalized:  snap.Normalized,
				RawScore:    snap.RawScore,
				RawScale:    snap.RawScale,
				ReviewCount: snap.ReviewCount,
				Status:      snap.Status,
				CollectedAt: snap.CollectedAt,
			}
		}
		if composite := score.PropertyComposite(prop.ID, snaps); composite.HasScore {
			row.Composite = &CompositeScore{
				Score:       composite.Average,
				ReviewCount: composite.ReviewCount,
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ScoreHistory serves the snapshot history for one cell, newest first.
func (h *Handler) ScoreHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	propertyID := chi.URLParam(r, "id")
	platform := models.Platform(chi.URLParam(r, "platform"))
	if !platform.Valid() {
		rw.BadRequest("unknown platform: " + string(platform))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			rw.BadRequest("limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := h.store.SnapshotHistory(r.Context(), propertyID, platform, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(history)
}

// CreateProperty handles POST /properties.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req CreatePropertyRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	now := time.Now().UTC()
	property := &models.Property{
		ID:              uuid.NewString(),
		Name:            req.Name,
		City:            req.City,
		State:           req.State,
		KasaScore:       req.KasaScore,
		KasaReviewCount: req.KasaReviewCount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.store.CreateProperty(r.Context(), property); err != nil {
		rw.DatabaseError(err)
		return
	}
	h.scoreCache.Clear()
	rw.Created(property)
}

// ListProperties handles GET /properties.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	properties, err := h.store.ListProperties(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(properties)
}

// GetProperty handles GET /properties/{id}.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	property, err := h.store.GetProperty(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("property not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(property)
}

// UpdateProperty handles PUT /properties/{id}.
func (h *Handler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req UpdatePropertyRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	property := &models.Property{
		ID:              chi.URLParam(r, "id"),
		Name:            req.Name,
		City:            req.City,
		State:           req.State,
		KasaScore:       req.KasaScore,
		KasaReviewCount: req.KasaReviewCount,
		UpdatedAt:       time.Now().UTC(),
	}
	err := h.store.UpdateProperty(r.Context(), property)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("property not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.scoreCache.Clear()
	rw.Success(property)
}

// DeleteProperty handles DELETE /properties/{id}. Snapshot history is
// retained for audit.
func (h *Handler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	err := h.store.DeleteProperty(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("property not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.scoreCache.Clear()
	rw.NoContent()
}

// ListAliases handles GET /properties/{id}/aliases.
func (h *Handler) ListAliases(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	aliases, err := h.store.ListAliasesForProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(aliases)
}

// SetAlias handles PUT /properties/{id}/aliases/{platform}: a manual
// identity override from the review queue.
func (h *Handler) SetAlias(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	platform := models.Platform(chi.URLParam(r, "platform"))
	if !platform.Valid() {
		rw.BadRequest("unknown platform: " + string(platform))
		return
	}
	var req ManualAliasRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	alias, err := h.resolver.ApplyManual(r.Context(), chi.URLParam(r, "id"), platform, req.Identifier)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no alias row for that property and platform")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(alias)
}

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req CreateGroupRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	group := &models.Group{
		ID:          uuid.NewString(),
		Name:        req.Name,
		PropertyIDs: req.PropertyIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateGroup(r.Context(), group); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(group)
}

// ListGroups handles GET /groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	groups, err := h.store.ListGroups(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(groups)
}

// GetGroup handles GET /groups/{id}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	group, err := h.store.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("group not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(group)
}

// SetGroupMembers handles PUT /groups/{id}/members.
func (h *Handler) SetGroupMembers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req SetGroupMembersRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	groupID := chi.URLParam(r, "id")
	err := h.store.SetGroupMembers(r.Context(), groupID, req.PropertyIDs)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("group not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	group, err := h.store.GetGroup(r.Context(), groupID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(group)
}

// DeleteGroup handles DELETE /groups/{id}.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	err := h.store.DeleteGroup(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("group not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.NoContent()
}

// GroupScore handles GET /groups/{id}/score: the latest materialized
// group snapshot.
func (h *Handler) GroupScore(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap, err := h.store.LatestGroupSnapshot(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no score computed for that group yet")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(snap)
}

// RefreshAll handles POST /refresh.
func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.refresher.TriggerAll)
}

// RefreshProperty handles POST /refresh/property/{id}.
func (h *Handler) RefreshProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.trigger(w, r, func() error { return h.refresher.TriggerProperty(id) })
}

// RefreshCell handles POST /refresh/cell/{id}/{platform}.
func (h *Handler) RefreshCell(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	platform := models.Platform(chi.URLParam(r, "platform"))
	if !platform.Valid() {
		rw.BadRequest("unknown platform: " + string(platform))
		return
	}
	id := chi.URLParam(r, "id")
	h.trigger(w, r, func() error { return h.refresher.TriggerCell(id, platform) })
}

// RetryFailed handles POST /refresh/retry-failed.
func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.refresher.FailedCount() == 0 {
		rw.Success(map[string]string{"status": "nothing to retry"})
		return
	}
	h.trigger(w, r, h.refresher.TriggerRetryFailed)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, fn func() error) {
	rw := NewResponseWriter(w, r)
	err := fn()
	if errors.Is(err, refresh.ErrRunInProgress) {
		rw.Conflict(ErrCodeRefreshBusy, "a refresh run is already in progress")
		return
	}
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("property not found")
		return
	}
	if err != nil {
		rw.InternalError(err.Error())
		return
	}
	rw.Accepted(map[string]string{"status": "queued"})
}

// RefreshStatus handles GET /refresh/status.
func (h *Handler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.refresher.Status())
}

// HealLog handles GET /heal-log.
func (h *Handler) HealLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	entries, err := h.store.ListHealLog(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(entries)
}

// GetInsight handles GET /properties/{id}/insight.
func (h *Handler) GetInsight(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ins, err := h.insights.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no insight generated for that property yet")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(ins)
}

// GenerateInsight handles POST /properties/{id}/insight.
func (h *Handler) GenerateInsight(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ins, err := h.insights.Generate(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, insights.ErrDisabled):
		rw.ServiceUnavailable("insight generation is not configured")
	case errors.Is(err, insights.ErrNoReviews):
		rw.Error(http.StatusUnprocessableEntity, ErrCodeInsightsFailed, "no reviews available for that property")
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("property not found")
	case err != nil:
		rw.Error(http.StatusBadGateway, ErrCodeInsightsFailed, err.Error())
	default:
		rw.Success(ins)
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		rw.ServiceUnavailable("database unreachable")
		return
	}
	rw.Success(map[string]interface{}{
		"status":     "ok",
		"ws_clients": h.hub.GetClientCount(),
	})
}

// WebSocket upgrades the connection and hands it to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		return
	}
	websocket.NewClient(h.hub, conn).Start()
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
