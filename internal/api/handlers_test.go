// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/renownhq/renown/internal/cache"
	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/refresh"
	"github.com/renownhq/renown/internal/websocket"
)

type fakeStore struct {
	properties map[string]*models.Property
	aliases    map[string][]models.PlatformAlias
	latest     []models.ScoreSnapshot
	history    []models.ScoreSnapshot
	groups     map[string]*models.Group
	groupSnaps map[string]*models.GroupSnapshot
	healLog    []models.HealLogEntry
	pingErr    error
}

func newTestStore() *fakeStore {
	return &fakeStore{
		properties: make(map[string]*models.Property),
		aliases:    make(map[string][]models.PlatformAlias),
		groups:     make(map[string]*models.Group),
		groupSnaps: make(map[string]*models.GroupSnapshot),
	}
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *fakeStore) CreateProperty(ctx context.Context, p *models.Property) error {
	if p.ID == "" {
		p.ID = fmt.Sprintf("prop-%d", len(s.properties)+1)
	}
	s.properties[p.ID] = p
	return nil
}

func (s *fakeStore) UpdateProperty(ctx context.Context, p *models.Property) error {
	if _, ok := s.properties[p.ID]; !ok {
		return database.ErrNotFound
	}
	s.properties[p.ID] = p
	return nil
}

func (s *fakeStore) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	p, ok := s.properties[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ListProperties(ctx context.Context) ([]models.Property, error) {
	out := make([]models.Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeStore) DeleteProperty(ctx context.Context, id string) error {
	if _, ok := s.properties[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.properties, id)
	return nil
}

func (s *fakeStore) ListAliasesForProperty(ctx context.Context, propertyID string) ([]models.PlatformAlias, error) {
	return s.aliases[propertyID], nil
}

func (s *fakeStore) LatestScores(ctx context.Context) ([]models.ScoreSnapshot, error) {
	return s.latest, nil
}

func (s *fakeStore) LatestScoresForProperty(ctx context.Context, propertyID string) ([]models.ScoreSnapshot, error) {
	var out []models.ScoreSnapshot
	for _, snap := range s.latest {
		if snap.PropertyID == propertyID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *fakeStore) SnapshotHistory(ctx context.Context, propertyID string, platform models.Platform, limit int) ([]models.ScoreSnapshot, error) {
	return s.history, nil
}

func (s *fakeStore) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = fmt.Sprintf("group-%d", len(s.groups)+1)
	}
	s.groups[g.ID] = g
	return nil
}

func (s *fakeStore) SetGroupMembers(ctx context.Context, groupID string, propertyIDs []string) error {
	g, ok := s.groups[groupID]
	if !ok {
		return database.ErrNotFound
	}
	g.PropertyIDs = propertyIDs
	return nil
}

func (s *fakeStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return g, nil
}

func (s *fakeStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	out := make([]models.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *g)
	}
	return out, nil
}

func (s *fakeStore) DeleteGroup(ctx context.Context, id string) error {
	if _, ok := s.groups[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

func (s *fakeStore) LatestGroupSnapshot(ctx context.Context, groupID string) (*models.GroupSnapshot, error) {
	snap, ok := s.groupSnaps[groupID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return snap, nil
}

func (s *fakeStore) ListHealLog(ctx context.Context) ([]models.HealLogEntry, error) {
	return s.healLog, nil
}

type fakeRefresher struct {
	triggered   []string
	triggerErr  error
	failedCount int
	status      refresh.Status
}

func (f *fakeRefresher) TriggerAll() error {
	f.triggered = append(f.triggered, "all")
	return f.triggerErr
}

func (f *fakeRefresher) TriggerProperty(id string) error {
	f.triggered = append(f.triggered, "property:"+id)
	return f.triggerErr
}

func (f *fakeRefresher) TriggerCell(id string, p models.Platform) error {
	f.triggered = append(f.triggered, "cell:"+id+"/"+string(p))
	return f.triggerErr
}

func (f *fakeRefresher) TriggerRetryFailed() error {
	f.triggered = append(f.triggered, "retry_failed")
	return f.triggerErr
}

func (f *fakeRefresher) Status() refresh.Status { return f.status }
func (f *fakeRefresher) FailedCount() int       { return f.failedCount }

type fakeAliasResolver struct {
	applied map[string]string
	err     error
}

func (f *fakeAliasResolver) ApplyManual(ctx context.Context, propertyID string, p models.Platform, identifier string) (*models.PlatformAlias, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.applied == nil {
		f.applied = make(map[string]string)
	}
	f.applied[propertyID+"/"+string(p)] = identifier
	return &models.PlatformAlias{
		PropertyID: propertyID,
		Platform:   p,
		Identifier: identifier,
		Status:     models.AliasResolved,
		Confidence: 1,
	}, nil
}

type fakeInsightService struct {
	insight *models.Insight
	err     error
}

func (f *fakeInsightService) Get(ctx context.Context, propertyID string) (*models.Insight, error) {
	if f.insight == nil {
		return nil, database.ErrNotFound
	}
	return f.insight, nil
}

func (f *fakeInsightService) Generate(ctx context.Context, propertyID string) (*models.Insight, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.insight, nil
}

type testAPI struct {
	store     *fakeStore
	refresher *fakeRefresher
	resolver  *fakeAliasResolver
	insights  *fakeInsightService
	cache     *cache.Cache
	server    *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := newTestStore()
	refresher := &fakeRefresher{status: refresh.Status{Phase: refresh.PhaseIdle}}
	resolver := &fakeAliasResolver{}
	insightSvc := &fakeInsightService{}
	scoreCache := cache.New("scores-test", time.Minute)
	t.Cleanup(scoreCache.Stop)

	handler := NewHandler(store, refresher, resolver, insightSvc, scoreCache, websocket.NewHub())
	server := httptest.NewServer(NewRouter(handler, config.ServerConfig{}))
	t.Cleanup(server.Close)

	return &testAPI{
		store:     store,
		refresher: refresher,
		resolver:  resolver,
		insights:  insightSvc,
		cache:     scoreCache,
		server:    server,
	}
}

func (a *testAPI) request(t *testing.T, method, path string, body interface{}) (*http.Response, APIResponse) {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope APIResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("%s %s: decode envelope: %v", method, path, err)
		}
	}
	return resp, envelope
}

func TestPropertyCRUDEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp, env := api.request(t, http.MethodPost, "/api/v1/properties", CreatePropertyRequest{
		Name: "Kasa Austin Downtown", City: "Austin", State: "TX",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := env.Data.(map[string]interface{})
	id := created["id"].(string)

	resp, env = api.request(t, http.MethodGet, "/api/v1/properties/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if env.Data.(map[string]interface{})["name"] != "Kasa Austin Downtown" {
		t.Fatalf("unexpected property payload %v", env.Data)
	}

	resp, _ = api.request(t, http.MethodPut, "/api/v1/properties/"+id, UpdatePropertyRequest{
		Name: "Kasa Austin Riverside", City: "Austin", State: "TX",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp, _ = api.request(t, http.MethodDelete, "/api/v1/properties/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, env = api.request(t, http.MethodGet, "/api/v1/properties/"+id, nil)
	if resp.StatusCode != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Fatalf("expected 404 NOT_FOUND, got %d %v", resp.StatusCode, env.Error)
	}
}

func TestCreatePropertyValidation(t *testing.T) {
	api := newTestAPI(t)

	resp, env := api.request(t, http.MethodPost, "/api/v1/properties", CreatePropertyRequest{Name: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if env.Error.Code != ErrCodeValidationFailed {
		t.Fatalf("error code = %s", env.Error.Code)
	}
	details := env.Error.Details.([]interface{})
	field := details[0].(map[string]interface{})["field"]
	if field != "Name" {
		t.Fatalf("expected Name field error, got %v", field)
	}
}

func TestScoresGridAndCaching(t *testing.T) {
	api := newTestAPI(t)
	api.store.properties["p1"] = &models.Property{ID: "p1", Name: "Kasa Austin Downtown"}
	n1, n2 := 9.0, 8.8
	api.store.latest = []models.ScoreSnapshot{
		{PropertyID: "p1", Platform: models.PlatformGoogle, RawScore: 4.5, RawScale: 5, ReviewCount: 100, Normalized: &n1, Status: models.SnapshotFound, CollectedAt: time.Now()},
		{PropertyID: "p1", Platform: models.PlatformBooking, RawScore: 8.8, RawScale: 10, ReviewCount: 300, Normalized: &n2, Status: models.SnapshotFound, CollectedAt: time.Now()},
	}

	resp, env := api.request(t, http.MethodGet, "/api/v1/scores", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	rows := env.Data.([]interface{})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0].(map[string]interface{})
	composite := row["composite"].(map[string]interface{})
	// (9.0*100 + 8.8*300) / 400 = 8.85
	if got := composite["score"].(float64); got < 8.84 || got > 8.86 {
		t.Fatalf("composite = %f, want 8.85", got)
	}
	if composite["review_count"].(float64) != 400 {
		t.Fatalf("composite reviews = %v", composite["review_count"])
	}

	// Second call is served from cache: mutating the store is invisible.
	api.store.latest = nil
	_, env = api.request(t, http.MethodGet, "/api/v1/scores", nil)
	if len(env.Data.([]interface{})) != 1 {
		t.Fatal("cached grid not served")
	}

	// Cache invalidation exposes the new state.
	api.cache.Clear()
	_, env = api.request(t, http.MethodGet, "/api/v1/scores", nil)
	row = env.Data.([]interface{})[0].(map[string]interface{})
	if _, hasComposite := row["composite"]; hasComposite {
		t.Fatal("stale composite after cache clear")
	}
}

func TestRefreshEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.request(t, http.MethodPost, "/api/v1/refresh", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("refresh all status = %d", resp.StatusCode)
	}

	resp, _ = api.request(t, http.MethodPost, "/api/v1/refresh/cell/p1/google", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("refresh cell status = %d", resp.StatusCode)
	}

	resp, env := api.request(t, http.MethodPost, "/api/v1/refresh/cell/p1/yelp", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad platform status = %d (%v)", resp.StatusCode, env.Error)
	}

	want := []string{"all", "cell:p1/google"}
	if len(api.refresher.triggered) != len(want) {
		t.Fatalf("triggers = %v", api.refresher.triggered)
	}
	for i, trig := range want {
		if api.refresher.triggered[i] != trig {
			t.Fatalf("triggers = %v, want %v", api.refresher.triggered, want)
		}
	}
}

func TestRefreshBusyConflict(t *testing.T) {
	api := newTestAPI(t)
	api.refresher.triggerErr = refresh.ErrRunInProgress

	resp, env := api.request(t, http.MethodPost, "/api/v1/refresh", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if env.Error.Code != ErrCodeRefreshBusy {
		t.Fatalf("error code = %s", env.Error.Code)
	}
}

func TestRetryFailedWithNothingToRetry(t *testing.T) {
	api := newTestAPI(t)
	api.refresher.failedCount = 0

	resp, _ := api.request(t, http.MethodPost, "/api/v1/refresh/retry-failed", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(api.refresher.triggered) != 0 {
		t.Fatalf("retry triggered with no failed cells: %v", api.refresher.triggered)
	}
}

func TestManualAliasOverride(t *testing.T) {
	api := newTestAPI(t)

	resp, env := api.request(t, http.MethodPut, "/api/v1/properties/p1/aliases/booking", ManualAliasRequest{Identifier: "hotel-99"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%v)", resp.StatusCode, env.Error)
	}
	if api.resolver.applied["p1/booking"] != "hotel-99" {
		t.Fatalf("override not applied: %v", api.resolver.applied)
	}

	resp, _ = api.request(t, http.MethodPut, "/api/v1/properties/p1/aliases/booking", ManualAliasRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty identifier status = %d", resp.StatusCode)
	}
}

func TestGroupEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.store.properties["p1"] = &models.Property{ID: "p1", Name: "Kasa Austin Downtown"}

	resp, env := api.request(t, http.MethodPost, "/api/v1/groups", CreateGroupRequest{
		Name: "Texas", PropertyIDs: []string{"p1"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group status = %d", resp.StatusCode)
	}
	groupID := env.Data.(map[string]interface{})["id"].(string)

	api.store.groupSnaps[groupID] = &models.GroupSnapshot{GroupID: groupID, Score: 8.85, ReviewCount: 400, ComputedAt: time.Now()}
	resp, env = api.request(t, http.MethodGet, "/api/v1/groups/"+groupID+"/score", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("group score status = %d", resp.StatusCode)
	}
	if env.Data.(map[string]interface{})["score"].(float64) != 8.85 {
		t.Fatalf("unexpected group score payload %v", env.Data)
	}

	resp, env = api.request(t, http.MethodGet, "/api/v1/groups/missing/score", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing group score status = %d (%v)", resp.StatusCode, env.Error)
	}
}

func TestCSVExport(t *testing.T) {
	api := newTestAPI(t)
	api.store.properties["p1"] = &models.Property{ID: "p1", Name: "Kasa Austin Downtown", City: "Austin", State: "TX"}
	n := 9.0
	api.store.latest = []models.ScoreSnapshot{
		{PropertyID: "p1", Platform: models.PlatformGoogle, RawScore: 4.5, RawScale: 5, ReviewCount: 100, Normalized: &n, Status: models.SnapshotFound, CollectedAt: time.Now()},
	}

	resp, err := http.Get(api.server.URL + "/api/v1/scores/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %s", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "google_score") || !strings.Contains(lines[0], "composite_score") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "Kasa Austin Downtown") || !strings.Contains(lines[1], "9.00") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	resp, env := api.request(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if env.Data.(map[string]interface{})["status"] != "ok" {
		t.Fatalf("unexpected health payload %v", env.Data)
	}

	api.store.pingErr = fmt.Errorf("db gone")
	resp, _ = api.request(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", resp.StatusCode)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	api := newTestAPI(t)

	req, _ := http.NewRequest(http.MethodGet, api.server.URL+"/api/v1/properties", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("request id = %q", got)
	}
	var env APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Meta.RequestID != "trace-123" {
		t.Fatalf("meta request id = %q", env.Meta.RequestID)
	}
}
