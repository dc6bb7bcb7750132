// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package refresh

import (
	"sync"
	"time"

	"github.com/renownhq/renown/internal/models"
)

// Phase is the coarse state of the orchestrator.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseResolving Phase = "resolving"
	PhaseFetching  Phase = "fetching"
	PhaseComplete  Phase = "complete"
)

// CellState is the per-(property, platform) progress state within a run.
type CellState string

const (
	CellQueued    CellState = "queued"
	CellFetching  CellState = "fetching"
	CellComplete  CellState = "complete"
	CellFailed    CellState = "failed"
	CellNotListed CellState = "not_listed"
)

// CellStatus is one grid cell's progress within the current run.
type CellStatus struct {
	PropertyID string              `json:"property_id"`
	Platform   models.Platform     `json:"platform"`
	State      CellState           `json:"state"`
	Outcome    models.FetchOutcome `json:"outcome,omitempty"`
	Message    string              `json:"message,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Status is a snapshot of the orchestrator's state, safe to serialize.
type Status struct {
	Phase       Phase                 `json:"phase"`
	Scope       string                `json:"scope,omitempty"`
	StartedAt   time.Time             `json:"started_at,omitempty"`
	CompletedAt time.Time             `json:"completed_at,omitempty"`
	Cells       map[string]CellStatus `json:"cells,omitempty"`
	Completed   int                   `json:"completed"`
	Failed      int                   `json:"failed"`
	NotListed   int                   `json:"not_listed"`
}

// tracker holds mutable run state behind a lock. All orchestrator writes
// go through it so Status() is always consistent mid-run.
type tracker struct {
	mu     sync.RWMutex
	status Status
}

func newTracker() *tracker {
	return &tracker{status: Status{Phase: PhaseIdle}}
}

func cellKey(propertyID string, p models.Platform) string {
	return propertyID + "/" + string(p)
}

func (t *tracker) begin(scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		Phase:     PhaseResolving,
		Scope:     scope,
		StartedAt: time.Now().UTC(),
		Cells:     make(map[string]CellStatus),
	}
}

func (t *tracker) setPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Phase = p
	if p == PhaseComplete {
		t.status.CompletedAt = time.Now().UTC()
	}
}

func (t *tracker) setCell(propertyID string, p models.Platform, state CellState, outcome models.FetchOutcome, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := cellKey(propertyID, p)

	prev, existed := t.status.Cells[key]
	if existed {
		t.decount(prev.State)
	}
	t.status.Cells[key] = CellStatus{
		PropertyID: propertyID,
		Platform:   p,
		State:      state,
		Outcome:    outcome,
		Message:    msg,
		UpdatedAt:  time.Now().UTC(),
	}
	t.count(state)
}

func (t *tracker) count(s CellState) {
	switch s {
	case CellComplete:
		t.status.Completed++
	case CellFailed:
		t.status.Failed++
	case CellNotListed:
		t.status.NotListed++
	}
}

func (t *tracker) decount(s CellState) {
	switch s {
	case CellComplete:
		t.status.Completed--
	case CellFailed:
		t.status.Failed--
	case CellNotListed:
		t.status.NotListed--
	}
}

// snapshot returns a deep copy of the current status.
func (t *tracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.status
	out.Cells = make(map[string]CellStatus, len(t.status.Cells))
	for k, v := range t.status.Cells {
		out.Cells[k] = v
	}
	return out
}

// failedCells lists the cells currently marked failed.
func (t *tracker) failedCells() []CellStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []CellStatus
	for _, c := range t.status.Cells {
		if c.State == CellFailed {
			out = append(out, c)
		}
	}
	return out
}

func (t *tracker) failedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Failed
}
