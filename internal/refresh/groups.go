// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package refresh

import (
	"context"
	"time"

	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/score"
)

// GroupStore is the persistence surface group aggregation needs.
type GroupStore interface {
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	LatestScoresForProperty(ctx context.Context, propertyID string) ([]models.ScoreSnapshot, error)
	InsertGroupSnapshot(ctx context.Context, s *models.GroupSnapshot) error
}

// GroupAggregator materializes group composites as append-only snapshots.
// Each member property contributes its latest per-platform scores, weighted
// by review count at both levels.
type GroupAggregator struct {
	store GroupStore
}

func NewGroupAggregator(store GroupStore) *GroupAggregator {
	return &GroupAggregator{store: store}
}

// ComputeAndSnapshot computes one group's composite from current latest
// scores and persists a snapshot. Returns the snapshot with ok=false when
// no member has any scored platform; nothing is persisted in that case.
func (a *GroupAggregator) ComputeAndSnapshot(ctx context.Context, groupID string) (*models.GroupSnapshot, bool, error) {
	group, err := a.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, false, err
	}

	members := make([]score.PropertyScore, 0, len(group.PropertyIDs))
	for _, propertyID := range group.PropertyIDs {
		latest, err := a.store.LatestScoresForProperty(ctx, propertyID)
		if err != nil {
			return nil, false, err
		}
		members = append(members, score.PropertyComposite(propertyID, latest))
	}

	avg, totalReviews, ok := score.GroupComposite(members)
	if !ok {
		return nil, false, nil
	}

	snap := &models.GroupSnapshot{
		GroupID:     group.ID,
		Score:       avg,
		ReviewCount: totalReviews,
		ComputedAt:  time.Now().UTC(),
	}
	if err := a.store.InsertGroupSnapshot(ctx, snap); err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// ComputeAll recomputes every group. Groups with no scorable members are
// skipped; individual failures are logged and do not stop the sweep.
func (a *GroupAggregator) ComputeAll(ctx context.Context) error {
	groups, err := a.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, _, err := a.ComputeAndSnapshot(ctx, g.ID); err != nil {
			logging.Warn().Err(err).Str("group", g.ID).Msg("Group snapshot failed")
		}
	}
	return nil
}
