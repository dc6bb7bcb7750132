// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package services

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// NamedService attaches a stable name to any suture service for log
// readability. The orchestrator, sweeper, and HTTP server use it.
type NamedService struct {
	Name    string
	Service suture.Service
}

func Named(name string, svc suture.Service) NamedService {
	return NamedService{Name: name, Service: svc}
}

// Serve implements suture.Service.
func (n NamedService) Serve(ctx context.Context) error {
	return n.Service.Serve(ctx)
}

// String identifies the service in supervisor logs.
func (n NamedService) String() string {
	return n.Name
}
