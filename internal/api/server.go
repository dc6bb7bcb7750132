// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/logging"
)

// Server is the HTTP server as a suture service.
type Server struct {
	srv *http.Server
}

func NewServer(handler *Handler, cfg config.ServerConfig) *Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           NewRouter(handler, cfg),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			// WebSocket connections outlive any sane write timeout, so
			// the server leaves it unset and the hub enforces per-write
			// deadlines itself.
			IdleTimeout: 2 * time.Minute,
		},
	}
}

// Serve runs until ctx is canceled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return ctx.Err()
		}
		return err
	}
}
