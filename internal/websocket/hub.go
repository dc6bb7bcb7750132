// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package websocket pushes refresh progress and score updates to connected
// dashboards, so the grid can show per-cell fetch state live instead of
// polling the status endpoint.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
)

// Message types for WebSocket communication
const (
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeRefreshProgress  = "refresh_progress"
	MessageTypeRefreshCompleted = "refresh_completed"
	MessageTypeScoresUpdate     = "scores_update"
	MessageTypeHealProgress     = "heal_progress"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext starts the hub loop; it returns when the context is
// canceled, after closing every connected client. Designed to run under
// the supervisor.
//
// Selection is priority-ordered so behavior stays deterministic when
// multiple channels are ready: shutdown first, then client lifecycle,
// then broadcasts.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client disconnected")
}

// broadcastToClients delivers a message to every client in client-ID order.
// Clients whose send buffer is full are dropped; a stalled dashboard must
// not block the refresh pipeline.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.WSConnections.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for all clients. Drops the message if the
// broadcast buffer is full rather than blocking the caller.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: msgType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("type", msgType).Msg("websocket broadcast buffer full, message dropped")
	}
}

// BroadcastRefreshProgress pushes a refresh run's current state.
func (h *Hub) BroadcastRefreshProgress(data interface{}) {
	h.Broadcast(MessageTypeRefreshProgress, data)
}

// BroadcastRefreshCompleted signals the end of a refresh run.
func (h *Hub) BroadcastRefreshCompleted(data interface{}) {
	h.Broadcast(MessageTypeRefreshCompleted, data)
}

// BroadcastScoresUpdate tells dashboards that latest scores changed and
// should be re-fetched.
func (h *Hub) BroadcastScoresUpdate(data interface{}) {
	h.Broadcast(MessageTypeScoresUpdate, data)
}

// BroadcastHealProgress pushes auto-heal sweep state.
func (h *Hub) BroadcastHealProgress(data interface{}) {
	h.Broadcast(MessageTypeHealProgress, data)
}
