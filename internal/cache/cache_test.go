// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("scores", []string{"a", "b"})

	got, ok := c.Get("scores")
	if !ok {
		t.Fatal("expected hit")
	}
	if v := got.([]string); len(v) != 2 {
		t.Errorf("value = %v", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	c := New("test", 10*time.Millisecond)
	defer c.Stop()

	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0 after lazy eviction", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("len = %d, want 0 after clear", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
}

func TestDelete(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after delete")
	}
}
