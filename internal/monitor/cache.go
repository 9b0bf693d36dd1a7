// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"
	"time"
)

// refreshCache holds the last result of a slow read and refreshes it in the
// background once it is older than maxAge. Get never waits for a fetch.
type refreshCache[T any] struct {
	mu        sync.Mutex
	value     T
	ok        bool
	fetchedAt time.Time
	inflight  bool

	maxAge       time.Duration
	fetchTimeout time.Duration
	fetch        func(ctx context.Context) (T, error)
	now          func() time.Time
}

func newRefreshCache[T any](maxAge, fetchTimeout time.Duration, fetch func(ctx context.Context) (T, error)) *refreshCache[T] {
	return &refreshCache[T]{
		maxAge:       maxAge,
		fetchTimeout: fetchTimeout,
		fetch:        fetch,
		now:          time.Now,
	}
}

// Get returns the cached value and whether one exists, starting a refresh
// when the value is stale and none is running.
func (c *refreshCache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inflight && c.now().Sub(c.fetchedAt) >= c.maxAge {
		c.inflight = true
		go c.refresh()
	}
	return c.value, c.ok
}

func (c *refreshCache[T]) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()
	v, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = false
	c.fetchedAt = c.now()
	if err != nil {
		var zero T
		c.value, c.ok = zero, false
		return
	}
	c.value, c.ok = v, true
}
