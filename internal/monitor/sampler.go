// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/model"
)

// Collector produces one snapshot. It must honour ctx and never fail:
// unreadable counters are left at their zero value.
type Collector interface {
	Collect(ctx context.Context) model.SystemSnapshot
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context) model.SystemSnapshot

// Collect implements Collector.
func (f CollectorFunc) Collect(ctx context.Context) model.SystemSnapshot { return f(ctx) }

// TickerFunc creates a tick source and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Sampler runs a Collector periodically.
type Sampler struct {
	collector Collector
	interval  time.Duration
	timeout   time.Duration
	newTicker TickerFunc
	log       *zap.Logger

	busy    atomic.Bool
	emitted atomic.Int64
	dropped atomic.Int64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithTimeout bounds a single Collect call. Default: the interval.
func WithTimeout(d time.Duration) Option {
	return func(s *Sampler) { s.timeout = d }
}

// WithTicker replaces the tick source.
func WithTicker(f TickerFunc) Option {
	return func(s *Sampler) { s.newTicker = f }
}

// NewSampler creates a sampler with the given period.
func NewSampler(c Collector, interval time.Duration, opts ...Option) *Sampler {
	s := &Sampler{
		collector: c,
		interval:  interval,
		timeout:   interval,
		newTicker: systemTicker,
		log:       logging.Named("monitor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout <= 0 || s.timeout > interval {
		s.timeout = interval
	}
	return s
}

// Run samples until ctx is done, passing each snapshot to emit. emit is
// called from a sampling goroutine. It may block; ticks that arrive while
// it does are counted as dropped rather than queued. Run waits for an
// in-flight sample before returning, so emit is never called after Run
// returns.
func (s *Sampler) Run(ctx context.Context, emit func(model.SystemSnapshot)) error {
	ticks, stop := s.newTicker(s.interval)
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("sampler stopped",
				zap.Int64("emitted", s.emitted.Load()), zap.Int64("dropped", s.dropped.Load()))
			return nil
		case <-ticks:
			if !s.busy.CompareAndSwap(false, true) {
				s.dropped.Add(1)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.busy.Store(false)
				s.sample(ctx, emit)
			}()
		}
	}
}

func (s *Sampler) sample(ctx context.Context, emit func(model.SystemSnapshot)) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	snap := s.collector.Collect(sctx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	if elapsed := time.Since(start); elapsed > s.interval {
		s.dropped.Add(1)
		s.log.Debug("sample overran period", zap.Duration("elapsed", elapsed))
		return
	}
	if snap.Taken.IsZero() {
		snap.Taken = start
	}
	s.emitted.Add(1)
	emit(snap)
}

// Stats returns how many snapshots were emitted and how many ticks or
// samples were dropped.
func (s *Sampler) Stats() (emitted, dropped int64) {
	return s.emitted.Load(), s.dropped.Load()
}
