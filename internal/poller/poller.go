// Package poller keeps the store in sync with the backend.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/couchcryptid/drought-dashboard/internal/store"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the background refresh cadence.
const DefaultInterval = 30 * time.Second

// Fetcher reads the two polled resources.
type Fetcher interface {
	FetchVillages(ctx context.Context) ([]domain.Village, error)
	FetchAllocation(ctx context.Context) (domain.AllocationPlan, error)
}

// VillageHook is called after a new village list has been applied. Hooks run
// one list at a time in sequence order; a list overtaken by a newer one
// before its hooks ran is skipped.
type VillageHook func(ctx context.Context, villages []domain.Village)

// Outcome is what happened to one resource during a refresh.
type Outcome string

const (
	Applied Outcome = "applied"
	Stale   Outcome = "stale"
	Failed  Outcome = "error"
)

// Result reports the outcome of each resource in one refresh.
type Result struct {
	Villages   Outcome `json:"villages"`
	Allocation Outcome `json:"allocation"`
}

// Poller refreshes villages and the allocation plan on a fixed interval and
// on demand. The two resources are fetched concurrently and fail
// independently; the store discards any response overtaken by a newer call.
type Poller struct {
	fetcher  Fetcher
	store    *store.Store
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	hooksMu sync.RWMutex
	hooks   []VillageHook

	// hookRunMu serializes hook runs; hookedSeq is the newest village
	// sequence handed to the hooks.
	hookRunMu sync.Mutex
	hookedSeq uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Poller. An interval of zero or less uses DefaultInterval.
func New(f Fetcher, s *store.Store, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  f,
		store:    s,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// OnVillages registers a hook run after every applied village list.
func (p *Poller) OnVillages(h VillageHook) {
	p.hooksMu.Lock()
	defer p.hooksMu.Unlock()
	p.hooks = append(p.hooks, h)
}

// CheckReadiness returns nil once a village list has been applied.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("village status has not been fetched yet")
	}
	return nil
}

// Refresh fetches both resources once and waits for both to resolve.
func (p *Poller) Refresh(ctx context.Context) Result {
	var (
		r Result
		g errgroup.Group
	)
	g.Go(func() error {
		r.Villages = p.syncVillages(ctx)
		return nil
	})
	g.Go(func() error {
		r.Allocation = p.syncAllocation(ctx)
		return nil
	})
	_ = g.Wait()
	return r
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.metrics.PollTicks.Inc()
			p.Refresh(ctx)
		}
	}
}

// Start runs the poll loop in the background. Calling Start on a running
// poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
}

// Stop cancels the background loop and waits for it to exit.
func (p *Poller) Stop() {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) syncVillages(ctx context.Context) Outcome {
	seq := p.store.BeginVillages()
	start := p.clock.Now()

	villages, err := p.fetcher.FetchVillages(ctx)
	p.metrics.SyncDuration.WithLabelValues(string(store.Villages)).Observe(p.clock.Since(start).Seconds())

	if !p.store.CommitVillages(seq, villages, err) {
		p.logger.Debug("stale village status discarded", "seq", seq)
		p.metrics.SyncFetches.WithLabelValues(string(store.Villages), string(Stale)).Inc()
		return Stale
	}
	if err != nil {
		p.logger.Warn("village status fetch failed", "error", err, "seq", seq)
		p.metrics.SyncFetches.WithLabelValues(string(store.Villages), string(Failed)).Inc()
		return Failed
	}

	summary := domain.Summarize(villages)
	p.metrics.SyncFetches.WithLabelValues(string(store.Villages), string(Applied)).Inc()
	p.metrics.VillagesTracked.Set(float64(summary.Total))
	p.metrics.CriticalVillages.Set(float64(summary.Critical))
	p.ready.Store(true)
	p.logger.Debug("village status applied", "seq", seq, "count", summary.Total, "critical", summary.Critical)

	p.runHooks(ctx, seq, villages)
	return Applied
}

// runHooks hands an applied village list to the hooks unless a newer list
// has already been handed over.
func (p *Poller) runHooks(ctx context.Context, seq uint64, villages []domain.Village) {
	p.hookRunMu.Lock()
	defer p.hookRunMu.Unlock()
	if seq <= p.hookedSeq {
		p.logger.Debug("village hooks skipped for superseded list", "seq", seq, "current", p.hookedSeq)
		return
	}
	p.hookedSeq = seq

	p.hooksMu.RLock()
	hooks := append([]VillageHook(nil), p.hooks...)
	p.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, villages)
	}
}

func (p *Poller) syncAllocation(ctx context.Context) Outcome {
	seq := p.store.BeginAllocation()
	start := p.clock.Now()

	plan, err := p.fetcher.FetchAllocation(ctx)
	p.metrics.SyncDuration.WithLabelValues(string(store.Allocation)).Observe(p.clock.Since(start).Seconds())

	if !p.store.CommitAllocation(seq, plan, err) {
		p.logger.Debug("stale allocation plan discarded", "seq", seq)
		p.metrics.SyncFetches.WithLabelValues(string(store.Allocation), string(Stale)).Inc()
		return Stale
	}
	if err != nil {
		p.logger.Warn("allocation plan fetch failed", "error", err, "seq", seq)
		p.metrics.SyncFetches.WithLabelValues(string(store.Allocation), string(Failed)).Inc()
		return Failed
	}

	p.metrics.SyncFetches.WithLabelValues(string(store.Allocation), string(Applied)).Inc()
	p.logger.Debug("allocation plan applied", "seq", seq, "entries", len(plan.Allocations))
	return Applied
}
