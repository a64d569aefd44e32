// Package incident turns applied village snapshots into published incidents.
package incident

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
)

// DefaultWriteTimeout bounds a single publish.
const DefaultWriteTimeout = 10 * time.Second

// Sink receives incidents.
type Sink interface {
	WriteIncidents(ctx context.Context, incidents []domain.Incident) error
}

// Publisher emits an incident when a village enters the critical or warning
// tier, or moves between them. A village that stays in the same tier is not
// re-published; one that recovers to safe is forgotten so a relapse raises a
// fresh incident.
type Publisher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	published map[string]domain.Tier
}

// NewPublisher creates a Publisher writing to sink.
func NewPublisher(sink Sink, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		sink:      sink,
		timeout:   DefaultWriteTimeout,
		logger:    logger,
		metrics:   metrics,
		published: make(map[string]domain.Tier),
	}
}

// Publish derives incidents from villages and writes those not already
// published. It has the poller.VillageHook signature. A failed write is
// retried on the next snapshot.
func (p *Publisher) Publish(ctx context.Context, villages []domain.Village) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := domain.DeriveIncidents(villages)
	pending := make([]domain.Incident, 0, len(all))
	current := make(map[string]domain.Tier, len(all))
	for _, inc := range all {
		current[inc.VillageID] = inc.Tier
		if p.published[inc.VillageID] != inc.Tier {
			pending = append(pending, inc)
		}
	}

	if len(pending) > 0 {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.sink.WriteIncidents(ctx, pending); err != nil {
			p.logger.Error("incident publish failed", "count", len(pending), "error", err)
			return
		}
		p.metrics.IncidentsWritten.Add(float64(len(pending)))
		p.logger.Info("incidents published", "count", len(pending))
	}
	p.published = current
}
