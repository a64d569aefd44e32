package poller_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/couchcryptid/drought-dashboard/internal/poller"
	"github.com/couchcryptid/drought-dashboard/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// --- mocks ---

// scriptedFetcher answers each call with the next scripted response. A call
// with a gate blocks until the gate is closed.
type scriptedFetcher struct {
	mu          sync.Mutex
	villages    []villageReply
	allocations []allocationReply
	villageN    atomic.Int64
	allocationN atomic.Int64
}

type villageReply struct {
	villages []domain.Village
	err      error
	gate     chan struct{}
}

type allocationReply struct {
	plan domain.AllocationPlan
	err  error
	gate chan struct{}
}

func (f *scriptedFetcher) FetchVillages(ctx context.Context) ([]domain.Village, error) {
	i := int(f.villageN.Add(1) - 1)
	f.mu.Lock()
	reply := f.villages[min(i, len(f.villages)-1)]
	f.mu.Unlock()
	if reply.gate != nil {
		select {
		case <-reply.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return reply.villages, reply.err
}

func (f *scriptedFetcher) FetchAllocation(ctx context.Context) (domain.AllocationPlan, error) {
	i := int(f.allocationN.Add(1) - 1)
	f.mu.Lock()
	reply := f.allocations[min(i, len(f.allocations)-1)]
	f.mu.Unlock()
	if reply.gate != nil {
		select {
		case <-reply.gate:
		case <-ctx.Done():
			return domain.AllocationPlan{}, ctx.Err()
		}
	}
	return reply.plan, reply.err
}

func fiveVillages() []domain.Village {
	out := make([]domain.Village, 5)
	for i := range out {
		out[i] = domain.Village{ID: fmt.Sprintf("V%03d", i+1), WSI: float64(i * 20)}
	}
	return out
}

func newTestPoller(f poller.Fetcher, clock clockwork.Clock) (*poller.Poller, *store.Store) {
	s := store.New(clock)
	return poller.New(f, s, clock, 30*time.Second, slog.Default(), observability.NewMetricsForTesting()), s
}

// --- tests ---

func TestRefresh_BothSucceed(t *testing.T) {
	f := &scriptedFetcher{
		villages:    []villageReply{{villages: fiveVillages()}},
		allocations: []allocationReply{{plan: domain.AllocationPlan{TotalTankersAssigned: 3}}},
	}
	p, s := newTestPoller(f, clockwork.NewFakeClock())

	r := p.Refresh(context.Background())

	assert.Equal(t, poller.Result{Villages: poller.Applied, Allocation: poller.Applied}, r)
	assert.Len(t, s.Villages().Villages, 5)
	assert.Equal(t, 3, s.Allocation().Plan.TotalTankersAssigned)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRefresh_PartialFailure(t *testing.T) {
	f := &scriptedFetcher{
		villages:    []villageReply{{villages: fiveVillages()}},
		allocations: []allocationReply{{err: errors.New("allocator unavailable")}},
	}
	p, s := newTestPoller(f, clockwork.NewFakeClock())

	r := p.Refresh(context.Background())

	assert.Equal(t, poller.Applied, r.Villages)
	assert.Equal(t, poller.Failed, r.Allocation)

	v := s.Villages()
	require.Len(t, v.Villages, 5)
	assert.NoError(t, v.Err)
	assert.Equal(t, domain.TierCritical, v.Villages[4].Tier())

	a := s.Allocation()
	assert.EqualError(t, a.Err, "allocator unavailable")
	assert.False(t, a.Loading)
}

func TestRefresh_FailureKeepsLastGood(t *testing.T) {
	f := &scriptedFetcher{
		villages: []villageReply{
			{villages: fiveVillages()},
			{err: errors.New("timeout")},
		},
		allocations: []allocationReply{{plan: domain.AllocationPlan{TotalTankersAssigned: 1}}},
	}
	p, s := newTestPoller(f, clockwork.NewFakeClock())

	p.Refresh(context.Background())
	r := p.Refresh(context.Background())

	assert.Equal(t, poller.Failed, r.Villages)
	assert.Len(t, s.Villages().Villages, 5)
	assert.Error(t, s.Villages().Err)
}

func TestRefresh_NotReadyUntilVillagesApplied(t *testing.T) {
	f := &scriptedFetcher{
		villages:    []villageReply{{err: errors.New("down")}},
		allocations: []allocationReply{{}},
	}
	p, _ := newTestPoller(f, clockwork.NewFakeClock())

	p.Refresh(context.Background())

	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestRefresh_OverlappingCallsApplyInCallOrder(t *testing.T) {
	gate := make(chan struct{})
	f := &scriptedFetcher{
		villages: []villageReply{
			{villages: []domain.Village{{ID: "OLD"}}, gate: gate},
			{villages: []domain.Village{{ID: "NEW"}}},
		},
		allocations: []allocationReply{{}},
	}
	p, s := newTestPoller(f, clockwork.NewFakeClock())

	firstDone := make(chan poller.Result, 1)
	go func() { firstDone <- p.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return f.villageN.Load() == 1 }, time.Second, time.Millisecond)

	second := p.Refresh(context.Background())
	assert.Equal(t, poller.Applied, second.Villages)

	close(gate)
	first := <-firstDone
	assert.Equal(t, poller.Stale, first.Villages)

	v := s.Villages()
	require.Len(t, v.Villages, 1)
	assert.Equal(t, "NEW", v.Villages[0].ID)
	assert.False(t, v.Loading)
}

func TestRefresh_HooksRunOnlyOnApply(t *testing.T) {
	f := &scriptedFetcher{
		villages: []villageReply{
			{villages: fiveVillages()},
			{err: errors.New("down")},
		},
		allocations: []allocationReply{{}},
	}
	p, _ := newTestPoller(f, clockwork.NewFakeClock())

	var calls atomic.Int64
	p.OnVillages(func(_ context.Context, villages []domain.Village) {
		assert.Len(t, villages, 5)
		calls.Add(1)
	})

	p.Refresh(context.Background())
	p.Refresh(context.Background())

	assert.Equal(t, int64(1), calls.Load())
}

func TestRun_PollsOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	f := &scriptedFetcher{
		villages:    []villageReply{{villages: fiveVillages()}},
		allocations: []allocationReply{{}},
	}
	p, _ := newTestPoller(f, clock)

	p.Start(context.Background())

	require.Eventually(t, func() bool { return f.villageN.Load() == 1 }, time.Second, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(29 * time.Second)
	assert.Equal(t, int64(1), f.villageN.Load())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return f.villageN.Load() == 2 }, time.Second, time.Millisecond)

	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return f.villageN.Load() == 3 }, time.Second, time.Millisecond)

	p.Stop()
	p.Stop()
}

func TestStop_CancelsTimer(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	f := &scriptedFetcher{
		villages:    []villageReply{{villages: fiveVillages()}},
		allocations: []allocationReply{{}},
	}
	p, _ := newTestPoller(f, clock)

	p.Start(context.Background())
	p.Start(context.Background()) // second Start is a no-op
	require.Eventually(t, func() bool { return f.villageN.Load() == 1 }, time.Second, time.Millisecond)

	p.Stop()

	clock.Advance(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), f.villageN.Load())
}

func TestRun_ReturnsOnCancelledContext(t *testing.T) {
	f := &scriptedFetcher{
		villages:    []villageReply{{villages: fiveVillages()}},
		allocations: []allocationReply{{}},
	}
	p, _ := newTestPoller(f, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
}
