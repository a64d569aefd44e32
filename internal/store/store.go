// Package store holds the process-wide village and allocation state.
//
// Each slice has exactly one writer, the poller. Every fetch is issued a
// sequence number through Begin*; a Commit* whose sequence is older than the
// newest issued one is rejected, so responses are applied in call order no
// matter when they arrive. Readers get copies and may subscribe to changes.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Resource names a state slice.
type Resource string

const (
	Villages   Resource = "villages"
	Allocation Resource = "allocation"
)

// Event notifies subscribers that a slice changed.
type Event struct {
	Resource Resource
}

// VillageState is a snapshot of the village slice.
type VillageState struct {
	Villages  []domain.Village
	Loading   bool
	Err       error
	UpdatedAt time.Time
	Seq       uint64
}

// Loaded reports whether a village list has ever been applied.
func (s VillageState) Loaded() bool { return !s.UpdatedAt.IsZero() }

// AllocationState is a snapshot of the allocation slice.
type AllocationState struct {
	Plan      domain.AllocationPlan
	Loading   bool
	Err       error
	UpdatedAt time.Time
	Seq       uint64
}

// Loaded reports whether a plan has ever been applied.
func (s AllocationState) Loaded() bool { return !s.UpdatedAt.IsZero() }

// slot tracks sequencing for one resource.
type slot struct {
	issued  uint64 // newest sequence handed out
	applied uint64 // sequence of the response currently reflected
}

func (s *slot) begin() uint64 {
	s.issued++
	return s.issued
}

// accept reports whether a response for seq may still be applied.
func (s *slot) accept(seq uint64) bool {
	return seq == s.issued && seq > s.applied
}

// Store is safe for concurrent use.
type Store struct {
	clock clockwork.Clock

	mu         sync.RWMutex
	villages   VillageState
	villageSeq slot
	allocation AllocationState
	allocSeq   slot

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates an empty store.
func New(clock clockwork.Clock) *Store {
	return &Store{
		clock:    clock,
		villages: VillageState{Villages: []domain.Village{}},
		subs:     make(map[int]chan Event),
	}
}

// Villages returns a copy of the village slice.
func (s *Store) Villages() VillageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.villages
	v.Villages = slices.Clone(v.Villages)
	return v
}

// Allocation returns a copy of the allocation slice.
func (s *Store) Allocation() AllocationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.allocation
	a.Plan.Allocations = slices.Clone(a.Plan.Allocations)
	return a
}

// BeginVillages issues the next village sequence and marks the slice loading.
func (s *Store) BeginVillages() uint64 {
	s.mu.Lock()
	seq := s.villageSeq.begin()
	s.villages.Loading = true
	s.mu.Unlock()
	s.publish(Villages)
	return seq
}

// CommitVillages applies the outcome of fetch seq. On error the last good
// list is kept. It returns false, changing nothing, when a newer fetch has
// been issued since seq.
func (s *Store) CommitVillages(seq uint64, villages []domain.Village, err error) bool {
	s.mu.Lock()
	if !s.villageSeq.accept(seq) {
		s.mu.Unlock()
		return false
	}
	s.villageSeq.applied = seq
	s.villages.Loading = false
	s.villages.Seq = seq
	s.villages.Err = err
	if err == nil {
		if villages == nil {
			villages = []domain.Village{}
		}
		s.villages.Villages = slices.Clone(villages)
		s.villages.UpdatedAt = s.clock.Now()
	}
	s.mu.Unlock()
	s.publish(Villages)
	return true
}

// BeginAllocation issues the next allocation sequence and marks the slice loading.
func (s *Store) BeginAllocation() uint64 {
	s.mu.Lock()
	seq := s.allocSeq.begin()
	s.allocation.Loading = true
	s.mu.Unlock()
	s.publish(Allocation)
	return seq
}

// CommitAllocation is CommitVillages for the allocation plan.
func (s *Store) CommitAllocation(seq uint64, plan domain.AllocationPlan, err error) bool {
	s.mu.Lock()
	if !s.allocSeq.accept(seq) {
		s.mu.Unlock()
		return false
	}
	s.allocSeq.applied = seq
	s.allocation.Loading = false
	s.allocation.Seq = seq
	s.allocation.Err = err
	if err == nil {
		plan.Allocations = slices.Clone(plan.Allocations)
		s.allocation.Plan = plan
		s.allocation.UpdatedAt = s.clock.Now()
	}
	s.mu.Unlock()
	s.publish(Allocation)
	return true
}

// Subscribe returns a channel of change events and a function that
// unsubscribes and closes it. Events are dropped for a subscriber whose
// buffer is full; a subscriber only needs to know that something changed.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(r Resource) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- Event{Resource: r}:
		default:
		}
	}
}
