// Package insight manages the advisory request for the selected village.
//
// The manager is a small state machine:
//
//	idle ──Select──▶ loading ──▶ success | error
//	  ▲                 ▲  │
//	  └──── Close ──────┼──┘ (from any state)
//	                    └── Select / SetLanguage (from any non-idle state)
//
// Each trigger bumps a generation counter. A response is applied only if its
// generation is still current and the manager is still loading, so results
// land in trigger order regardless of arrival order. Close returns to idle
// without touching the generation; a response arriving after Close finds the
// manager idle and is dropped.
package insight

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
)

// Fetcher generates an advisory for one village.
type Fetcher interface {
	FetchInsight(ctx context.Context, villageID string, lang domain.Language) (string, error)
}

// Status is the manager's current state.
type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

// State is a snapshot of the insight workflow.
type State struct {
	Village      *domain.Village `json:"village,omitempty"`
	Language     domain.Language `json:"language"`
	Status       Status          `json:"status"`
	Text         string          `json:"text,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Generation   uint64          `json:"generation"`
}

// Manager is safe for concurrent use.
type Manager struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	village   *domain.Village
	language  domain.Language
	status    Status
	text      string
	errMsg    string
	gen       uint64
	cancelGen context.CancelFunc

	subMu sync.Mutex
	subs  map[int]chan State
	subID int
}

// New creates an idle manager. Requests that run longer than timeout fail
// with a timeout message.
func New(f Fetcher, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	base, shutdown := context.WithCancel(context.Background())
	return &Manager{
		fetcher:  f,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
		base:     base,
		shutdown: shutdown,
		language: domain.English,
		status:   Idle,
		subs:     make(map[int]chan State),
	}
}

// Select makes v the selected village and requests its advisory in the
// current language.
func (m *Manager) Select(v domain.Village) {
	m.mu.Lock()
	m.village = &v
	m.trigger()
}

// Open selects v and switches to lang in one step, issuing a single request.
func (m *Manager) Open(v domain.Village, lang domain.Language) {
	m.mu.Lock()
	m.village = &v
	m.language = lang
	m.trigger()
}

// SetLanguage changes the advisory language. With a village selected this
// re-requests the advisory; otherwise it only records the choice.
func (m *Manager) SetLanguage(lang domain.Language) {
	m.mu.Lock()
	m.language = lang
	if m.village == nil {
		m.mu.Unlock()
		m.notify()
		return
	}
	m.trigger()
}

// Close deselects the village and returns to idle. An in-flight request is
// left running and its result is dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	m.village = nil
	m.status = Idle
	m.text = ""
	m.errMsg = ""
	m.mu.Unlock()
	m.notify()
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Wait blocks until every request goroutine has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels all in-flight requests and waits for them.
func (m *Manager) Shutdown() {
	m.shutdown()
	m.wg.Wait()
}

// Subscribe returns a channel receiving a snapshot after every state change
// and a function that unsubscribes and closes it. Snapshots arrive in state
// order. A subscriber whose buffer is full loses its oldest snapshot, never
// the newest.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	m.subMu.Lock()
	id := m.subID
	m.subID++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

// trigger starts a new generation. It must be called with m.mu held and
// releases it.
func (m *Manager) trigger() {
	m.gen++
	gen := m.gen
	village := *m.village
	lang := m.language
	m.status = Loading
	m.text = ""
	m.errMsg = ""

	// The superseded request can no longer be applied; stop waiting on it.
	if m.cancelGen != nil {
		m.cancelGen()
	}
	ctx, cancel := context.WithTimeout(m.base, m.timeout)
	m.cancelGen = cancel

	m.wg.Add(1)
	m.mu.Unlock()
	m.notify()

	m.logger.Debug("insight requested", "village_id", village.ID, "language", lang, "generation", gen)
	go m.resolve(ctx, cancel, gen, village, lang)
}

func (m *Manager) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, village domain.Village, lang domain.Language) {
	defer m.wg.Done()
	defer cancel()

	text, err := m.fetcher.FetchInsight(ctx, village.ID, lang)

	m.mu.Lock()
	if gen != m.gen || m.status != Loading {
		current := m.gen
		m.mu.Unlock()
		m.logger.Debug("stale insight discarded", "village_id", village.ID, "generation", gen, "current", current)
		m.metrics.InsightRequests.WithLabelValues("stale").Inc()
		return
	}
	if err != nil {
		m.status = Error
		m.errMsg = backend.UserMessage(err, backend.MsgInsightUnavailable)
	} else {
		m.status = Success
		m.text = text
	}
	m.cancelGen = nil
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("insight request failed", "village_id", village.ID, "language", lang, "error", err)
		m.metrics.InsightRequests.WithLabelValues("error").Inc()
	} else {
		m.metrics.InsightRequests.WithLabelValues("success").Inc()
	}
	m.notify()
}

func (m *Manager) snapshot() State {
	s := State{
		Language:     m.language,
		Status:       m.status,
		Text:         m.text,
		ErrorMessage: m.errMsg,
		Generation:   m.gen,
	}
	if m.village != nil {
		v := *m.village
		s.Village = &v
	}
	return s
}

// notify holds m.mu while sending so deliveries follow state order.
func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snapshot()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
