package insight_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/insight"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// --- mocks ---

type call struct {
	villageID string
	lang      domain.Language
	reply     chan reply
}

type reply struct {
	text string
	err  error
}

// manualFetcher hands each request to the test, which decides when and how
// it resolves. Requests ignore cancellation so a superseded call can still
// deliver a late success.
type manualFetcher struct {
	calls chan call
}

func newManualFetcher() *manualFetcher {
	return &manualFetcher{calls: make(chan call, 16)}
}

func (f *manualFetcher) FetchInsight(_ context.Context, villageID string, lang domain.Language) (string, error) {
	c := call{villageID: villageID, lang: lang, reply: make(chan reply, 1)}
	f.calls <- c
	r := <-c.reply
	return r.text, r.err
}

func (f *manualFetcher) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("expected an insight request")
		return call{}
	}
}

type funcFetcher func(ctx context.Context, villageID string, lang domain.Language) (string, error)

func (f funcFetcher) FetchInsight(ctx context.Context, villageID string, lang domain.Language) (string, error) {
	return f(ctx, villageID, lang)
}

var (
	villageA = domain.Village{ID: "V001", Name: "Ramtek", WSI: 82}
	villageB = domain.Village{ID: "V002", Name: "Saoner", WSI: 45}
)

func newTestManager(f insight.Fetcher) *insight.Manager {
	return insight.New(f, 5*time.Second, slog.Default(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestManager_StartsIdle(t *testing.T) {
	m := newTestManager(newManualFetcher())

	s := m.State()
	assert.Equal(t, insight.Idle, s.Status)
	assert.Nil(t, s.Village)
	assert.Equal(t, domain.English, s.Language)
}

func TestManager_SelectSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	assert.Equal(t, insight.Loading, m.State().Status)

	c := f.next(t)
	assert.Equal(t, "V001", c.villageID)
	assert.Equal(t, domain.English, c.lang)
	c.reply <- reply{text: "- Dispatch 2 tankers"}
	m.Wait()

	s := m.State()
	assert.Equal(t, insight.Success, s.Status)
	assert.Equal(t, "- Dispatch 2 tankers", s.Text)
	require.NotNil(t, s.Village)
	assert.Equal(t, "V001", s.Village.ID)
}

func TestManager_LaterTriggerWinsRegardlessOfArrival(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	a1 := f.next(t)
	m.Select(villageB)
	b1 := f.next(t)

	b1.reply <- reply{text: "advisory for B"}
	a1.reply <- reply{text: "advisory for A"}
	m.Wait()

	s := m.State()
	assert.Equal(t, insight.Success, s.Status)
	assert.Equal(t, "advisory for B", s.Text)
	assert.Equal(t, "V002", s.Village.ID)
}

func TestManager_StaleErrorDiscarded(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	a1 := f.next(t)
	m.Select(villageB)
	b1 := f.next(t)

	a1.reply <- reply{err: errors.New("boom")}
	b1.reply <- reply{text: "advisory for B"}
	m.Wait()

	assert.Equal(t, insight.Success, m.State().Status)
	assert.Empty(t, m.State().ErrorMessage)
}

func TestManager_LanguageChangeRetriggers(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	english := f.next(t)
	english.reply <- reply{text: "english text"}
	m.Wait()
	require.Equal(t, insight.Success, m.State().Status)

	m.SetLanguage(domain.Hindi)
	s := m.State()
	assert.Equal(t, insight.Loading, s.Status)
	assert.Empty(t, s.Text, "previous text is cleared on a new trigger")

	first := f.next(t)
	assert.Equal(t, domain.Hindi, first.lang)

	m.SetLanguage(domain.Marathi)
	second := f.next(t)
	assert.Equal(t, domain.Marathi, second.lang)

	second.reply <- reply{text: "marathi text"}
	first.reply <- reply{text: "hindi text"}
	m.Wait()

	s = m.State()
	assert.Equal(t, domain.Marathi, s.Language)
	assert.Equal(t, "marathi text", s.Text)
}

func TestManager_LanguageWithoutVillageStaysIdle(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.SetLanguage(domain.Hindi)

	s := m.State()
	assert.Equal(t, insight.Idle, s.Status)
	assert.Equal(t, domain.Hindi, s.Language)
	assert.Empty(t, f.calls)

	m.Select(villageA)
	c := f.next(t)
	assert.Equal(t, domain.Hindi, c.lang)
	c.reply <- reply{text: "ok"}
	m.Wait()
}

func TestManager_ErrorSurfacesBackendDetail(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	f.next(t).reply <- reply{err: &backend.APIError{Status: 503, Detail: "Error: model is loading"}}
	m.Wait()

	s := m.State()
	assert.Equal(t, insight.Error, s.Status)
	assert.Equal(t, "Error: model is loading", s.ErrorMessage)
	assert.Empty(t, s.Text)
}

func TestManager_TransportErrorUsesFallback(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	f.next(t).reply <- reply{err: errors.New("connection refused")}
	m.Wait()

	assert.Equal(t, backend.MsgInsightUnavailable, m.State().ErrorMessage)
}

func TestManager_ErrorIsNotRetried(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	m := newTestManager(funcFetcher(func(context.Context, string, domain.Language) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", errors.New("down")
	}))

	m.Select(villageA)
	m.Wait()
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, insight.Error, m.State().Status)
}

func TestManager_Timeout(t *testing.T) {
	m := insight.New(funcFetcher(func(ctx context.Context, _ string, _ domain.Language) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 20*time.Millisecond, slog.Default(), observability.NewMetricsForTesting())

	m.Select(villageA)
	m.Wait()

	s := m.State()
	assert.Equal(t, insight.Error, s.Status)
	assert.Equal(t, backend.MsgTimedOut, s.ErrorMessage)
}

func TestManager_CloseReturnsToIdleAndDropsLateResult(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	c := f.next(t)

	m.Close()
	s := m.State()
	assert.Equal(t, insight.Idle, s.Status)
	assert.Nil(t, s.Village)

	c.reply <- reply{text: "late"}
	m.Wait()

	assert.Equal(t, insight.Idle, m.State().Status)
	assert.Empty(t, m.State().Text)
}

func TestManager_ReselectAfterClose(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Select(villageA)
	stale := f.next(t)
	m.Close()
	m.Select(villageB)
	fresh := f.next(t)

	stale.reply <- reply{text: "for A"}
	fresh.reply <- reply{text: "for B"}
	m.Wait()

	assert.Equal(t, "for B", m.State().Text)
}

func TestManager_Subscribe(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)
	states, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Select(villageA)
	assert.Equal(t, insight.Loading, (<-states).Status)

	f.next(t).reply <- reply{text: "done"}
	assert.Equal(t, insight.Success, (<-states).Status)
	m.Wait()
}

func TestManager_SlowSubscriberSeesLatestState(t *testing.T) {
	m := newTestManager(funcFetcher(func(_ context.Context, id string, lang domain.Language) (string, error) {
		return id + " " + string(lang), nil
	}))
	states, unsubscribe := m.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				m.Select(villageA)
			} else {
				m.SetLanguage(domain.Marathi)
			}
		}()
	}
	wg.Wait()
	m.Wait()

	var last insight.State
	for {
		select {
		case s := <-states:
			last = s
			continue
		default:
		}
		break
	}
	assert.Equal(t, m.State(), last)
}

func TestManager_ShutdownCancelsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(funcFetcher(func(ctx context.Context, _ string, _ domain.Language) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))

	m.Select(villageA)
	m.Shutdown()

	assert.Equal(t, insight.Error, m.State().Status)
}

func TestManager_OpenIssuesSingleRequest(t *testing.T) {
	f := newManualFetcher()
	m := newTestManager(f)

	m.Open(villageB, domain.Marathi)

	c := f.next(t)
	assert.Equal(t, "V002", c.villageID)
	assert.Equal(t, domain.Marathi, c.lang)
	assert.Empty(t, f.calls)
	assert.Equal(t, uint64(1), m.State().Generation)

	c.reply <- reply{text: "marathi advisory"}
	m.Wait()
	assert.Equal(t, "marathi advisory", m.State().Text)
}
