// Package chat holds the assistant conversation for the dashboard.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
)

// Greeting opens every session.
const Greeting = "Hello Administrator. I am the SUVIDHA Engine, monitoring the district telemetry in real-time. How can I assist you with the drought assessment today?"

// HistoryWindow is how many prior messages accompany a new one.
const HistoryWindow = 5

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is already pending")
)

// Replier produces the assistant's answer to a conversation window.
type Replier interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Session is a single conversation. It allows one pending send at a time.
type Session struct {
	replier Replier
	logger  *slog.Logger

	mu       sync.Mutex
	messages []domain.ChatMessage
	loading  bool
}

// NewSession starts a conversation with the greeting.
func NewSession(r Replier, logger *slog.Logger) *Session {
	return &Session{
		replier:  r,
		logger:   logger,
		messages: []domain.ChatMessage{{Role: domain.RoleAssistant, Content: Greeting}},
	}
}

// Send appends the user's message, asks for a reply and appends it. A
// backend failure appends a fixed assistant notice instead and is not
// returned as an error.
func (s *Session) Send(ctx context.Context, text string) ([]domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	user := domain.ChatMessage{Role: domain.RoleUser, Content: text}
	window := append(lastN(s.messages, HistoryWindow), user)
	s.messages = append(s.messages, user)
	s.loading = true
	s.mu.Unlock()

	reply, err := s.replier.Chat(ctx, window)
	if err != nil {
		s.logger.Warn("chat request failed", "error", err)
		reply = backend.MsgChatUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})
	s.loading = false
	return s.historyLocked(), nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

// Loading reports whether a reply is pending.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) historyLocked() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// lastN returns a fresh slice holding the final n messages.
func lastN(msgs []domain.ChatMessage, n int) []domain.ChatMessage {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]domain.ChatMessage, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return out
}
