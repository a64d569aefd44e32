// Package render formats advisory and chat markdown for the terminal.
//
// Each message is rendered on its own. A message that fails to render,
// including one that panics the renderer, falls back to its raw text and
// never affects the messages around it.
package render

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/glamour"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
)

// DefaultWordWrap is the wrap width for terminal output.
const DefaultWordWrap = 80

// Renderer turns markdown into display text.
type Renderer interface {
	Render(markdown string) (string, error)
}

// Markdown renders through glamour.
type Markdown struct {
	r      Renderer
	logger *slog.Logger
}

// NewTerminal creates a Markdown renderer that picks a style for the
// terminal it runs in.
func NewTerminal(width int, logger *slog.Logger) (*Markdown, error) {
	if width <= 0 {
		width = DefaultWordWrap
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return New(tr, logger), nil
}

// NewPlain creates a Markdown renderer without colour, for pipes and files.
func NewPlain(width int, logger *slog.Logger) (*Markdown, error) {
	if width <= 0 {
		width = DefaultWordWrap
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return New(tr, logger), nil
}

// New wraps an arbitrary Renderer with per-message isolation.
func New(r Renderer, logger *slog.Logger) *Markdown {
	return &Markdown{r: r, logger: logger}
}

// Message renders one markdown message, falling back to the raw text.
func (m *Markdown) Message(markdown string) (out string) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Warn("markdown render panicked", "panic", p)
			out = markdown
		}
	}()

	rendered, err := m.r.Render(markdown)
	if err != nil {
		m.logger.Warn("markdown render failed", "error", err)
		return markdown
	}
	return rendered
}

// Conversation renders each message independently and prefixes it with its
// speaker.
func (m *Markdown) Conversation(messages []domain.ChatMessage) []string {
	out := make([]string, len(messages))
	for i, msg := range messages {
		out[i] = speaker(msg.Role) + "\n" + m.Message(msg.Content)
	}
	return out
}

func speaker(role string) string {
	if role == domain.RoleUser {
		return "You:"
	}
	return "Engine:"
}
