package llm

import (
	"context"
	"sync"

	"github.com/spherical-ai/appraisal/internal/domain"
)

// Conversation keeps a fixed system instruction and a rolling window of recent
// messages in front of every request. It is safe for concurrent use; exchanges
// are serialized so the window stays consistent.
type Conversation struct {
	mu       sync.Mutex
	model    domain.ChatModel
	system   string
	maxTurns int
	history  []domain.Message
}

// NewConversation creates a conversation that remembers at most maxTurns messages.
func NewConversation(model domain.ChatModel, system string, maxTurns int) *Conversation {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &Conversation{
		model:    model,
		system:   system,
		maxTurns: maxTurns,
	}
}

// Ask sends user with the current window and records the exchange on success.
// A failed exchange leaves the window untouched.
func (c *Conversation) Ask(ctx context.Context, user string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.model.Send(ctx, c.system, c.history, user)
	if err != nil {
		return "", err
	}

	c.history = append(c.history,
		domain.Message{Role: domain.RoleUser, Content: user},
		domain.Message{Role: domain.RoleAssistant, Content: reply},
	)
	if over := len(c.history) - c.maxTurns; over > 0 {
		c.history = append([]domain.Message(nil), c.history[over:]...)
	}
	return reply, nil
}

// History returns a copy of the current window.
func (c *Conversation) History() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.history...)
}

// Reset clears the window.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}
