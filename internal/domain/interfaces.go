package domain

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// ChatModel is the language-model chat capability.
type ChatModel interface {
	// Send runs one completion over the system instruction, prior turns and the new user message.
	// Non-2xx responses fail with an upstream error, network failures with a transport error.
	Send(ctx context.Context, system string, history []Message, user string) (string, error)
}

// Summarizer shortens text to between minRatio and maxRatio of its character length.
type Summarizer interface {
	Summarize(ctx context.Context, text string, minRatio, maxRatio float64) (string, error)
}
