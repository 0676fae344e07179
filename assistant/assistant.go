// Package assistant answers in-app chat messages.
package assistant

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	Greeting = "Hello! I'm your OnePoint ALO assistant. I can help you create needs, find providers, and manage your tasks. How can I assist you today?"
)

type Message struct {
	Role    string
	Content string
}

// Responder produces the assistant's next message for a conversation.
type Responder interface {
	Reply(ctx context.Context, history []Message) (string, error)
}

func lastUserMessage(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content
		}
	}
	return ""
}
