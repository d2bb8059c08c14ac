package pipeline

import (
	"context"
)

// Roles for completion messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn sent to the text-completion service.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is the single request shape used by every LLM call
// site (classification, translation, narration).
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int64
}

// LLMClient is the narrow capability interface over the text-completion
// service. The pipeline's control flow and validation logic depend only
// on this, so they are testable with a stub.
type LLMClient interface {
	// Complete sends the request and returns the response text.
	// Failures surface as errors, never as partial output.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
