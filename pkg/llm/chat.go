// Package llm provides the chat-model gateway: a narrow ChatModel
// interface, provider adapters (OpenAI-compatible and Anthropic), and a
// task-aware router that resolves model names and temperatures per
// research task.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// ChatModel is an opaque text producer. Implementations wrap a concrete
// provider SDK; the engine never inspects anything beyond the returned
// text.
type ChatModel interface {
	// Name returns the resolved model name, for logging and artifacts.
	Name() string

	// Complete sends the conversation and returns the assistant text.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }
