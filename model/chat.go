// Package model provides LLM integration adapters.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// This interface abstracts the differences between providers (OpenAI,
// Anthropic, Google Gemini), providing a unified API for chat-based
// generation and review.
//
// Implementations should:
//   - Handle provider-specific authentication
//   - Convert the standard Message format to the provider's format
//   - Respect context cancellation and timeouts
//   - Handle retries and rate limiting appropriately
//
// Example usage:
//
//	m, err := openai.NewChatModel(apiKey, "gpt-4o")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "You are an expert CBT Clinical Architect."},
//	    {Role: model.RoleUser, Content: prompt},
//	})
//	fmt.Println(out.Text)
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	//
	// Returns provider errors, network errors, or context
	// cancellation. Callers that must not fail on provider outages
	// (fail-safe nodes) are responsible for degrading locally.
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message represents a single message in an LLM conversation.
//
// Messages follow the common chat format used by OpenAI, Anthropic,
// Google, and other providers: an optional system message first, then
// alternating user and assistant messages.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string

	// Content contains the message text.
	Content string
}

// Standard role constants for LLM conversations.
const (
	// RoleSystem indicates a system message that sets context or
	// instructions.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	RoleUser = "user"

	// RoleAssistant indicates a response from the LLM.
	RoleAssistant = "assistant"
)

// ChatOut is the LLM's response to a Chat call.
type ChatOut struct {
	// Text contains the LLM's generated response.
	Text string

	// TokensUsed reports total token usage for the call when the
	// provider returns it, zero otherwise.
	TokensUsed int
}
