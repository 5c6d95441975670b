package model

import (
	"context"
	"sync"
)

// MockChatModel is a test implementation of ChatModel.
//
// Use MockChatModel in tests to verify workflow behavior without
// making actual LLM API calls. It provides:
//   - Configurable response sequences
//   - Call history tracking
//   - Error injection
//   - Thread-safe operation
//
// Example usage:
//
//	mock := &MockChatModel{
//	    Responses: []ChatOut{
//	        {Text: "First response"},
//	        {Text: "Second response"},
//	    },
//	}
//	out, _ := mock.Chat(ctx, messages)
//	// Returns "First response", then "Second response" on later calls;
//	// the last response repeats once the sequence is consumed.
type MockChatModel struct {
	// Responses contains the sequence of responses to return.
	Responses []ChatOut

	// Err, if set, is returned by Chat() instead of a response.
	Err error

	// Calls tracks the history of all Chat() invocations.
	Calls []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records a single invocation of Chat().
type MockChatCall struct {
	Messages []Message
}

// Chat implements the ChatModel interface.
//
// Always records the call in Calls regardless of outcome.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Messages: messages})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and resets the response index.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Chat() has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
