package openaicompat

import (
	"context"
	"sync"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

// MockService implements the llm capabilities for testing
type MockService struct {
	mu sync.Mutex

	// ChatFunc allows customizing the buffered behavior
	ChatFunc func(context.Context, llm.Conversation, llm.Settings) (*llm.CompletionResult, error)

	// StreamFunc allows customizing the streaming behavior
	StreamFunc func(context.Context, llm.Conversation, llm.Settings) (*llm.Stream, error)

	// Tracking for assertions
	ChatCalls   []llm.Conversation
	StreamCalls []llm.Conversation
	Settings    []llm.Settings
}

var (
	_ llm.ChatProvider = (*MockService)(nil)
	_ llm.TextProvider = (*MockService)(nil)
)

// NewMockService creates a new mock with default behavior
func NewMockService() *MockService {
	return &MockService{
		ChatCalls:   make([]llm.Conversation, 0),
		StreamCalls: make([]llm.Conversation, 0),
	}
}

// Chat implements llm.ChatProvider.Chat
func (m *MockService) Chat(ctx context.Context, conv llm.Conversation, settings llm.Settings) (*llm.CompletionResult, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, conv)
	m.Settings = append(m.Settings, settings)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, conv, settings)
	}

	return &llm.CompletionResult{
		Content:      "This is a mock response.",
		FinishReason: "stop",
		Usage: &llm.Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	}, nil
}

// StreamChat implements llm.ChatProvider.StreamChat
func (m *MockService) StreamChat(ctx context.Context, conv llm.Conversation, settings llm.Settings) (*llm.Stream, error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, conv)
	m.Settings = append(m.Settings, settings)
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, conv, settings)
	}

	return llm.NewStaticStream(ctx,
		llm.Fragment{Content: "This is "},
		llm.Fragment{Content: "a mock response."},
	), nil
}

// Complete implements llm.TextProvider.Complete
func (m *MockService) Complete(ctx context.Context, prompt string, settings llm.Settings) (*llm.CompletionResult, error) {
	return m.Chat(ctx, llm.Conversation{llm.User(prompt)}, settings)
}

// StreamComplete implements llm.TextProvider.StreamComplete
func (m *MockService) StreamComplete(ctx context.Context, prompt string, settings llm.Settings) (*llm.Stream, error) {
	return m.StreamChat(ctx, llm.Conversation{llm.User(prompt)}, settings)
}

// Reset clears the call history
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChatCalls = make([]llm.Conversation, 0)
	m.StreamCalls = make([]llm.Conversation, 0)
	m.Settings = nil
}

// GetChatCallCount returns the number of buffered calls made
func (m *MockService) GetChatCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}

// GetStreamCallCount returns the number of stream calls made
func (m *MockService) GetStreamCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.StreamCalls)
}
