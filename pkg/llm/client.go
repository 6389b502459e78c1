package llm

import (
	"context"
)

// ChatProvider produces chat completions for a multi-turn conversation
type ChatProvider interface {
	// Chat sends a buffered chat completion request
	Chat(ctx context.Context, conv Conversation, settings Settings) (*CompletionResult, error)

	// StreamChat sends a streaming chat completion request
	StreamChat(ctx context.Context, conv Conversation, settings Settings) (*Stream, error)
}

// TextProvider produces completions for a single prompt
type TextProvider interface {
	// Complete sends a buffered text completion request
	Complete(ctx context.Context, prompt string, settings Settings) (*CompletionResult, error)

	// StreamComplete sends a streaming text completion request
	StreamComplete(ctx context.Context, prompt string, settings Settings) (*Stream, error)
}
