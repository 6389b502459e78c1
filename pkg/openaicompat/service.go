package openaicompat

import (
	"context"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

// Service exposes an HTTPClient as the llm chat and text capabilities
type Service struct {
	client *HTTPClient
}

// Ensure Service implements both capabilities
var (
	_ llm.ChatProvider = (*Service)(nil)
	_ llm.TextProvider = (*Service)(nil)
)

// NewService wraps a completion client
func NewService(client *HTTPClient) *Service {
	return &Service{client: client}
}

// Chat implements llm.ChatProvider.Chat
func (s *Service) Chat(ctx context.Context, conv llm.Conversation, settings llm.Settings) (*llm.CompletionResult, error) {
	return s.client.CompleteChat(ctx, conv, settings.Model, settings.Temperature)
}

// StreamChat implements llm.ChatProvider.StreamChat
func (s *Service) StreamChat(ctx context.Context, conv llm.Conversation, settings llm.Settings) (*llm.Stream, error) {
	return s.client.StreamChat(ctx, conv, settings.Model, settings.Temperature)
}

// Complete implements llm.TextProvider.Complete
func (s *Service) Complete(ctx context.Context, prompt string, settings llm.Settings) (*llm.CompletionResult, error) {
	return s.client.CompleteText(ctx, prompt, settings.Model, settings.Temperature)
}

// StreamComplete implements llm.TextProvider.StreamComplete
func (s *Service) StreamComplete(ctx context.Context, prompt string, settings llm.Settings) (*llm.Stream, error) {
	return s.client.StreamText(ctx, prompt, settings.Model, settings.Temperature)
}
