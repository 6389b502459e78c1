package openaicompat

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// LineKind classifies a single line of an event stream
type LineKind int

const (
	// LineSkip is any line that carries no data payload
	LineSkip LineKind = iota
	// LineFragment carries a content delta
	LineFragment
	// LineDone is the end-of-stream sentinel
	LineDone
)

// LineResult is the decoded form of one stream line
type LineResult struct {
	Kind     LineKind
	Fragment llm.Fragment
}

// EncodeRequest serializes a completion request into a chat-completions body
func EncodeRequest(req llm.CompletionRequest) ([]byte, error) {
	if len(req.Turns) == 0 {
		return nil, llm.ErrEmptyConversation
	}

	messages := make([]ChatMessage, len(req.Turns))
	for i, turn := range req.Turns {
		if !utf8.ValidString(turn.Content) {
			return nil, fmt.Errorf("%w: turn %d (%s)", llm.ErrEncoding, i, turn.Role)
		}
		messages[i] = ChatMessage{
			Role:    turn.Role.String(),
			Content: turn.Content,
		}
	}

	body, err := json.Marshal(ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEncoding, err)
	}
	return body, nil
}

// DecodeBuffered parses a buffered chat-completions response.
// Only the first choice is consulted. An empty choices array yields
// llm.ErrEmptyChoices, which callers are expected to absorb.
func DecodeBuffered(body []byte) (*llm.CompletionResult, error) {
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.ErrEmptyChoices
	}

	choice := resp.Choices[0]
	finishReason := llm.FinishReasonUnknown
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		finishReason = *choice.FinishReason
	}

	return &llm.CompletionResult{
		Content:      choice.Message.Content,
		FinishReason: finishReason,
		Usage:        resp.Usage,
	}, nil
}

// DecodeStreamLine decodes one line of a server-sent event stream
func DecodeStreamLine(line string) (LineResult, error) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return LineResult{Kind: LineSkip}, nil
	}

	data := strings.TrimPrefix(line, dataPrefix)
	if data == doneMarker {
		return LineResult{Kind: LineDone}, nil
	}

	var chunk ChatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return LineResult{}, fmt.Errorf("%w: %v", llm.ErrMalformedStreamChunk, err)
	}

	var frag llm.Fragment
	if len(chunk.Choices) > 0 {
		frag.Content = chunk.Choices[0].Delta.Content
	}
	return LineResult{Kind: LineFragment, Fragment: frag}, nil
}
