package chat

import (
	"encoding/json"
	"strings"

	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/pkg/llm"
)

// FunctionCall is a model request to run a kernel function
type FunctionCall struct {
	Function  string      `json:"function"`
	Arguments kernel.Args `json:"arguments,omitempty"`
}

// wireCall accepts both the documented shape and the
// {"name": ..., "parameters": ...} shape small models tend to emit.
type wireCall struct {
	Function   string      `json:"function"`
	Name       string      `json:"name"`
	Arguments  kernel.Args `json:"arguments"`
	Parameters kernel.Args `json:"parameters"`
}

// ParseFunctionCall recognises a reply that consists of a single function
// call object, optionally wrapped in a markdown code fence.
func ParseFunctionCall(content string) (FunctionCall, bool) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if !strings.HasPrefix(text, "{") {
		return FunctionCall{}, false
	}

	var w wireCall
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return FunctionCall{}, false
	}

	call := FunctionCall{Function: w.Function, Arguments: w.Arguments}
	if call.Function == "" {
		call.Function = w.Name
	}
	if call.Arguments == nil {
		call.Arguments = w.Parameters
	}
	if _, _, ok := kernel.SplitName(call.Function); !ok {
		return FunctionCall{}, false
	}
	if call.Arguments == nil {
		call.Arguments = kernel.Args{}
	}
	return call, true
}

// IsFunctionRelated reports whether content looks like a function call or
// function result rather than a reply meant for the user.
func IsFunctionRelated(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.Contains(content, "function call") ||
		strings.Contains(content, "function result") ||
		strings.HasPrefix(trimmed, "{") ||
		strings.HasPrefix(trimmed, "[") ||
		strings.HasPrefix(trimmed, "```")
}

// LastAssistantReply returns the content of the last assistant turn that is
// not function-related, or llm.FallbackContent when there is none.
func LastAssistantReply(conv llm.Conversation) string {
	for i := len(conv) - 1; i >= 0; i-- {
		turn := conv[i]
		if turn.Role != llm.RoleAssistant || IsFunctionRelated(turn.Content) {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		return turn.Content
	}
	return llm.FallbackContent
}
