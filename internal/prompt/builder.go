package prompt

import (
	"strings"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

// PromptRequest contains everything needed to build the conversation sent to the model
type PromptRequest struct {
	Instructions string           // demo system prompt
	Catalog      string           // kernel.Catalog output; empty disables function calling
	History      llm.Conversation // client-supplied turns, oldest first
}

// Builder constructs conversations for the chat provider
type Builder struct {
	maxHistory int
}

// NewBuilder creates a prompt builder that keeps at most maxHistory
// client turns (0 keeps everything).
func NewBuilder(maxHistory int) *Builder {
	return &Builder{maxHistory: maxHistory}
}

// BuildPrompt returns a new conversation: one system turn followed by the
// client history. Client system turns are dropped so the demo instructions
// cannot be overridden.
func (b *Builder) BuildPrompt(req PromptRequest) llm.Conversation {
	history := make(llm.Conversation, 0, len(req.History))
	for _, turn := range req.History {
		if turn.Role == llm.RoleSystem {
			continue
		}
		history = append(history, turn)
	}
	if b.maxHistory > 0 && len(history) > b.maxHistory {
		history = history[len(history)-b.maxHistory:]
	}

	conv := make(llm.Conversation, 0, len(history)+1)
	conv = append(conv, llm.System(b.buildSystemPrompt(req)))
	conv = append(conv, history...)
	return conv
}

// buildSystemPrompt joins the demo instructions with the function catalog
func (b *Builder) buildSystemPrompt(req PromptRequest) string {
	var sb strings.Builder
	sb.Grow(len(req.Instructions) + len(req.Catalog) + 512)

	sb.WriteString(strings.TrimSpace(req.Instructions))

	if strings.TrimSpace(req.Catalog) == "" {
		return sb.String()
	}

	sb.WriteString("\n\nFUNCTIONS:\n")
	sb.WriteString(req.Catalog)
	sb.WriteString("\nFUNCTION CALLING:\n")
	sb.WriteString("- To call a function, reply with only a JSON object and nothing else:\n")
	sb.WriteString(`  {"function": "Plugin.function_name", "arguments": {"name": "value"}}`)
	sb.WriteString("\n")
	sb.WriteString("- The result comes back in a tool message. Use it to answer the user in plain language.\n")
	sb.WriteString("- Never show JSON to the user and never invent function results.\n")

	return sb.String()
}
