package llm

import "strings"

// Role identifies the author of a conversation turn
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleTool
)

// String returns the lower-case wire name of the role
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire role name back to a Role
func ParseRole(name string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "system":
		return RoleSystem, true
	case "user":
		return RoleUser, true
	case "assistant":
		return RoleAssistant, true
	case "tool":
		return RoleTool, true
	default:
		return RoleUser, false
	}
}

// Turn is one role-tagged message in a conversation
type Turn struct {
	Role    Role
	Content string
}

// Conversation is an ordered dialogue history
type Conversation []Turn

// Append returns a copy of the conversation with the turns added
func (c Conversation) Append(turns ...Turn) Conversation {
	out := make(Conversation, 0, len(c)+len(turns))
	out = append(out, c...)
	return append(out, turns...)
}

// System, User, Assistant and Tool build single turns
func System(content string) Turn    { return Turn{Role: RoleSystem, Content: content} }
func User(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func Assistant(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }
func Tool(content string) Turn      { return Turn{Role: RoleTool, Content: content} }

// CompletionRequest is built fresh for every call
type CompletionRequest struct {
	Model       string
	Turns       Conversation
	Temperature float64
	Stream      bool
}

// Usage reports token accounting when the backend provides it
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is the finalized reply of a buffered call
type CompletionResult struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// Fragment is one incremental piece of streamed content
type Fragment struct {
	Content string
}

// Settings carries per-call generation options
type Settings struct {
	Model       string
	Temperature float64
}

const (
	// FinishReasonUnknown is used when the backend omits finish_reason
	FinishReasonUnknown = "unknown"

	// FallbackContent replaces an empty buffered reply
	FallbackContent = "I apologize, but I couldn't generate a proper response."
)
