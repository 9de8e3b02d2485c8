package types

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in the running conversation. The same shape is
// used on the wire to the chat-completion service and in persisted history,
// so a stored conversation reloads into an equivalent in-memory sequence.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID ties a RoleTool result message to the invocation it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the tool name on RoleTool messages.
	Name string `json:"name,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage builds a user-role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage builds a tool-role message tagged to its invocation.
func ToolResultMessage(callID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       name,
	}
}

// IsExchangeStart reports whether the message opens a user exchange. History
// pruning drops whole exchanges, so boundaries matter.
func (m Message) IsExchangeStart() bool {
	return m.Role == RoleUser
}
