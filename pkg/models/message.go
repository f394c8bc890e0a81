package models

// MessageRole identifies the author type of a conversation message.
type MessageRole string

const (
	// MessageRoleSystem carries behavioral instructions.
	MessageRoleSystem MessageRole = "system"
	// MessageRoleUser carries the question or stage input.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant carries model output.
	MessageRoleAssistant MessageRole = "assistant"
)

// IsValid checks if the message role is defined.
func (r MessageRole) IsValid() bool {
	return r == MessageRoleSystem || r == MessageRoleUser || r == MessageRoleAssistant
}

// Message is one ordered turn of a model conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Name    string      `json:"name,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content}
}
