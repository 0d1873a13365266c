package domain

// Role identifies the author of a conversation message.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a conversation.
type Message struct {
	// Role is user or assistant.
	Role Role `json:"role"`

	// Content is the turn text. For assistant turns it grows while streaming.
	Content string `json:"content"`

	// Evidence is the evidence shown for an assistant turn.
	Evidence []EvidenceItem `json:"evidence,omitempty"`
}

// LatestUserMessage returns the content of the last user turn.
func LatestUserMessage(history []Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}
