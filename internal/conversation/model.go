package conversation

import "time"

const (
	// RoleCustomer marks the human caller's turns in the stored transcript.
	RoleCustomer = "customer"
	// RoleAgent marks the persona's turns.
	RoleAgent = "agent"
)

// Conversation is one voice/text session run against an agent persona.
// Lead is derived from sentiment at read time and never stored.
type Conversation struct {
	ID              string     `json:"id"`
	AgentID         string     `json:"agent_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	MessageCount    int        `json:"message_count"`
	Sentiment       Sentiment  `json:"sentiment"`
	Summary         *string    `json:"summary,omitempty"`
	Lead            bool       `json:"lead"`
}

// Message is a single immutable turn within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Ordinal        int       `json:"ordinal"`
	CreatedAt      time.Time `json:"created_at"`
}

// chatRole maps a stored transcript role onto the wire role expected by the
// language-model backend.
func chatRole(role string) string {
	if role == RoleAgent {
		return ChatRoleAssistant
	}
	return ChatRoleUser
}
