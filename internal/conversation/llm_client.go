package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the wire-level message representation sent to the language
// model backend. Stored transcript roles (customer/agent) are mapped onto
// user/assistant before a request is built.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports backend token accounting when available.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a single completion request against the backend.
type LLMRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// LLMResponse is the backend's completion.
type LLMResponse struct {
	Text  string
	Usage TokenUsage
}

// LLMClient is the opaque synchronous boundary to the language-model
// backend. Implementations own credentials, retries, and timeouts.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
