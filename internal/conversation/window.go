package conversation

// DefaultWindowMessages is how many trailing transcript messages travel to the
// model on each turn. The trade-off is recall versus prompt cost: ten turns is
// enough for a short sales call while keeping token usage flat as calls grow.
const DefaultWindowMessages = 10

// Window assembles the prompt slice sent to the language model: the agent's
// system prompt, the trailing slice of stored history, and the caller's new
// turn. History older than the window is silently dropped.
type Window struct {
	size int
}

// NewWindow returns a Window keeping the last size messages. Non-positive
// values fall back to DefaultWindowMessages.
func NewWindow(size int) Window {
	if size <= 0 {
		size = DefaultWindowMessages
	}
	return Window{size: size}
}

// Size reports how many history messages the window retains.
func (w Window) Size() int { return w.size }

// Build produces the ordered message list for one model call. History must be
// in ascending ordinal order; stored roles are mapped onto the model's
// user/assistant roles here so the storage schema never leaks to the wire.
func (w Window) Build(systemPrompt string, history []Message, newTurn string) []ChatMessage {
	if len(history) > w.size {
		history = history[len(history)-w.size:]
	}
	out := make([]ChatMessage, 0, len(history)+2)
	out = append(out, ChatMessage{Role: ChatRoleSystem, Content: systemPrompt})
	for _, m := range history {
		out = append(out, ChatMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	out = append(out, ChatMessage{Role: ChatRoleUser, Content: newTurn})
	return out
}
