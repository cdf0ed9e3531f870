package conversation

import "errors"

var (
	// ErrConversationNotFound is returned when a conversation is missing or
	// owned by a different user. The two cases are indistinguishable so that
	// existence of other users' data never leaks.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrCallEnded is returned when a turn arrives for a finished call
	ErrCallEnded = errors.New("call already ended")

	// ErrEmptyMessage is returned when a turn has no content
	ErrEmptyMessage = errors.New("empty message")

	// ErrEmptyConversation is returned when summarization is requested for a
	// conversation with no stored messages
	ErrEmptyConversation = errors.New("nothing to summarize")

	// ErrBackendUnavailable indicates the language-model backend failed
	// (network, timeout, quota). The operation wrote nothing and is safe to
	// retry.
	ErrBackendUnavailable = errors.New("language model backend unavailable")

	// ErrNoSentimentLabel indicates the model reply contained no
	// recognizable sentiment label. Recovered locally by defaulting to
	// Neutral; never surfaced to callers.
	ErrNoSentimentLabel = errors.New("no sentiment label in model reply")
)
