package conversation

import "strings"

// Sentiment is the coarse classification of a finished conversation.
type Sentiment string

const (
	SentimentUnset    Sentiment = ""
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// IsLead reports whether a conversation counts as a lead: sentiment equals
// positive, case-insensitive exact match. Binary by policy; this replaced an
// earlier message-count heuristic.
func (s Sentiment) IsLead() bool {
	return strings.EqualFold(string(s), string(SentimentPositive))
}

// ParseSentiment extracts the sentiment label from a free-text model reply.
// Generative replies rarely match a template exactly, so the label tokens
// are searched case-insensitively anywhere in the text. Positive wins over
// negative when both appear, matching the reference behavior. When no label
// is found the result is Neutral with ErrNoSentimentLabel, which callers
// recover from locally.
func ParseSentiment(reply string) (Sentiment, error) {
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, string(SentimentPositive)):
		return SentimentPositive, nil
	case strings.Contains(lower, string(SentimentNegative)):
		return SentimentNegative, nil
	case strings.Contains(lower, string(SentimentNeutral)):
		return SentimentNeutral, nil
	default:
		return SentimentNeutral, ErrNoSentimentLabel
	}
}
