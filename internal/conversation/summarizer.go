package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/digitallabhq/voiceagent-platform/internal/observability/metrics"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

const (
	summarySystemPrompt = "You are a professional conversation analyst."
	summaryTemperature  = 0.3
	summaryMaxTokens    = 300
)

// LeadNotifier receives qualified leads after summarization. Delivery is best
// effort: a notifier failure never fails the summarization.
type LeadNotifier interface {
	NotifyLead(ctx context.Context, ownerUserID string, conv *Conversation, summary string) error
}

// Summarizer turns a finished transcript into an analyst-style summary and a
// sentiment classification, persisting both on the conversation.
type Summarizer struct {
	store    Store
	llm      LLMClient
	model    string
	notifier LeadNotifier
	events   EventPublisher
	metrics  *metrics.CallMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewSummarizer builds a Summarizer. notifier, events and callMetrics may be
// nil when lead alerts, event streaming or metrics are not configured.
func NewSummarizer(store Store, llm LLMClient, model string, notifier LeadNotifier, events EventPublisher, callMetrics *metrics.CallMetrics, logger *logging.Logger) *Summarizer {
	if store == nil {
		panic("conversation: store required")
	}
	if llm == nil {
		panic("conversation: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Summarizer{
		store:    store,
		llm:      llm,
		model:    model,
		notifier: notifier,
		events:   events,
		metrics:  callMetrics,
		logger:   logger,
		tracer:   otel.Tracer("voiceagent.internal.conversation.summarizer"),
	}
}

// Summarize generates and persists the summary and sentiment for one
// conversation. Re-running replaces the previous result. The conversation row
// is untouched when the model backend fails, so the call is safe to retry.
func (s *Summarizer) Summarize(ctx context.Context, userID, conversationID string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.summarize")
	defer span.End()

	conv, err := s.store.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrEmptyConversation
	}

	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: summarySystemPrompt},
			{Role: ChatRoleUser, Content: buildSummaryPrompt(history)},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	summary := strings.TrimSpace(resp.Text)

	sentiment, err := ParseSentiment(summary)
	if err != nil {
		s.logger.Warn("summary reply carried no sentiment label, defaulting to neutral",
			"conversation_id", conversationID)
	}

	if err := s.store.SetSummary(ctx, userID, conversationID, summary, sentiment); err != nil {
		return nil, err
	}
	conv.Summary = &summary
	conv.Sentiment = sentiment
	conv.Lead = sentiment.IsLead()
	if conv.Lead {
		s.metrics.ObserveLead()
	}

	if s.events != nil {
		s.events.Publish(conversationID, CallEvent{
			Type:           "summary_ready",
			ConversationID: conversationID,
			Content:        summary,
			Timestamp:      time.Now().UTC(),
		})
	}

	if conv.Lead && s.notifier != nil {
		if err := s.notifier.NotifyLead(ctx, userID, conv, summary); err != nil {
			s.logger.Error("lead notification failed",
				"conversation_id", conversationID, "error", err)
		}
	}
	return conv, nil
}

// buildSummaryPrompt renders the transcript and the analyst instructions into
// a single user message. The label format in the instructions is what
// ParseSentiment later searches for.
func buildSummaryPrompt(history []Message) string {
	var b strings.Builder
	b.WriteString("Conversation:\n\n")
	for _, m := range history {
		speaker := "Customer"
		if m.Role == RoleAgent {
			speaker = "Agent"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	b.WriteString(`
Based on the above conversation between a customer service agent and a customer, provide:
1. Key topics discussed (bullet points)
2. Customer's main interests or needs
3. Any action items or next steps mentioned
4. Overall sentiment (positive, neutral, or negative)

Format your response as:

**Key Topics:**
- [topic 1]
- [topic 2]

**Customer Interests:**
[brief description]

**Action Items:**
[any next steps or recommendations]

**Sentiment:** [positive/neutral/negative]`)
	return b.String()
}
