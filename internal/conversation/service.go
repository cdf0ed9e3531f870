package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/digitallabhq/voiceagent-platform/internal/agents"
	"github.com/digitallabhq/voiceagent-platform/internal/observability/metrics"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

const replyTemperature = 0.9

// goodbyePhrases end a call when they appear anywhere in the caller's turn.
var goodbyePhrases = []string{
	"bye", "goodbye", "talk later", "end call", "that's all", "that's enough",
}

// CallEvent is pushed to live status subscribers as a call progresses.
type CallEvent struct {
	Type           string    `json:"type"` // call_started, turn, call_ended, summary_ready
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role,omitempty"`
	Content        string    `json:"content,omitempty"`
	ShouldEndCall  bool      `json:"should_end_call,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventPublisher fans call events out to live subscribers. Publishing is
// fire-and-forget; a missing subscriber is not an error.
type EventPublisher interface {
	Publish(conversationID string, event CallEvent)
}

// TurnResult is the outcome of one processed caller turn.
type TurnResult struct {
	Reply         string `json:"response"`
	ShouldEndCall bool   `json:"should_end_call"`
}

// StartResult is the outcome of opening a call.
type StartResult struct {
	Conversation *Conversation `json:"conversation"`
	Greeting     string        `json:"greeting"`
	Voice        agents.Voice  `json:"voice"`
}

// Service orchestrates the call lifecycle: opening calls, running turns
// through the language model with a trailing context window, and closing
// calls. All operations are scoped to the authenticated user.
type Service struct {
	store    Store
	agents   agents.Repository
	llm      LLMClient
	window   Window
	model    string
	maxReply int
	cache    *historyCache
	events   EventPublisher
	metrics  *metrics.CallMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// ServiceConfig carries the service dependencies. Redis, Events and Metrics
// are optional; without Redis every turn reads history from Postgres.
type ServiceConfig struct {
	Store          Store
	Agents         agents.Repository
	LLM            LLMClient
	Model          string
	WindowMessages int
	ReplyMaxTokens int
	Redis          *redis.Client
	Events         EventPublisher
	Metrics        *metrics.CallMetrics
	Logger         *logging.Logger
}

// NewService builds the call lifecycle service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("conversation: store required")
	}
	if cfg.Agents == nil {
		panic("conversation: agents repository required")
	}
	if cfg.LLM == nil {
		panic("conversation: llm client required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxReply := cfg.ReplyMaxTokens
	if maxReply <= 0 {
		maxReply = 150
	}
	var cache *historyCache
	if cfg.Redis != nil {
		cache = newHistoryCache(cfg.Redis, nil)
	}
	return &Service{
		store:    cfg.Store,
		agents:   cfg.Agents,
		llm:      cfg.LLM,
		window:   NewWindow(cfg.WindowMessages),
		model:    cfg.Model,
		maxReply: maxReply,
		cache:    cache,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		logger:   logger,
		tracer:   otel.Tracer("voiceagent.internal.conversation.service"),
	}
}

// StartCall opens a conversation against one of the user's agents and stores
// the agent's greeting as the first transcript message.
func (s *Service) StartCall(ctx context.Context, userID, agentID, mode string) (*StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.start_call")
	defer span.End()

	agent, err := s.agents.GetByID(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.Create(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}
	greeting := agent.Greeting
	msg, err := s.store.AppendMessage(ctx, userID, conv.ID, RoleAgent, greeting)
	if err != nil {
		return nil, err
	}
	conv.MessageCount = 1
	s.primeCache(ctx, conv.ID, []Message{*msg})

	s.metrics.ObserveCallStarted(mode)
	s.publish(conv.ID, CallEvent{
		Type:           "call_started",
		ConversationID: conv.ID,
		Role:           RoleAgent,
		Content:        greeting,
		Timestamp:      time.Now().UTC(),
	})
	s.logger.Info("call started", "conversation_id", conv.ID, "agent_id", agentID, "mode", mode)

	return &StartResult{Conversation: conv, Greeting: greeting, Voice: agent.Voice}, nil
}

// ProcessTurn stores the caller's message, sends the trailing window to the
// language model, stores the reply, and reports whether the caller asked to
// hang up. The turn is rejected once the call has ended.
func (s *Service) ProcessTurn(ctx context.Context, userID, conversationID, userMessage string) (*TurnResult, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.process_turn")
	defer span.End()

	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.store.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.EndedAt != nil {
		return nil, ErrCallEnded
	}
	agent, err := s.agents.GetByID(ctx, userID, conv.AgentID)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: load agent failed: %w", err)
	}

	history, err := s.loadHistory(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model:       s.model,
		Messages:    s.window.Build(agent.SystemPrompt, history, userMessage),
		MaxTokens:   s.maxReply,
		Temperature: replyTemperature,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveTurn("error")
		s.metrics.ObserveLLMLatency(s.model, "error", time.Since(start).Seconds())
		return nil, err
	}
	s.metrics.ObserveLLMLatency(s.model, "ok", time.Since(start).Seconds())
	s.metrics.ObserveLLMTokens(s.model, metrics.TokenCounts{
		Input:  int(resp.Usage.InputTokens),
		Output: int(resp.Usage.OutputTokens),
		Total:  int(resp.Usage.TotalTokens),
	})

	// Persist the turn only after the backend succeeded, so a failed turn
	// leaves no partial transcript and is safe to retry verbatim.
	reply := strings.TrimSpace(resp.Text)
	customerMsg, err := s.store.AppendMessage(ctx, userID, conversationID, RoleCustomer, userMessage)
	if err != nil {
		return nil, err
	}
	agentMsg, err := s.store.AppendMessage(ctx, userID, conversationID, RoleAgent, reply)
	if err != nil {
		return nil, err
	}
	s.primeCache(ctx, conversationID, append(history, *customerMsg, *agentMsg))

	shouldEnd := wantsToHangUp(userMessage)
	s.metrics.ObserveTurn("ok")
	s.publish(conversationID, CallEvent{
		Type:           "turn",
		ConversationID: conversationID,
		Role:           RoleAgent,
		Content:        reply,
		ShouldEndCall:  shouldEnd,
		Timestamp:      time.Now().UTC(),
	})

	return &TurnResult{Reply: reply, ShouldEndCall: shouldEnd}, nil
}

// EndCall closes the conversation and stamps its duration. Ending twice is
// harmless.
func (s *Service) EndCall(ctx context.Context, userID, conversationID, reason string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.end_call")
	defer span.End()

	conv, err := s.store.End(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, conversationID); err != nil {
			s.logger.Warn("history cache invalidation failed", "conversation_id", conversationID, "error", err)
		}
	}
	s.metrics.ObserveCallEnded(reason, float64(conv.DurationSeconds))
	s.publish(conversationID, CallEvent{
		Type:           "call_ended",
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	})
	s.logger.Info("call ended", "conversation_id", conversationID,
		"duration_seconds", conv.DurationSeconds, "reason", reason)
	return conv, nil
}

// Get returns one conversation with its lead flag derived from sentiment.
func (s *Service) Get(ctx context.Context, userID, conversationID string) (*Conversation, error) {
	return s.store.Get(ctx, userID, conversationID)
}

// List returns the user's conversations across all agents, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*Conversation, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListByAgent returns one agent's conversations, newest first.
func (s *Service) ListByAgent(ctx context.Context, userID, agentID string) ([]*Conversation, error) {
	return s.store.ListByAgent(ctx, userID, agentID)
}

// Transcript returns the full ordered transcript of a conversation.
func (s *Service) Transcript(ctx context.Context, userID, conversationID string) ([]Message, error) {
	if _, err := s.store.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, userID, conversationID)
}

// ExportTranscript renders the transcript as plain text for download.
func (s *Service) ExportTranscript(ctx context.Context, userID, conversationID string) (string, error) {
	conv, err := s.store.Get(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}
	history, err := s.store.ListMessages(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Call transcript %s\n", conv.ID)
	fmt.Fprintf(&b, "Started: %s\n", conv.StartedAt.UTC().Format(time.RFC3339))
	if conv.EndedAt != nil {
		fmt.Fprintf(&b, "Ended: %s (%ds)\n", conv.EndedAt.UTC().Format(time.RFC3339), conv.DurationSeconds)
	}
	b.WriteString("\n")
	for _, m := range history {
		speaker := "Customer"
		if m.Role == RoleAgent {
			speaker = "Agent"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.UTC().Format("15:04:05"), speaker, m.Content)
	}
	return b.String(), nil
}

// Delete removes a conversation and its transcript.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	if err := s.store.Delete(ctx, userID, conversationID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, conversationID); err != nil {
			s.logger.Warn("history cache invalidation failed", "conversation_id", conversationID, "error", err)
		}
	}
	return nil
}

// loadHistory prefers the Redis cache and falls back to Postgres on a miss,
// re-priming the cache for the next turn.
func (s *Service) loadHistory(ctx context.Context, userID, conversationID string) ([]Message, error) {
	if s.cache != nil {
		history, ok, err := s.cache.Load(ctx, conversationID)
		if err != nil {
			s.logger.Warn("history cache read failed, falling back to database",
				"conversation_id", conversationID, "error", err)
		} else if ok {
			return history, nil
		}
	}
	history, err := s.store.ListMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	s.primeCache(ctx, conversationID, history)
	return history, nil
}

func (s *Service) primeCache(ctx context.Context, conversationID string, history []Message) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, conversationID, history); err != nil {
		s.logger.Warn("history cache write failed", "conversation_id", conversationID, "error", err)
	}
}

func (s *Service) publish(conversationID string, event CallEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(conversationID, event)
}

// wantsToHangUp reports whether the caller's turn contains a goodbye phrase.
func wantsToHangUp(userMessage string) bool {
	lower := strings.ToLower(userMessage)
	for _, phrase := range goodbyePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
