package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallabhq/voiceagent-platform/internal/agents"
)

// memoryStore is an in-memory Store for service and summarizer tests.
type memoryStore struct {
	owners   map[string]string // conversation id -> user id
	convs    map[string]*Conversation
	messages map[string][]Message
	nextID   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		owners:   map[string]string{},
		convs:    map[string]*Conversation{},
		messages: map[string][]Message{},
	}
}

func (m *memoryStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memoryStore) Create(ctx context.Context, userID, agentID string) (*Conversation, error) {
	conv := &Conversation{
		ID:        m.id(),
		AgentID:   agentID,
		StartedAt: time.Now().UTC(),
		Sentiment: SentimentUnset,
	}
	m.owners[conv.ID] = userID
	m.convs[conv.ID] = conv
	return copyConv(conv), nil
}

func (m *memoryStore) owned(userID, id string) (*Conversation, error) {
	conv, ok := m.convs[id]
	if !ok || m.owners[id] != userID {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (m *memoryStore) Get(ctx context.Context, userID, id string) (*Conversation, error) {
	conv, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	return copyConv(conv), nil
}

func (m *memoryStore) ListByUser(ctx context.Context, userID string) ([]*Conversation, error) {
	var out []*Conversation
	for id, owner := range m.owners {
		if owner == userID {
			out = append(out, copyConv(m.convs[id]))
		}
	}
	return out, nil
}

func (m *memoryStore) ListByAgent(ctx context.Context, userID, agentID string) ([]*Conversation, error) {
	var out []*Conversation
	for id, owner := range m.owners {
		if owner == userID && m.convs[id].AgentID == agentID {
			out = append(out, copyConv(m.convs[id]))
		}
	}
	return out, nil
}

func (m *memoryStore) AppendMessage(ctx context.Context, userID, conversationID, role, content string) (*Message, error) {
	conv, err := m.owned(userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.MessageCount++
	msg := Message{
		ID:             m.id(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Ordinal:        conv.MessageCount,
		CreatedAt:      time.Now().UTC(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return &msg, nil
}

func (m *memoryStore) ListMessages(ctx context.Context, userID, conversationID string) ([]Message, error) {
	if _, err := m.owned(userID, conversationID); err != nil {
		return nil, err
	}
	return append([]Message(nil), m.messages[conversationID]...), nil
}

func (m *memoryStore) End(ctx context.Context, userID, id string) (*Conversation, error) {
	conv, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if conv.EndedAt == nil {
		now := time.Now().UTC()
		conv.EndedAt = &now
		conv.DurationSeconds = int(now.Sub(conv.StartedAt).Seconds())
	}
	return copyConv(conv), nil
}

func (m *memoryStore) SetSummary(ctx context.Context, userID, id, summary string, sentiment Sentiment) error {
	conv, err := m.owned(userID, id)
	if err != nil {
		return err
	}
	conv.Summary = &summary
	conv.Sentiment = sentiment
	conv.Lead = sentiment.IsLead()
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, userID, id string) error {
	if _, err := m.owned(userID, id); err != nil {
		return err
	}
	delete(m.convs, id)
	delete(m.owners, id)
	delete(m.messages, id)
	return nil
}

func copyConv(c *Conversation) *Conversation {
	dup := *c
	return &dup
}

// stubLLM returns canned replies and records every request it saw.
type stubLLM struct {
	replies  []string
	err      error
	requests []LLMRequest
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	reply := "ok"
	if len(s.replies) > 0 {
		reply = s.replies[0]
		if len(s.replies) > 1 {
			s.replies = s.replies[1:]
		}
	}
	return LLMResponse{Text: reply, Usage: TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}, nil
}

// stubAgents serves a single fixed persona for one user.
type stubAgents struct {
	userID string
	agent  *agents.Agent
}

func (s *stubAgents) Create(ctx context.Context, agent *agents.Agent) (*agents.Agent, error) {
	return agent, nil
}

func (s *stubAgents) GetByID(ctx context.Context, userID, id string) (*agents.Agent, error) {
	if userID != s.userID || id != s.agent.ID {
		return nil, agents.ErrAgentNotFound
	}
	return s.agent, nil
}

func (s *stubAgents) ListByUser(ctx context.Context, userID string) ([]*agents.Agent, error) {
	return []*agents.Agent{s.agent}, nil
}

func (s *stubAgents) Update(ctx context.Context, agent *agents.Agent) error { return nil }

func (s *stubAgents) UpdateVoice(ctx context.Context, userID, id string, voice agents.Voice) error {
	return nil
}

func (s *stubAgents) Delete(ctx context.Context, userID, id string) error { return nil }

type capturedEvents struct {
	events []CallEvent
}

func (c *capturedEvents) Publish(conversationID string, event CallEvent) {
	c.events = append(c.events, event)
}

const (
	testUser  = "user-1"
	testAgent = "agent-1"
)

func newTestService(t *testing.T, llm LLMClient) (*Service, *memoryStore, *capturedEvents) {
	t.Helper()
	store := newMemoryStore()
	events := &capturedEvents{}
	svc := NewService(ServiceConfig{
		Store: store,
		Agents: &stubAgents{userID: testUser, agent: &agents.Agent{
			ID:           testAgent,
			UserID:       testUser,
			SystemPrompt: "You are Alex.",
			Greeting:     "Hello! This is Alex.",
			Voice:        agents.Voice{Gender: "male", Speed: 1},
		}},
		LLM:            llm,
		Model:          "test-model",
		WindowMessages: 10,
		ReplyMaxTokens: 150,
		Events:         events,
	})
	return svc, store, events
}

func TestStartCallStoresGreeting(t *testing.T) {
	svc, store, events := newTestService(t, &stubLLM{})

	result, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)
	assert.Equal(t, "Hello! This is Alex.", result.Greeting)
	assert.Equal(t, "male", result.Voice.Gender)
	assert.Equal(t, 1, result.Conversation.MessageCount)

	history, err := store.ListMessages(context.Background(), testUser, result.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, RoleAgent, history[0].Role)

	require.Len(t, events.events, 1)
	assert.Equal(t, "call_started", events.events[0].Type)
}

func TestStartCallUnknownAgent(t *testing.T) {
	svc, _, _ := newTestService(t, &stubLLM{})

	_, err := svc.StartCall(context.Background(), testUser, "someone-elses-agent", "voice")
	assert.ErrorIs(t, err, agents.ErrAgentNotFound)
}

// faultyAgents serves one persona until err is set, then fails every lookup.
type faultyAgents struct {
	stubAgents
	err error
}

func (f *faultyAgents) GetByID(ctx context.Context, userID, id string) (*agents.Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stubAgents.GetByID(ctx, userID, id)
}

func TestProcessTurnAgentLookupFailureIsNotOpaque(t *testing.T) {
	repo := &faultyAgents{stubAgents: stubAgents{userID: testUser, agent: &agents.Agent{
		ID:       testAgent,
		UserID:   testUser,
		Greeting: "Hello!",
	}}}
	store := newMemoryStore()
	svc := NewService(ServiceConfig{
		Store:          store,
		Agents:         repo,
		LLM:            &stubLLM{},
		Model:          "test-model",
		WindowMessages: 10,
		ReplyMaxTokens: 150,
	})

	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	repo.err = errors.New("connection refused")
	_, err = svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, err, repo.err)
}

func TestProcessTurnAppendsBothMessages(t *testing.T) {
	llm := &stubLLM{replies: []string{"We offer facials and peels."}}
	svc, store, _ := newTestService(t, llm)

	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	result, err := svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "What services do you offer?")
	require.NoError(t, err)
	assert.Equal(t, "We offer facials and peels.", result.Reply)
	assert.False(t, result.ShouldEndCall)

	history, err := store.ListMessages(context.Background(), testUser, started.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, RoleCustomer, history[1].Role)
	assert.Equal(t, "What services do you offer?", history[1].Content)
	assert.Equal(t, RoleAgent, history[2].Role)
}

func TestProcessTurnSendsTrailingWindow(t *testing.T) {
	llm := &stubLLM{}
	svc, store, _ := newTestService(t, llm)

	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)
	for i := 0; i < 14; i++ {
		_, err := store.AppendMessage(context.Background(), testUser, started.Conversation.ID, RoleCustomer, fmt.Sprintf("turn-%d", i))
		require.NoError(t, err)
	}

	_, err = svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "latest question")
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	msgs := llm.requests[0].Messages
	// system + 10 trailing + new turn
	require.Len(t, msgs, 12)
	assert.Equal(t, ChatRoleSystem, msgs[0].Role)
	assert.Equal(t, "You are Alex.", msgs[0].Content)
	assert.Equal(t, "latest question", msgs[len(msgs)-1].Content)
	assert.Equal(t, "turn-4", msgs[1].Content)
}

func TestProcessTurnGoodbyeDetection(t *testing.T) {
	for _, phrase := range []string{
		"ok bye now", "Goodbye!", "let's talk later", "please end call",
		"that's all for today", "I think that's enough",
	} {
		llm := &stubLLM{}
		svc, _, _ := newTestService(t, llm)
		started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
		require.NoError(t, err)

		result, err := svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, phrase)
		require.NoError(t, err)
		assert.True(t, result.ShouldEndCall, "phrase %q should end the call", phrase)
	}
}

func TestProcessTurnRejectsEmptyMessage(t *testing.T) {
	svc, _, _ := newTestService(t, &stubLLM{})
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	_, err = svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestProcessTurnRejectsEndedCall(t *testing.T) {
	svc, _, _ := newTestService(t, &stubLLM{})
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)
	_, err = svc.EndCall(context.Background(), testUser, started.Conversation.ID, "manual")
	require.NoError(t, err)

	_, err = svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "still there?")
	assert.ErrorIs(t, err, ErrCallEnded)
}

func TestProcessTurnBackendFailureWritesNothing(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("%w: connection refused", ErrBackendUnavailable)}
	svc, store, _ := newTestService(t, llm)
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	_, err = svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "hello?")
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	history, err := store.ListMessages(context.Background(), testUser, started.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed turn must not grow the transcript")
}

func TestEndCallIsIdempotent(t *testing.T) {
	svc, _, events := newTestService(t, &stubLLM{})
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	first, err := svc.EndCall(context.Background(), testUser, started.Conversation.ID, "goodbye")
	require.NoError(t, err)
	require.NotNil(t, first.EndedAt)

	second, err := svc.EndCall(context.Background(), testUser, started.Conversation.ID, "manual")
	require.NoError(t, err)
	assert.Equal(t, first.EndedAt.Unix(), second.EndedAt.Unix())

	var ended int
	for _, e := range events.events {
		if e.Type == "call_ended" {
			ended++
		}
	}
	assert.Equal(t, 2, ended)
}

func TestExportTranscript(t *testing.T) {
	llm := &stubLLM{replies: []string{"Sure, we open at nine."}}
	svc, _, _ := newTestService(t, llm)
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)
	_, err = svc.ProcessTurn(context.Background(), testUser, started.Conversation.ID, "When do you open?")
	require.NoError(t, err)

	text, err := svc.ExportTranscript(context.Background(), testUser, started.Conversation.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "Customer: When do you open?"))
	assert.True(t, strings.Contains(text, "Agent: Sure, we open at nine."))
}

func TestDeleteRemovesTranscript(t *testing.T) {
	svc, store, _ := newTestService(t, &stubLLM{})
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), testUser, started.Conversation.ID))
	_, err = store.Get(context.Background(), testUser, started.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestOperationsScopedToOwner(t *testing.T) {
	svc, _, _ := newTestService(t, &stubLLM{})
	started, err := svc.StartCall(context.Background(), testUser, testAgent, "voice")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "intruder", started.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = svc.ProcessTurn(context.Background(), "intruder", started.Conversation.ID, "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	err = svc.Delete(context.Background(), "intruder", started.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
