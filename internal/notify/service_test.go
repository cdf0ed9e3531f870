package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallabhq/voiceagent-platform/internal/auth"
	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
)

type capturedEmails struct {
	sent []EmailMessage
	err  error
}

func (c *capturedEmails) Send(ctx context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type stubDirectory struct {
	user *auth.User
	err  error
}

func (s *stubDirectory) GetByID(ctx context.Context, id string) (*auth.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func leadConversation() *conversation.Conversation {
	return &conversation.Conversation{
		ID:              "conv-1",
		AgentID:         "agent-1",
		StartedAt:       time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
		DurationSeconds: 180,
		MessageCount:    8,
		Sentiment:       conversation.SentimentPositive,
		Lead:            true,
	}
}

func TestNotifyLeadSendsToOwner(t *testing.T) {
	email := &capturedEmails{}
	dir := &stubDirectory{user: &auth.User{ID: "user-1", Email: "owner@example.com", FullName: "Dana"}}
	svc := NewLeadAlertService(email, dir, nil)

	err := svc.NotifyLead(context.Background(), "user-1", leadConversation(), "**Sentiment:** positive")
	require.NoError(t, err)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "owner@example.com", email.sent[0].To)
	assert.Contains(t, email.sent[0].Subject, "lead")
	assert.Contains(t, email.sent[0].Body, "180 seconds")
	assert.Contains(t, email.sent[0].Body, "**Sentiment:** positive")
}

func TestNotifyLeadUnknownOwner(t *testing.T) {
	email := &capturedEmails{}
	dir := &stubDirectory{err: auth.ErrUserNotFound}
	svc := NewLeadAlertService(email, dir, nil)

	err := svc.NotifyLead(context.Background(), "ghost", leadConversation(), "summary")
	assert.Error(t, err)
	assert.Empty(t, email.sent)
}

func TestNotifyLeadSenderFailure(t *testing.T) {
	email := &capturedEmails{err: fmt.Errorf("quota exceeded")}
	dir := &stubDirectory{user: &auth.User{ID: "user-1", Email: "owner@example.com"}}
	svc := NewLeadAlertService(email, dir, nil)

	err := svc.NotifyLead(context.Background(), "user-1", leadConversation(), "summary")
	assert.Error(t, err)
}

func TestStubEmailSender(t *testing.T) {
	s := NewStubEmailSender(nil)
	assert.NoError(t, s.Send(context.Background(), EmailMessage{To: "x@example.com"}))
}
