package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/digitallabhq/voiceagent-platform/internal/auth"
	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// UserDirectory resolves account details for notification recipients.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*auth.User, error)
}

// LeadAlertService emails the agent owner when one of their calls is
// classified as a lead.
type LeadAlertService struct {
	email  EmailSender
	users  UserDirectory
	logger *logging.Logger
}

// NewLeadAlertService creates a lead alert service.
func NewLeadAlertService(email EmailSender, users UserDirectory, logger *logging.Logger) *LeadAlertService {
	if email == nil {
		panic("notify: email sender required")
	}
	if users == nil {
		panic("notify: user directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadAlertService{email: email, users: users, logger: logger}
}

// NotifyLead sends the lead alert email to the conversation's owner.
func (s *LeadAlertService) NotifyLead(ctx context.Context, ownerUserID string, conv *conversation.Conversation, summary string) error {
	user, err := s.users.GetByID(ctx, ownerUserID)
	if err != nil {
		return fmt.Errorf("notify: resolve lead recipient: %w", err)
	}

	msg := EmailMessage{
		To:      user.Email,
		ToName:  user.FullName,
		Subject: "New lead from your voice agent",
		Body:    leadAlertBody(conv, summary),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return err
	}
	s.logger.Info("lead alert sent", "conversation_id", conv.ID, "to", user.Email)
	return nil
}

func leadAlertBody(conv *conversation.Conversation, summary string) string {
	return fmt.Sprintf(`A call handled by your voice agent was classified as a lead.

Call started: %s
Duration: %d seconds
Messages: %d

%s

Open the dashboard to follow up.
`, conv.StartedAt.UTC().Format(time.RFC1123), conv.DurationSeconds, conv.MessageCount, summary)
}
