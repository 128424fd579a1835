package channels

import (
	"context"
	"fmt"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// inAppSender writes one in-app notification per active team member,
// best-effort like push: per-recipient failures are logged, not fatal.
type inAppSender struct {
	store  InAppStore
	logger logger.Logger
}

func NewInAppSender(store InAppStore, log logger.Logger) Sender {
	return &inAppSender{store: store, logger: log}
}

func (s *inAppSender) Type() models.ChannelType { return models.ChannelInApp }

func (s *inAppSender) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, team *models.TeamAssignment) (string, error) {
	recipients := teamRecipients(team)
	if len(recipients) == 0 {
		return "", fmt.Errorf("in_app channel %s has no team members to notify", channel.ID)
	}

	msg := FormatMessage(alert)
	var delivered int
	for _, member := range recipients {
		n := &models.InAppNotification{
			UserID:   member.ID,
			AlertID:  alert.ID,
			Subject:  msg.Subject,
			Body:     msg.Body,
			Severity: alert.Severity,
		}
		if err := s.store.CreateInAppNotification(ctx, n); err != nil {
			s.logger.Warn("In-app delivery failed for recipient",
				"alert_id", alert.ID, "user_id", member.ID, "error", err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return "", fmt.Errorf("in_app delivery failed for all %d recipients", len(recipients))
	}

	s.logger.Info("In-app notification fan-out complete",
		"alert_id", alert.ID, "channel_id", channel.ID,
		"recipients", len(recipients), "delivered", delivered)
	return "", nil
}
