package channels

import (
	"context"
	"fmt"

	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// Sender delivers one alert over one channel. Implementations validate
// the channel-type-specific configuration fields they need and report
// transport failures as errors; the delivery engine turns those into
// DeliveryResult rows and never lets them escape the fan-out.
type Sender interface {
	Type() models.ChannelType
	// Send returns the external message id when the transport provides
	// one. The team assignment may be nil for teamless alerts.
	Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, team *models.TeamAssignment) (string, error)
}

// External transports. The engine only cares about success/failure plus
// an optional external message id; the real email/push/SMS machinery
// lives outside this process.

type EmailTransport interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

type PushTransport interface {
	SendPush(ctx context.Context, userID string, payload PushPayload) (string, error)
}

type SMSTransport interface {
	SendSMS(ctx context.Context, to, message, provider string) (string, error)
}

// InAppStore persists in-app notifications for the product UI to read.
type InAppStore interface {
	CreateInAppNotification(ctx context.Context, n *models.InAppNotification) error
}

type PushPayload struct {
	Title              string                 `json:"title"`
	Body               string                 `json:"body"`
	Severity           models.Severity        `json:"severity"`
	AlertID            string                 `json:"alert_id"`
	RequireInteraction bool                   `json:"require_interaction,omitempty"`
	IgnoreQuietHours   bool                   `json:"ignore_quiet_hours,omitempty"`
	Data               map[string]interface{} `json:"data,omitempty"`
}

// Registry holds one sender per channel type.
type Registry struct {
	senders map[models.ChannelType]Sender
}

// NewRegistry wires the default sender set from configuration.
func NewRegistry(cfg config.SendersConfig, inApp InAppStore, log logger.Logger) *Registry {
	r := &Registry{senders: make(map[models.ChannelType]Sender)}
	r.Register(NewEmailSender(NewSMTPTransport(cfg.Email), log))
	r.Register(NewPushSender(NewGatewayPushTransport(cfg.Push), log))
	r.Register(NewWebhookSender(cfg.Webhook.Timeout(), log))
	r.Register(NewSlackSender(cfg.Webhook.Timeout(), log))
	r.Register(NewSMSSender(NewGatewaySMSTransport(cfg.SMS), log))
	r.Register(NewInAppSender(inApp, log))
	return r
}

func (r *Registry) Register(s Sender) {
	r.senders[s.Type()] = s
}

func (r *Registry) Sender(t models.ChannelType) (Sender, error) {
	s, ok := r.senders[t]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel type %q", t)
	}
	return s, nil
}
