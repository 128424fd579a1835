package models

import "time"

type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelPush    ChannelType = "push"
	ChannelWebhook ChannelType = "webhook"
	ChannelSlack   ChannelType = "slack"
	ChannelSMS     ChannelType = "sms"
	ChannelInApp   ChannelType = "in_app"
)

// ChannelConfiguration is the channel-type-specific configuration blob.
// Which fields are meaningful is decided by NotificationChannel.Type;
// senders validate the fields they need and reject anything missing.
type ChannelConfiguration struct {
	// email
	Recipients      []string `json:"recipients,omitempty"`
	SubjectTemplate string   `json:"subject_template,omitempty"`
	BodyTemplate    string   `json:"body_template,omitempty"`

	// webhook
	URL             string            `json:"url,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	AuthType        string            `json:"auth_type,omitempty"` // bearer, basic, api_key
	AuthToken       string            `json:"auth_token,omitempty"`
	AuthUsername    string            `json:"auth_username,omitempty"`
	AuthPassword    string            `json:"auth_password,omitempty"`
	APIKeyHeader    string            `json:"api_key_header,omitempty"`
	APIKey          string            `json:"api_key,omitempty"`
	PayloadTemplate string            `json:"payload_template,omitempty"`

	// slack
	WebhookURL string `json:"webhook_url,omitempty"`
	Channel    string `json:"channel,omitempty"`

	// sms
	PhoneNumbers    []string `json:"phone_numbers,omitempty"`
	Provider        string   `json:"provider,omitempty"`
	MessageTemplate string   `json:"message_template,omitempty"`
}

type NotificationChannel struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Type          ChannelType          `json:"channel_type"`
	Enabled       bool                 `json:"enabled"`
	Configuration ChannelConfiguration `json:"configuration"`
	// Severities restricts the channel to the listed severities; empty
	// means the channel applies to every severity.
	Severities              []Severity `json:"severities,omitempty"`
	MaxNotificationsPerHour int        `json:"max_notifications_per_hour"`
	MaxNotificationsPerDay  int        `json:"max_notifications_per_day"`
}

// AppliesTo reports whether the channel is configured for the severity.
func (c *NotificationChannel) AppliesTo(severity Severity) bool {
	if len(c.Severities) == 0 {
		return true
	}
	for _, s := range c.Severities {
		if s == severity {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryRecord is the per-channel-attempt audit row. It doubles as the
// counting source for channel rate limits.
type DeliveryRecord struct {
	ID                string         `json:"id"`
	AlertID           string         `json:"alert_id"`
	ChannelID         string         `json:"channel_id"`
	ChannelType       ChannelType    `json:"channel_type"`
	Status            DeliveryStatus `json:"status"`
	ExternalMessageID string         `json:"external_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	Attempts          int            `json:"attempts"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
