package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// smsSender renders a 160-character message and sends it to every
// configured phone number. Any one number failing fails the channel
// result.
type smsSender struct {
	transport SMSTransport
	logger    logger.Logger
}

func NewSMSSender(transport SMSTransport, log logger.Logger) Sender {
	return &smsSender{transport: transport, logger: log}
}

func (s *smsSender) Type() models.ChannelType { return models.ChannelSMS }

func (s *smsSender) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, _ *models.TeamAssignment) (string, error) {
	cfg := channel.Configuration
	if len(cfg.PhoneNumbers) == 0 {
		return "", fmt.Errorf("sms channel %s has no phone numbers configured", channel.ID)
	}

	var message string
	if cfg.MessageTemplate != "" {
		message = ApplyTemplate(cfg.MessageTemplate, alert)
	} else {
		msg := FormatMessage(alert)
		message = fmt.Sprintf("%s: %s", msg.Subject, alert.Description)
	}
	message = TruncateSMS(message)

	var lastID string
	for _, number := range cfg.PhoneNumbers {
		id, err := s.transport.SendSMS(ctx, number, message, cfg.Provider)
		if err != nil {
			return "", fmt.Errorf("send sms to %s: %w", number, err)
		}
		lastID = id
	}

	s.logger.Info("SMS notification sent",
		"alert_id", alert.ID, "channel_id", channel.ID, "numbers", len(cfg.PhoneNumbers))
	return lastID, nil
}

// gatewaySMSTransport posts to an external SMS-delivery gateway.
type gatewaySMSTransport struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewGatewaySMSTransport(cfg config.GatewayConfig) SMSTransport {
	return &gatewaySMSTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (t *gatewaySMSTransport) SendSMS(ctx context.Context, to, message, provider string) (string, error) {
	if t.cfg.Endpoint == "" {
		return "", fmt.Errorf("sms gateway not configured")
	}

	body, err := json.Marshal(map[string]string{
		"to":       to,
		"message":  message,
		"provider": provider,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out.MessageID, nil
}
