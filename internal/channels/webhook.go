package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// webhookSender POSTs a JSON payload to a configured URL with optional
// auth. Non-2xx responses and timeouts are failures; there is no retry
// here, redelivery is the operator's call.
type webhookSender struct {
	client *http.Client
	logger logger.Logger
}

func NewWebhookSender(timeout time.Duration, log logger.Logger) Sender {
	return &webhookSender{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

func (s *webhookSender) Type() models.ChannelType { return models.ChannelWebhook }

func (s *webhookSender) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, _ *models.TeamAssignment) (string, error) {
	cfg := channel.Configuration
	if cfg.URL == "" {
		return "", fmt.Errorf("webhook channel %s has no url configured", channel.ID)
	}

	var body []byte
	if cfg.PayloadTemplate != "" {
		body = []byte(ApplyTemplate(cfg.PayloadTemplate, alert))
	} else {
		msg := FormatMessage(alert)
		payload := map[string]interface{}{
			"alert": alert,
			"notification": map[string]interface{}{
				"subject": msg.Subject,
				"body":    msg.Body,
				"channel": channel.ID,
				"sent_at": time.Now().UTC().Format(time.RFC3339),
			},
		}
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal webhook payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if err := applyAuth(req, cfg); err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.logger.Info("Webhook notification sent",
		"alert_id", alert.ID, "channel_id", channel.ID, "status", resp.StatusCode)
	return "", nil
}

func applyAuth(req *http.Request, cfg models.ChannelConfiguration) error {
	switch cfg.AuthType {
	case "":
		return nil
	case "bearer":
		if cfg.AuthToken == "" {
			return fmt.Errorf("bearer auth configured without a token")
		}
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	case "basic":
		if cfg.AuthUsername == "" {
			return fmt.Errorf("basic auth configured without a username")
		}
		req.SetBasicAuth(cfg.AuthUsername, cfg.AuthPassword)
	case "api_key":
		header := cfg.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("api_key auth configured without a key")
		}
		req.Header.Set(header, cfg.APIKey)
	default:
		return fmt.Errorf("unknown auth type %q", cfg.AuthType)
	}
	return nil
}
