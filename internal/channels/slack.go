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

// slackSender posts a severity-colored attachment to a Slack incoming
// webhook.
type slackSender struct {
	client *http.Client
	logger logger.Logger
}

func NewSlackSender(timeout time.Duration, log logger.Logger) Sender {
	return &slackSender{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

func (s *slackSender) Type() models.ChannelType { return models.ChannelSlack }

func (s *slackSender) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, _ *models.TeamAssignment) (string, error) {
	cfg := channel.Configuration
	if cfg.WebhookURL == "" {
		return "", fmt.Errorf("slack channel %s has no webhook_url configured", channel.ID)
	}

	msg := FormatMessage(alert)
	text := msg.Body
	if cfg.MessageTemplate != "" {
		text = ApplyTemplate(cfg.MessageTemplate, alert)
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":     slackColor(alert.Severity),
				"title":     msg.Subject,
				"text":      text,
				"timestamp": alert.CreatedAt.Unix(),
				"fields": []map[string]interface{}{
					{"title": "Severity", "value": string(alert.Severity), "short": true},
					{"title": "Status", "value": string(alert.Status), "short": true},
				},
			},
		},
	}
	if cfg.Channel != "" {
		payload["channel"] = cfg.Channel
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("slack notification failed with status %d", resp.StatusCode)
	}

	s.logger.Info("Slack notification sent", "alert_id", alert.ID, "channel_id", channel.ID)
	return "", nil
}
