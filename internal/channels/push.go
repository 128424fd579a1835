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

// pushSender fans a push notification out to every active team member,
// best-effort: per-recipient failures are logged but do not fail the
// channel result as long as the fan-out was attempted.
type pushSender struct {
	transport PushTransport
	logger    logger.Logger
}

func NewPushSender(transport PushTransport, log logger.Logger) Sender {
	return &pushSender{transport: transport, logger: log}
}

func (s *pushSender) Type() models.ChannelType { return models.ChannelPush }

func (s *pushSender) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, team *models.TeamAssignment) (string, error) {
	recipients := teamRecipients(team)
	if len(recipients) == 0 {
		return "", fmt.Errorf("push channel %s has no team members to notify", channel.ID)
	}

	msg := FormatMessage(alert)
	payload := PushPayload{
		Title:    msg.Subject,
		Body:     msg.Body,
		Severity: alert.Severity,
		AlertID:  alert.ID,
		// Critical alerts stay on screen and punch through quiet hours.
		RequireInteraction: alert.Severity == models.SeverityCritical,
		IgnoreQuietHours:   alert.Severity == models.SeverityCritical,
	}

	var lastID string
	var delivered int
	for _, member := range recipients {
		id, err := s.transport.SendPush(ctx, member.ID, payload)
		if err != nil {
			s.logger.Warn("Push delivery failed for recipient",
				"alert_id", alert.ID, "user_id", member.ID, "error", err)
			continue
		}
		delivered++
		lastID = id
	}

	if delivered == 0 {
		return "", fmt.Errorf("push delivery failed for all %d recipients", len(recipients))
	}

	s.logger.Info("Push notification fan-out complete",
		"alert_id", alert.ID, "channel_id", channel.ID,
		"recipients", len(recipients), "delivered", delivered)
	return lastID, nil
}

func teamRecipients(team *models.TeamAssignment) []models.TeamMember {
	if team == nil {
		return nil
	}
	var out []models.TeamMember
	for _, m := range team.EscalationContacts {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// gatewayPushTransport posts to an external push-delivery gateway.
type gatewayPushTransport struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewGatewayPushTransport(cfg config.GatewayConfig) PushTransport {
	return &gatewayPushTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (t *gatewayPushTransport) SendPush(ctx context.Context, userID string, payload PushPayload) (string, error) {
	if t.cfg.Endpoint == "" {
		return "", fmt.Errorf("push gateway not configured")
	}

	body, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"payload": payload,
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
		return "", fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out.MessageID, nil
}
