package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// emailSender delivers alerts over SMTP, once per configured recipient.
// Any one recipient failure fails the channel result for this pass.
type emailSender struct {
	transport EmailTransport
	logger    logger.Logger
}

func NewEmailSender(transport EmailTransport, log logger.Logger) Sender {
	return &emailSender{transport: transport, logger: log}
}

func (s *emailSender) Type() models.ChannelType { return models.ChannelEmail }

func (s *emailSender) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, _ *models.TeamAssignment) (string, error) {
	cfg := channel.Configuration
	if len(cfg.Recipients) == 0 {
		return "", fmt.Errorf("email channel %s has no recipients configured", channel.ID)
	}

	msg := FormatMessage(alert)
	subject, body := msg.Subject, msg.Body
	if cfg.SubjectTemplate != "" {
		subject = ApplyTemplate(cfg.SubjectTemplate, alert)
	}
	if cfg.BodyTemplate != "" {
		body = ApplyTemplate(cfg.BodyTemplate, alert)
	}

	var lastID string
	for _, recipient := range cfg.Recipients {
		id, err := s.transport.Send(ctx, recipient, subject, body)
		if err != nil {
			return "", fmt.Errorf("send to %s: %w", recipient, err)
		}
		lastID = id
	}

	s.logger.Info("Email notification sent",
		"alert_id", alert.ID, "channel_id", channel.ID, "recipients", len(cfg.Recipients))
	return lastID, nil
}

// smtpTransport is the built-in EmailTransport over plain SMTP.
type smtpTransport struct {
	cfg config.EmailSenderConfig
}

func NewSMTPTransport(cfg config.EmailSenderConfig) EmailTransport {
	return &smtpTransport{cfg: cfg}
}

func (t *smtpTransport) Send(ctx context.Context, to, subject, body string) (string, error) {
	if t.cfg.SMTPHost == "" || t.cfg.SMTPPort == 0 || t.cfg.FromAddress == "" {
		return "", fmt.Errorf("email transport not properly configured")
	}

	safeFrom, err := sanitizeEmailHeader("from address", t.cfg.FromAddress)
	if err != nil {
		return "", err
	}
	safeTo, err := sanitizeEmailHeader("recipient", to)
	if err != nil {
		return "", err
	}
	if safeTo == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	safeSubject, err := sanitizeEmailHeader("subject", subject)
	if err != nil {
		return "", err
	}

	var msgBuilder strings.Builder
	msgBuilder.WriteString("From: ")
	msgBuilder.WriteString(safeFrom)
	msgBuilder.WriteString("\r\n")
	msgBuilder.WriteString("To: ")
	msgBuilder.WriteString(safeTo)
	msgBuilder.WriteString("\r\n")
	msgBuilder.WriteString("Subject: ")
	msgBuilder.WriteString(safeSubject)
	msgBuilder.WriteString("\r\n\r\n")
	msgBuilder.WriteString(body)

	var auth smtp.Auth
	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, safeFrom, []string{safeTo}, []byte(msgBuilder.String())); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return "", nil
}

// sanitizeEmailHeader rejects header values that could break out of
// email headers.
func sanitizeEmailHeader(fieldName, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "\r\n") {
		return "", fmt.Errorf("%s contains invalid newline characters", fieldName)
	}
	return trimmed, nil
}
