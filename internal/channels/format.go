package channels

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// Message is a rendered notification, shared by every channel type.
type Message struct {
	Subject string
	Body    string
}

const smsMaxLength = 160

var severityEmoji = map[models.Severity]string{
	models.SeverityCritical: "🚨",
	models.SeverityHigh:     "🔴",
	models.SeverityMedium:   "🟠",
	models.SeverityLow:      "🟡",
	models.SeverityInfo:     "ℹ️",
}

// FormatMessage renders the default subject/body layout for an alert:
// severity, timestamp, description, metric block when present, and the
// free-form context blob when non-empty.
func FormatMessage(alert *models.Alert) Message {
	emoji := severityEmoji[alert.Severity]
	if emoji == "" {
		emoji = "🔔"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(alert.Severity)))
	fmt.Fprintf(&b, "Time: %s\n", alert.CreatedAt.Format(time.RFC3339))
	if alert.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", alert.Description)
	}
	if alert.MetricName != "" {
		fmt.Fprintf(&b, "\nMetric: %s\nValue: %g\nThreshold: %s %g\n",
			alert.MetricName, alert.MetricValue, alert.ThresholdOperator, alert.ThresholdValue)
	}
	if len(alert.Context) > 0 {
		if blob, err := json.MarshalIndent(alert.Context, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nContext:\n%s\n", blob)
		}
	}

	return Message{
		Subject: fmt.Sprintf("%s %s", emoji, alert.Title),
		Body:    b.String(),
	}
}

// ApplyTemplate substitutes {{alert.*}} placeholders in a custom
// template. This is a plain find-and-replace, not a template engine.
func ApplyTemplate(tmpl string, alert *models.Alert) string {
	replacer := strings.NewReplacer(
		"{{alert.id}}", alert.ID,
		"{{alert.title}}", alert.Title,
		"{{alert.description}}", alert.Description,
		"{{alert.severity}}", string(alert.Severity),
		"{{alert.status}}", string(alert.Status),
		"{{alert.team_id}}", alert.TeamID,
		"{{alert.metric_name}}", alert.MetricName,
		"{{alert.metric_value}}", fmt.Sprintf("%g", alert.MetricValue),
		"{{alert.threshold_value}}", fmt.Sprintf("%g", alert.ThresholdValue),
		"{{alert.threshold_operator}}", alert.ThresholdOperator,
		"{{alert.created_at}}", alert.CreatedAt.Format(time.RFC3339),
	)
	return replacer.Replace(tmpl)
}

// TruncateSMS hard-truncates a message to the 160-character SMS limit,
// replacing the tail with a three-character ellipsis when it is cut.
func TruncateSMS(message string) string {
	runes := []rune(message)
	if len(runes) <= smsMaxLength {
		return message
	}
	return string(runes[:smsMaxLength-3]) + "..."
}

// slackColor maps severity to Slack attachment colors.
func slackColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityHigh:
		return "warning"
	case models.SeverityMedium:
		return "#FFBF00"
	case models.SeverityLow:
		return "good"
	case models.SeverityInfo:
		return "#439FE0"
	default:
		return "#808080"
	}
}
