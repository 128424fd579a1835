package channels

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platformbuilds/escalate-core/internal/models"
)

func sampleAlert() *models.Alert {
	return &models.Alert{
		ID:                "alert-1",
		Title:             "CPU usage high",
		Description:       "cpu above threshold on node-3",
		Severity:          models.SeverityCritical,
		Status:            models.AlertStatusActive,
		TeamID:            "team-infra",
		MetricName:        "cpu_usage",
		MetricValue:       97.5,
		ThresholdValue:    90,
		ThresholdOperator: ">",
		CreatedAt:         time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(sampleAlert())

	assert.Equal(t, "🚨 CPU usage high", msg.Subject)
	assert.Contains(t, msg.Body, "Severity: CRITICAL")
	assert.Contains(t, msg.Body, "cpu above threshold on node-3")
	assert.Contains(t, msg.Body, "Metric: cpu_usage")
	assert.Contains(t, msg.Body, "Threshold: > 90")
}

func TestFormatMessageUnknownSeverityFallsBack(t *testing.T) {
	alert := sampleAlert()
	alert.Severity = models.Severity("bogus")

	msg := FormatMessage(alert)
	assert.True(t, strings.HasPrefix(msg.Subject, "🔔 "))
}

func TestApplyTemplate(t *testing.T) {
	out := ApplyTemplate("[{{alert.severity}}] {{alert.title}} ({{alert.metric_name}}={{alert.metric_value}})", sampleAlert())
	assert.Equal(t, "[critical] CPU usage high (cpu_usage=97.5)", out)
}

func TestApplyTemplateLeavesUnknownPlaceholders(t *testing.T) {
	out := ApplyTemplate("{{alert.nope}} {{alert.id}}", sampleAlert())
	assert.Equal(t, "{{alert.nope}} alert-1", out)
}

func TestTruncateSMS(t *testing.T) {
	short := strings.Repeat("a", 160)
	assert.Equal(t, short, TruncateSMS(short))

	long := strings.Repeat("b", 161)
	got := TruncateSMS(long)
	assert.Len(t, []rune(got), 160)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("b", 157), got[:157])
}

func TestTruncateSMSCountsRunes(t *testing.T) {
	long := strings.Repeat("é", 200)
	got := TruncateSMS(long)
	assert.Len(t, []rune(got), 160)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSlackColor(t *testing.T) {
	assert.Equal(t, "danger", slackColor(models.SeverityCritical))
	assert.Equal(t, "warning", slackColor(models.SeverityHigh))
	assert.Equal(t, "#FFBF00", slackColor(models.SeverityMedium))
	assert.Equal(t, "good", slackColor(models.SeverityLow))
	assert.Equal(t, "#439FE0", slackColor(models.SeverityInfo))
	assert.Equal(t, "#808080", slackColor(models.Severity("other")))
}
