package services

import (
	"context"
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// The engine talks to its persistence through these interfaces; the
// MySQL store in internal/storage/mysql implements all of them.

type AlertStore interface {
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpsertAlert(ctx context.Context, alert *models.Alert) error
	// UpdateEscalationState persists level/next/last; nil nextAt clears
	// next_escalation_at.
	UpdateEscalationState(ctx context.Context, alertID string, level int, nextAt, lastAt *time.Time) error
	SetStatus(ctx context.Context, alertID string, status models.AlertStatus) error
	ListOverdueAlerts(ctx context.Context, now time.Time) ([]*models.Alert, error)
	AppendHistory(ctx context.Context, entry *models.AlertHistoryEntry) error
}

type TeamDirectory interface {
	GetTeam(ctx context.Context, teamID string) (name string, members []models.TeamMember, err error)
	// GetTeamOverride returns (nil, nil) when the team has no override.
	GetTeamOverride(ctx context.Context, teamID string) (*models.TeamOverride, error)
}

type ChannelRegistry interface {
	// ListEnabledChannels returns enabled channels for a severity,
	// optionally restricted to the given ids. Empty severity means no
	// severity filter.
	ListEnabledChannels(ctx context.Context, severity models.Severity, ids []string) ([]*models.NotificationChannel, error)
	GetChannel(ctx context.Context, id string) (*models.NotificationChannel, error)
}

type DeliveryStore interface {
	CreateRecord(ctx context.Context, rec *models.DeliveryRecord) error
	UpdateRecord(ctx context.Context, rec *models.DeliveryRecord) error
	GetRecord(ctx context.Context, id string) (*models.DeliveryRecord, error)
	CountRecordsSince(ctx context.Context, channelID string, since time.Time) (int, error)
	CreateBatchAudit(ctx context.Context, batch *models.DeliveryBatch) error
}
