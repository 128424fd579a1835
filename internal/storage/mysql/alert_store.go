package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/escalate-core/internal/models"
)

func (s *Store) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.DB.QueryRowContext(ctx, `
        SELECT id, title, description, severity, status, COALESCE(team_id, ''),
               COALESCE(metric_name, ''), COALESCE(metric_value, 0),
               COALESCE(threshold_value, 0), COALESCE(threshold_operator, ''),
               channel_ids, escalation_level, next_escalation_at, last_escalated_at,
               context, created_at, updated_at
          FROM alerts WHERE id = ?`, id)
	return scanAlert(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var channelIDs, contextBlob sql.NullString
	var nextAt, lastAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Severity, &a.Status, &a.TeamID,
		&a.MetricName, &a.MetricValue, &a.ThresholdValue, &a.ThresholdOperator,
		&channelIDs, &a.EscalationLevel, &nextAt, &lastAt,
		&contextBlob, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	if channelIDs.Valid && channelIDs.String != "" {
		if err := json.Unmarshal([]byte(channelIDs.String), &a.ChannelIDs); err != nil {
			return nil, fmt.Errorf("decode channel_ids: %w", err)
		}
	}
	if contextBlob.Valid && contextBlob.String != "" {
		if err := json.Unmarshal([]byte(contextBlob.String), &a.Context); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}
	if nextAt.Valid {
		a.NextEscalationAt = &nextAt.Time
	}
	if lastAt.Valid {
		a.LastEscalatedAt = &lastAt.Time
	}
	return &a, nil
}

// UpsertAlert stores a new alert or refreshes an existing one. The alert
// source owns alert creation; this is here so the HTTP surface can accept
// alerts it has not seen before.
func (s *Store) UpsertAlert(ctx context.Context, a *models.Alert) error {
	channelIDs, err := json.Marshal(a.ChannelIDs)
	if err != nil {
		return fmt.Errorf("encode channel_ids: %w", err)
	}
	contextBlob, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO alerts (id, title, description, severity, status, team_id,
                            metric_name, metric_value, threshold_value, threshold_operator,
                            channel_ids, escalation_level, context)
        VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?, ?, ?)
        ON DUPLICATE KEY UPDATE
            title = VALUES(title), description = VALUES(description),
            severity = VALUES(severity), status = VALUES(status),
            team_id = VALUES(team_id), channel_ids = VALUES(channel_ids),
            context = VALUES(context)`,
		a.ID, a.Title, a.Description, a.Severity, a.Status, a.TeamID,
		a.MetricName, a.MetricValue, a.ThresholdValue, a.ThresholdOperator,
		string(channelIDs), a.EscalationLevel, string(contextBlob),
	)
	if err != nil {
		return fmt.Errorf("upsert alert %s: %w", a.ID, err)
	}
	return nil
}

// UpdateEscalationState persists the escalation bookkeeping fields. A nil
// nextAt clears next_escalation_at, matching the "set iff a timer is
// armed" invariant.
func (s *Store) UpdateEscalationState(ctx context.Context, alertID string, level int, nextAt, lastAt *time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
        UPDATE alerts
           SET escalation_level = ?, next_escalation_at = ?, last_escalated_at = COALESCE(?, last_escalated_at)
         WHERE id = ?`,
		level, nullableTime(nextAt), nullableTime(lastAt), alertID)
	if err != nil {
		return fmt.Errorf("update escalation state for %s: %w", alertID, err)
	}
	return nil
}

func (s *Store) SetStatus(ctx context.Context, alertID string, status models.AlertStatus) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE alerts SET status = ? WHERE id = ?`, status, alertID)
	if err != nil {
		return fmt.Errorf("set status for %s: %w", alertID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("alert not found")
	}
	return nil
}

// ListOverdueAlerts returns non-terminal alerts whose scheduled
// escalation time has already passed. This is the crash-recovery net for
// in-process timers.
func (s *Store) ListOverdueAlerts(ctx context.Context, now time.Time) ([]*models.Alert, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, title, description, severity, status, COALESCE(team_id, ''),
               COALESCE(metric_name, ''), COALESCE(metric_value, 0),
               COALESCE(threshold_value, 0), COALESCE(threshold_operator, ''),
               channel_ids, escalation_level, next_escalation_at, last_escalated_at,
               context, created_at, updated_at
          FROM alerts
         WHERE next_escalation_at IS NOT NULL
           AND next_escalation_at <= ?
           AND status IN ('active', 'acknowledged')`, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Store) AppendHistory(ctx context.Context, entry *models.AlertHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO alert_history (id, alert_id, action, level, detail)
        VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.AlertID, entry.Action, entry.Level, entry.Detail)
	if err != nil {
		return fmt.Errorf("append history for %s: %w", entry.AlertID, err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
