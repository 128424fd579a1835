package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// ListEnabledChannels returns the enabled channels, optionally restricted
// to an id set. Severity filtering happens in Go because the severities
// column is a JSON list with "empty means all" semantics.
func (s *Store) ListEnabledChannels(ctx context.Context, severity models.Severity, ids []string) ([]*models.NotificationChannel, error) {
	query := `
        SELECT id, name, channel_type, enabled, configuration, severities, max_per_hour, max_per_day
          FROM notification_channels WHERE enabled = 1`
	args := make([]interface{}, 0, len(ids))
	if len(ids) > 0 {
		query += ` AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.NotificationChannel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		if severity != "" && !ch.AppliesTo(severity) {
			continue
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (s *Store) GetChannel(ctx context.Context, id string) (*models.NotificationChannel, error) {
	row := s.DB.QueryRowContext(ctx, `
        SELECT id, name, channel_type, enabled, configuration, severities, max_per_hour, max_per_day
          FROM notification_channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func scanChannel(row rowScanner) (*models.NotificationChannel, error) {
	var ch models.NotificationChannel
	var configBlob string
	var severitiesBlob sql.NullString
	err := row.Scan(&ch.ID, &ch.Name, &ch.Type, &ch.Enabled, &configBlob,
		&severitiesBlob, &ch.MaxNotificationsPerHour, &ch.MaxNotificationsPerDay)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("channel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	if err := json.Unmarshal([]byte(configBlob), &ch.Configuration); err != nil {
		return nil, fmt.Errorf("decode channel configuration for %s: %w", ch.ID, err)
	}
	if severitiesBlob.Valid && severitiesBlob.String != "" {
		if err := json.Unmarshal([]byte(severitiesBlob.String), &ch.Severities); err != nil {
			return nil, fmt.Errorf("decode channel severities for %s: %w", ch.ID, err)
		}
	}
	return &ch, nil
}
