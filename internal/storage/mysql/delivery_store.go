package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/escalate-core/internal/models"
)

func (s *Store) CreateRecord(ctx context.Context, rec *models.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Attempts == 0 {
		rec.Attempts = 1
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO delivery_records (id, alert_id, channel_id, channel_type, status,
                                      external_message_id, error, attempts)
        VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`,
		rec.ID, rec.AlertID, rec.ChannelID, rec.ChannelType, rec.Status,
		rec.ExternalMessageID, rec.Error, rec.Attempts)
	if err != nil {
		return fmt.Errorf("create delivery record: %w", err)
	}
	return nil
}

func (s *Store) UpdateRecord(ctx context.Context, rec *models.DeliveryRecord) error {
	_, err := s.DB.ExecContext(ctx, `
        UPDATE delivery_records
           SET status = ?, external_message_id = NULLIF(?, ''), error = NULLIF(?, ''), attempts = ?
         WHERE id = ?`,
		rec.Status, rec.ExternalMessageID, rec.Error, rec.Attempts, rec.ID)
	if err != nil {
		return fmt.Errorf("update delivery record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	var externalID, errText sql.NullString
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, alert_id, channel_id, channel_type, status,
               external_message_id, error, attempts, created_at, updated_at
          FROM delivery_records WHERE id = ?`, id).Scan(
		&rec.ID, &rec.AlertID, &rec.ChannelID, &rec.ChannelType, &rec.Status,
		&externalID, &errText, &rec.Attempts, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("delivery record not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery record %s: %w", id, err)
	}
	rec.ExternalMessageID = externalID.String
	rec.Error = errText.String
	return &rec, nil
}

// CountRecordsSince counts delivery attempts for a channel inside a
// trailing window. This is the rate-limit counting source.
func (s *Store) CountRecordsSince(ctx context.Context, channelID string, since time.Time) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM delivery_records
         WHERE channel_id = ? AND created_at >= ?`, channelID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count delivery records for %s: %w", channelID, err)
	}
	return count, nil
}

func (s *Store) CreateBatchAudit(ctx context.Context, batch *models.DeliveryBatch) error {
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO delivery_batches (id, alert_id, success_count, failure_count, total_time_ms)
        VALUES (?, ?, ?, ?, ?)`,
		batch.BatchID, batch.AlertID, batch.SuccessCount, batch.FailureCount, batch.TotalTimeMs)
	if err != nil {
		return fmt.Errorf("create delivery batch audit: %w", err)
	}
	return nil
}
