package mysql

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platformbuilds/escalate-core/internal/models"
)

func (s *Store) CreateInAppNotification(ctx context.Context, n *models.InAppNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO in_app_notifications (id, user_id, alert_id, subject, body, severity)
        VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.AlertID, n.Subject, n.Body, n.Severity)
	if err != nil {
		return fmt.Errorf("create in-app notification: %w", err)
	}
	return nil
}
