package models

import "time"

// InAppNotification is a notification surfaced inside the product UI.
// The engine only writes these; the UI data layer reads them.
type InAppNotification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AlertID   string    `json:"alert_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Severity  Severity  `json:"severity"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
