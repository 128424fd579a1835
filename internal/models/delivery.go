package models

import "time"

// DeliveryResult is the outcome of one channel's send attempt. Transport
// failures are captured here, never raised past the fan-out boundary.
type DeliveryResult struct {
	Success           bool        `json:"success"`
	ChannelID         string      `json:"channel_id"`
	ChannelType       ChannelType `json:"channel_type"`
	DeliveryID        string      `json:"delivery_id,omitempty"`
	ExternalMessageID string      `json:"external_message_id,omitempty"`
	Error             string      `json:"error,omitempty"`
	DeliveryTimeMs    int64       `json:"delivery_time_ms"`
}

// DeliveryBatch aggregates the per-channel results of one delivery pass.
type DeliveryBatch struct {
	BatchID      string           `json:"batch_id"`
	AlertID      string           `json:"alert_id"`
	Results      []DeliveryResult `json:"results"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	TotalTimeMs  int64            `json:"total_time_ms"`
	StartedAt    time.Time        `json:"started_at"`
}

func (b *DeliveryBatch) Add(r DeliveryResult) {
	b.Results = append(b.Results, r)
	if r.Success {
		b.SuccessCount++
	} else {
		b.FailureCount++
	}
}

// AnySuccess reports whether at least one channel got the alert out.
func (b *DeliveryBatch) AnySuccess() bool {
	return b.SuccessCount > 0
}
