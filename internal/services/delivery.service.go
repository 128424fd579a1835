package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/escalate-core/internal/channels"
	"github.com/platformbuilds/escalate-core/internal/metrics"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// DeliveryEngine pushes one alert through one or many channels. Each
// channel's send is isolated: a failing channel produces a failed
// DeliveryResult, never an error that aborts sibling sends.
type DeliveryEngine struct {
	registry      *channels.Registry
	deliveryStore DeliveryStore
	channelStore  ChannelRegistry
	alertStore    AlertStore
	resolver      *TeamAssignmentResolver
	maxAttempts   int
	logger        logger.Logger
}

func NewDeliveryEngine(
	registry *channels.Registry,
	deliveryStore DeliveryStore,
	channelStore ChannelRegistry,
	alertStore AlertStore,
	resolver *TeamAssignmentResolver,
	maxAttempts int,
	log logger.Logger,
) *DeliveryEngine {
	return &DeliveryEngine{
		registry:      registry,
		deliveryStore: deliveryStore,
		channelStore:  channelStore,
		alertStore:    alertStore,
		resolver:      resolver,
		maxAttempts:   maxAttempts,
		logger:        log,
	}
}

// Deliver sends the alert through a single channel, enforcing the
// enabled flag and the channel's hourly/daily rate limits.
func (e *DeliveryEngine) Deliver(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel, team *models.TeamAssignment) models.DeliveryResult {
	start := time.Now()
	result := models.DeliveryResult{
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
	}

	if !channel.Enabled {
		result.Error = fmt.Sprintf("channel %s is disabled", channel.ID)
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "disabled").Inc()
		return result
	}

	if reason := e.rateLimited(ctx, channel); reason != "" {
		result.Error = reason
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "rate_limited").Inc()
		e.logger.Warn("Delivery rate limited",
			"alert_id", alert.ID, "channel_id", channel.ID, "reason", reason)
		return result
	}

	sender, err := e.registry.Sender(channel.Type)
	if err != nil {
		result.Error = err.Error()
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "failed").Inc()
		return result
	}

	// The pending record is both the audit trail and the rate-limit
	// counting source; it is created before the send attempt.
	record := &models.DeliveryRecord{
		AlertID:     alert.ID,
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
		Status:      models.DeliveryPending,
	}
	if err := e.deliveryStore.CreateRecord(ctx, record); err != nil {
		// Losing the audit row is preferable to losing the delivery.
		e.logger.Error("Failed to create delivery record",
			"alert_id", alert.ID, "channel_id", channel.ID, "error", err)
	}
	result.DeliveryID = record.ID

	externalID, sendErr := sender.Send(ctx, alert, channel, team)
	result.DeliveryTimeMs = time.Since(start).Milliseconds()
	metrics.DeliveryDuration.WithLabelValues(string(channel.Type)).Observe(time.Since(start).Seconds())

	if sendErr != nil {
		record.Status = models.DeliveryFailed
		record.Error = sendErr.Error()
		result.Error = sendErr.Error()
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "failed").Inc()
	} else {
		record.Status = models.DeliverySent
		record.ExternalMessageID = externalID
		result.Success = true
		result.ExternalMessageID = externalID
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "sent").Inc()
	}

	if record.ID != "" {
		if err := e.deliveryStore.UpdateRecord(ctx, record); err != nil {
			e.logger.Error("Failed to update delivery record",
				"delivery_id", record.ID, "error", err)
		}
	}
	return result
}

// DeliverAll fans the alert out across all channels concurrently and
// joins the per-channel outcomes. One failure never blocks or fails the
// others.
func (e *DeliveryEngine) DeliverAll(ctx context.Context, alert *models.Alert, chans []*models.NotificationChannel, team *models.TeamAssignment) *models.DeliveryBatch {
	start := time.Now()
	batch := &models.DeliveryBatch{
		BatchID:   uuid.NewString(),
		AlertID:   alert.ID,
		StartedAt: start,
	}

	results := make([]models.DeliveryResult, len(chans))
	var wg sync.WaitGroup
	for i, ch := range chans {
		wg.Add(1)
		go func(i int, ch *models.NotificationChannel) {
			defer wg.Done()
			results[i] = e.Deliver(ctx, alert, ch, team)
		}(i, ch)
	}
	wg.Wait()

	for _, r := range results {
		batch.Add(r)
	}
	batch.TotalTimeMs = time.Since(start).Milliseconds()

	if err := e.deliveryStore.CreateBatchAudit(ctx, batch); err != nil {
		e.logger.Error("Failed to record delivery batch",
			"alert_id", alert.ID, "batch_id", batch.BatchID, "error", err)
	}
	return batch
}

// rateLimited returns a non-empty reason when the channel is over one of
// its windows. Counting-query failures fail open: a rate-limit
// infrastructure error must not silently drop an alert.
func (e *DeliveryEngine) rateLimited(ctx context.Context, channel *models.NotificationChannel) string {
	now := time.Now()
	if channel.MaxNotificationsPerHour > 0 {
		count, err := e.deliveryStore.CountRecordsSince(ctx, channel.ID, now.Add(-time.Hour))
		if err != nil {
			e.logger.Error("Rate limit count failed, failing open",
				"channel_id", channel.ID, "error", err)
		} else if count >= channel.MaxNotificationsPerHour {
			return fmt.Sprintf("rate limit exceeded: %d notifications in the last hour (max %d)",
				count, channel.MaxNotificationsPerHour)
		}
	}
	if channel.MaxNotificationsPerDay > 0 {
		count, err := e.deliveryStore.CountRecordsSince(ctx, channel.ID, now.Add(-24*time.Hour))
		if err != nil {
			e.logger.Error("Rate limit count failed, failing open",
				"channel_id", channel.ID, "error", err)
		} else if count >= channel.MaxNotificationsPerDay {
			return fmt.Sprintf("rate limit exceeded: %d notifications in the last day (max %d)",
				count, channel.MaxNotificationsPerDay)
		}
	}
	return ""
}

// RetryFailedNotification redelivers one failed notification, bounded
// by the configured attempts ceiling. Exceeding the ceiling is a
// reported error, not a silent drop.
func (e *DeliveryEngine) RetryFailedNotification(ctx context.Context, deliveryID string) (models.DeliveryResult, error) {
	record, err := e.deliveryStore.GetRecord(ctx, deliveryID)
	if err != nil {
		return models.DeliveryResult{}, err
	}
	if record.Status == models.DeliverySent {
		return models.DeliveryResult{}, fmt.Errorf("delivery %s already succeeded", deliveryID)
	}
	if record.Attempts >= e.maxAttempts {
		return models.DeliveryResult{}, fmt.Errorf("delivery %s exhausted retry budget (%d attempts, max %d)",
			deliveryID, record.Attempts, e.maxAttempts)
	}

	alert, err := e.alertStore.GetAlert(ctx, record.AlertID)
	if err != nil {
		return models.DeliveryResult{}, fmt.Errorf("load alert for retry: %w", err)
	}
	channel, err := e.channelStore.GetChannel(ctx, record.ChannelID)
	if err != nil {
		return models.DeliveryResult{}, fmt.Errorf("load channel for retry: %w", err)
	}
	sender, err := e.registry.Sender(channel.Type)
	if err != nil {
		return models.DeliveryResult{}, err
	}

	var team *models.TeamAssignment
	if alert.TeamID != "" {
		if team, err = e.resolver.Resolve(ctx, alert.TeamID, alert.Severity); err != nil {
			e.logger.Warn("Retry proceeding without team assignment",
				"alert_id", alert.ID, "error", err)
			team = nil
		}
	}

	start := time.Now()
	record.Attempts++
	record.Status = models.DeliveryPending
	record.Error = ""
	if err := e.deliveryStore.UpdateRecord(ctx, record); err != nil {
		e.logger.Error("Failed to mark delivery pending for retry",
			"delivery_id", deliveryID, "error", err)
	}

	result := models.DeliveryResult{
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
		DeliveryID:  record.ID,
	}
	externalID, sendErr := sender.Send(ctx, alert, channel, team)
	result.DeliveryTimeMs = time.Since(start).Milliseconds()

	if sendErr != nil {
		record.Status = models.DeliveryFailed
		record.Error = sendErr.Error()
		result.Error = sendErr.Error()
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "failed").Inc()
	} else {
		record.Status = models.DeliverySent
		record.ExternalMessageID = externalID
		result.Success = true
		result.ExternalMessageID = externalID
		metrics.NotificationsSent.WithLabelValues(string(channel.Type), "sent").Inc()
	}
	if err := e.deliveryStore.UpdateRecord(ctx, record); err != nil {
		e.logger.Error("Failed to update delivery record after retry",
			"delivery_id", deliveryID, "error", err)
	}
	return result, nil
}
