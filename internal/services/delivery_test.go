package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/escalate-core/internal/channels"
	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// stubSender is a controllable channels.Sender.
type stubSender struct {
	typ  models.ChannelType
	fail bool

	mu    sync.Mutex
	calls int
}

func (s *stubSender) Type() models.ChannelType { return s.typ }

func (s *stubSender) Send(_ context.Context, alert *models.Alert, channel *models.NotificationChannel, _ *models.TeamAssignment) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail {
		return "", errors.New("transport down")
	}
	return "ext-" + channel.ID, nil
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memDeliveryStore is an in-memory DeliveryStore safe for the fan-out's
// concurrent writes.
type memDeliveryStore struct {
	mu        sync.Mutex
	records   map[string]*models.DeliveryRecord
	batches   []*models.DeliveryBatch
	countErr  error
	createErr error
}

func newMemDeliveryStore() *memDeliveryStore {
	return &memDeliveryStore{records: make(map[string]*models.DeliveryRecord)}
}

func (m *memDeliveryStore) CreateRecord(_ context.Context, rec *models.DeliveryRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Attempts == 0 {
		rec.Attempts = 1
	}
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memDeliveryStore) UpdateRecord(_ context.Context, rec *models.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memDeliveryStore) GetRecord(_ context.Context, id string) (*models.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("delivery record %s not found", id)
	}
	cp := *rec
	return &cp, nil
}

func (m *memDeliveryStore) CountRecordsSince(_ context.Context, channelID string, since time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, rec := range m.records {
		if rec.ChannelID == channelID && rec.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *memDeliveryStore) CreateBatchAudit(_ context.Context, batch *models.DeliveryBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

func (m *memDeliveryStore) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memChannelStore serves a fixed channel set.
type memChannelStore struct {
	channels map[string]*models.NotificationChannel
}

func newMemChannelStore(chans ...*models.NotificationChannel) *memChannelStore {
	m := &memChannelStore{channels: make(map[string]*models.NotificationChannel)}
	for _, ch := range chans {
		m.channels[ch.ID] = ch
	}
	return m
}

func (m *memChannelStore) ListEnabledChannels(_ context.Context, severity models.Severity, ids []string) ([]*models.NotificationChannel, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []*models.NotificationChannel
	for _, ch := range m.channels {
		if !ch.Enabled {
			continue
		}
		if len(ids) > 0 && !wanted[ch.ID] {
			continue
		}
		if severity != "" && !ch.AppliesTo(severity) {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

func (m *memChannelStore) GetChannel(_ context.Context, id string) (*models.NotificationChannel, error) {
	ch, ok := m.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", id)
	}
	return ch, nil
}

func enabledChannel(id string, typ models.ChannelType) *models.NotificationChannel {
	return &models.NotificationChannel{ID: id, Name: id, Type: typ, Enabled: true}
}

func testRegistry(senders ...*stubSender) *channels.Registry {
	r := channels.NewRegistry(config.SendersConfig{}, &nopInAppStore{}, logger.Nop())
	for _, s := range senders {
		r.Register(s)
	}
	return r
}

type nopInAppStore struct{}

func (nopInAppStore) CreateInAppNotification(context.Context, *models.InAppNotification) error {
	return nil
}

func testAlert(severity models.Severity) *models.Alert {
	return &models.Alert{
		ID:        "alert-" + uuid.NewString(),
		Title:     "disk filling up",
		Severity:  severity,
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

func TestDeliverAllIsolatesFailures(t *testing.T) {
	emailStub := &stubSender{typ: models.ChannelEmail}
	slackStub := &stubSender{typ: models.ChannelSlack, fail: true}
	webhookStub := &stubSender{typ: models.ChannelWebhook}

	store := newMemDeliveryStore()
	engine := NewDeliveryEngine(testRegistry(emailStub, slackStub, webhookStub),
		store, newMemChannelStore(), nil, nil, 3, logger.Nop())

	chans := []*models.NotificationChannel{
		enabledChannel("ch-email", models.ChannelEmail),
		enabledChannel("ch-slack", models.ChannelSlack),
		enabledChannel("ch-webhook", models.ChannelWebhook),
	}
	batch := engine.DeliverAll(context.Background(), testAlert(models.SeverityHigh), chans, nil)

	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
	assert.True(t, batch.AnySuccess())
	require.Len(t, batch.Results, 3)

	// Every attempt left an audit record, failed one included.
	assert.Equal(t, 3, store.recordCount())
	assert.Len(t, store.batches, 1)

	// All three senders were exercised despite the slack failure.
	assert.Equal(t, 1, emailStub.callCount())
	assert.Equal(t, 1, slackStub.callCount())
	assert.Equal(t, 1, webhookStub.callCount())
}

func TestDeliverSkipsDisabledChannel(t *testing.T) {
	stub := &stubSender{typ: models.ChannelEmail}
	store := newMemDeliveryStore()
	engine := NewDeliveryEngine(testRegistry(stub), store, newMemChannelStore(), nil, nil, 3, logger.Nop())

	ch := enabledChannel("ch-email", models.ChannelEmail)
	ch.Enabled = false
	result := engine.Deliver(context.Background(), testAlert(models.SeverityLow), ch, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disabled")
	assert.Zero(t, stub.callCount())
	assert.Zero(t, store.recordCount(), "disabled channels leave no delivery record")
}

func TestDeliverRateLimit(t *testing.T) {
	stub := &stubSender{typ: models.ChannelSMS}
	store := newMemDeliveryStore()
	engine := NewDeliveryEngine(testRegistry(stub), store, newMemChannelStore(), nil, nil, 3, logger.Nop())

	ch := enabledChannel("ch-sms", models.ChannelSMS)
	ch.MaxNotificationsPerHour = 1

	first := engine.Deliver(context.Background(), testAlert(models.SeverityCritical), ch, nil)
	assert.True(t, first.Success)

	second := engine.Deliver(context.Background(), testAlert(models.SeverityCritical), ch, nil)
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "rate limit exceeded")

	// Rate-limited attempts do not create records, so the denial does
	// not extend itself.
	assert.Equal(t, 1, store.recordCount())
	assert.Equal(t, 1, stub.callCount())
}

func TestDeliverRateLimitFailsOpen(t *testing.T) {
	stub := &stubSender{typ: models.ChannelEmail}
	store := newMemDeliveryStore()
	store.countErr = errors.New("db gone")
	engine := NewDeliveryEngine(testRegistry(stub), store, newMemChannelStore(), nil, nil, 3, logger.Nop())

	ch := enabledChannel("ch-email", models.ChannelEmail)
	ch.MaxNotificationsPerHour = 1

	result := engine.Deliver(context.Background(), testAlert(models.SeverityHigh), ch, nil)
	assert.True(t, result.Success, "count failures must not block delivery")
}

func TestDeliverRecordsFailureDetail(t *testing.T) {
	stub := &stubSender{typ: models.ChannelWebhook, fail: true}
	store := newMemDeliveryStore()
	engine := NewDeliveryEngine(testRegistry(stub), store, newMemChannelStore(), nil, nil, 3, logger.Nop())

	result := engine.Deliver(context.Background(), testAlert(models.SeverityMedium),
		enabledChannel("ch-webhook", models.ChannelWebhook), nil)
	require.False(t, result.Success)
	require.NotEmpty(t, result.DeliveryID)

	rec, err := store.GetRecord(context.Background(), result.DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, rec.Status)
	assert.Equal(t, "transport down", rec.Error)
}

func TestRetryFailedNotification(t *testing.T) {
	stub := &stubSender{typ: models.ChannelWebhook, fail: true}
	store := newMemDeliveryStore()
	alerts := newMemAlertStore()
	alert := testAlert(models.SeverityHigh)
	require.NoError(t, alerts.UpsertAlert(context.Background(), alert))

	ch := enabledChannel("ch-webhook", models.ChannelWebhook)
	chanStore := newMemChannelStore(ch)
	engine := NewDeliveryEngine(testRegistry(stub), store, chanStore, alerts, nil, 2, logger.Nop())

	result := engine.Deliver(context.Background(), alert, ch, nil)
	require.False(t, result.Success)

	// Transport recovers; retry succeeds and the record flips to sent.
	stub.fail = false
	retried, err := engine.RetryFailedNotification(context.Background(), result.DeliveryID)
	require.NoError(t, err)
	assert.True(t, retried.Success)

	rec, err := store.GetRecord(context.Background(), result.DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySent, rec.Status)
	assert.Equal(t, 2, rec.Attempts)

	// A sent record cannot be retried again.
	_, err = engine.RetryFailedNotification(context.Background(), result.DeliveryID)
	assert.ErrorContains(t, err, "already succeeded")
}

func TestRetryExhaustsBudget(t *testing.T) {
	stub := &stubSender{typ: models.ChannelWebhook, fail: true}
	store := newMemDeliveryStore()
	alerts := newMemAlertStore()
	alert := testAlert(models.SeverityHigh)
	require.NoError(t, alerts.UpsertAlert(context.Background(), alert))

	ch := enabledChannel("ch-webhook", models.ChannelWebhook)
	engine := NewDeliveryEngine(testRegistry(stub), store, newMemChannelStore(ch), alerts, nil, 2, logger.Nop())

	result := engine.Deliver(context.Background(), alert, ch, nil)
	require.False(t, result.Success)

	// Attempt 2 of 2 still fails.
	retried, err := engine.RetryFailedNotification(context.Background(), result.DeliveryID)
	require.NoError(t, err)
	assert.False(t, retried.Success)

	// Budget exhausted.
	_, err = engine.RetryFailedNotification(context.Background(), result.DeliveryID)
	assert.ErrorContains(t, err, "exhausted retry budget")
}
