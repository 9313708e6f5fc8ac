package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/pkg/logger"
	"github.com/carebook/booking-api/pkg/messaging"
	"github.com/carebook/booking-api/pkg/metrics"
)

// Registered once: promauto panics on duplicate collector registration.
var testMetrics = metrics.NewMetrics("booking", "workertest")

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

type fakeOutboxRepo struct {
	mu            sync.Mutex
	pending       []*model.OutboxEvent
	statuses      map[uuid.UUID]model.OutboxStatus
	errors        map[uuid.UUID]*string
	retryAts      map[uuid.UUID]*time.Time
	deletedBefore *time.Time
	deleted       int64
}

func newFakeOutboxRepo(events ...*model.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		pending:  events,
		statuses: make(map[uuid.UUID]model.OutboxStatus),
		errors:   make(map[uuid.UUID]*string),
		retryAts: make(map[uuid.UUID]*time.Time),
	}
}

func (r *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, event)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.pending) {
		limit = len(r.pending)
	}
	batch := r.pending[:limit]
	r.pending = r.pending[limit:]
	return batch, nil
}

func (r *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	r.errors[id] = errorMessage
	r.retryAts[id] = retryAt
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedBefore = &before
	return r.deleted, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	published []messaging.Message
	failures  int
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		MaxAttempts:   5,
		Retention:     time.Hour,
	}
}

func pendingEvent(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   json.RawMessage(`{"appointment_id":"` + uuid.New().String() + `"}`),
		Status:    model.OutboxStatusPending,
	}
}

func TestProcessEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending events and marks them processed", func(t *testing.T) {
		booked := pendingEvent(model.EventAppointmentBooked)
		paid := pendingEvent(model.EventAppointmentPaid)
		repo := newFakeOutboxRepo(booked, paid)
		broker := &fakeBroker{}

		p := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), testMetrics)
		require.NoError(t, p.processEvents(ctx))

		require.Len(t, broker.published, 2)
		assert.Equal(t, model.EventAppointmentBooked, broker.published[0].Type)
		assert.Equal(t, model.OutboxStatusProcessed, repo.statuses[booked.ID])
		assert.Equal(t, model.OutboxStatusProcessed, repo.statuses[paid.ID])
	})

	t.Run("retries transient publish failures", func(t *testing.T) {
		event := pendingEvent(model.EventAppointmentBooked)
		repo := newFakeOutboxRepo(event)
		broker := &fakeBroker{failures: 2}

		p := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), testMetrics)
		require.NoError(t, p.processEvents(ctx))

		require.Len(t, broker.published, 1)
		assert.Equal(t, model.OutboxStatusProcessed, repo.statuses[event.ID])
	})

	t.Run("schedules a retry once publish retries are exhausted", func(t *testing.T) {
		event := pendingEvent(model.EventAppointmentCancelled)
		repo := newFakeOutboxRepo(event)
		broker := &fakeBroker{failures: 5}

		p := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), testMetrics)
		require.NoError(t, p.processEvents(ctx))

		assert.Empty(t, broker.published)
		assert.Equal(t, model.OutboxStatusRetry, repo.statuses[event.ID])
		require.NotNil(t, repo.errors[event.ID])
		assert.Contains(t, *repo.errors[event.ID], "broker unavailable")
		require.NotNil(t, repo.retryAts[event.ID])
		assert.True(t, repo.retryAts[event.ID].After(time.Now().Add(-time.Minute)))
	})

	t.Run("dead-letters the event once the attempt budget is spent", func(t *testing.T) {
		event := pendingEvent(model.EventAppointmentCancelled)
		event.RetryCount = testConfig().MaxAttempts - 1
		repo := newFakeOutboxRepo(event)
		broker := &fakeBroker{failures: 5}

		p := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), testMetrics)
		require.NoError(t, p.processEvents(ctx))

		assert.Empty(t, broker.published)
		assert.Equal(t, model.OutboxStatusFailed, repo.statuses[event.ID])
		require.NotNil(t, repo.errors[event.ID])
		assert.Nil(t, repo.retryAts[event.ID])
	})

	t.Run("a failed event does not block the rest of the batch", func(t *testing.T) {
		bad := pendingEvent(model.EventAppointmentBooked)
		good := pendingEvent(model.EventAppointmentPaid)
		repo := newFakeOutboxRepo(bad, good)
		broker := &fakeBroker{failures: 3}

		p := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), testMetrics)
		require.NoError(t, p.processEvents(ctx))

		require.Len(t, broker.published, 1)
		assert.Equal(t, model.EventAppointmentPaid, broker.published[0].Type)
		assert.Equal(t, model.OutboxStatusRetry, repo.statuses[bad.ID])
		assert.Equal(t, model.OutboxStatusProcessed, repo.statuses[good.ID])
	})
}

func TestCleanup(t *testing.T) {
	repo := newFakeOutboxRepo()
	repo.deleted = 7
	broker := &fakeBroker{}

	p := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), testMetrics)
	require.NoError(t, p.cleanup(context.Background()))

	require.NotNil(t, repo.deletedBefore)
	wantCutoff := time.Now().Add(-testConfig().Retention)
	assert.WithinDuration(t, wantCutoff, *repo.deletedBefore, time.Minute)
}

func TestNewOutboxProcessorValidation(t *testing.T) {
	repo := newFakeOutboxRepo()
	broker := &fakeBroker{}

	assert.Panics(t, func() {
		cfg := testConfig()
		cfg.BatchSize = 0
		NewOutboxProcessor(repo, broker, cfg, quietLogger(), testMetrics)
	})
	assert.Panics(t, func() {
		cfg := testConfig()
		cfg.PollInterval = 0
		NewOutboxProcessor(repo, broker, cfg, quietLogger(), testMetrics)
	})
	assert.Panics(t, func() {
		cfg := testConfig()
		cfg.MaxAttempts = 0
		NewOutboxProcessor(repo, broker, cfg, quietLogger(), testMetrics)
	})
}
