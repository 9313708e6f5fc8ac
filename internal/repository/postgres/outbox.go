package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carebook/booking-api/internal/model"
)

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}

	if _, err := r.db.ExecContext(ctx, query, event.ID, event.EventType, event.Payload, event.Status, now); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEventsWithLock uses SKIP LOCKED so multiple worker instances can
// poll the outbox without handing out the same batch twice. RETRY rows come
// back once their retry_at backoff has elapsed; FAILED is a dead-letter state
// and is never re-polled.
func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message, retry_count, retry_at, created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status = ANY($1)
		  AND (retry_at IS NULL OR retry_at <= $2)
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	pollable := pq.StringArray{string(model.OutboxStatusPending), string(model.OutboxStatusRetry)}
	var events []*model.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, pollable, time.Now().UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $2,
		    error_message = $3,
		    retry_at = $4,
		    retry_count = CASE WHEN $2 IN ('RETRY', 'FAILED') THEN retry_count + 1 ELSE retry_count END,
		    processed_at = CASE WHEN $2 = 'PROCESSED' THEN $5 ELSE processed_at END,
		    updated_at = $5
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, status, errorMessage, retryAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update outbox event status: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2
	`
	res, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
