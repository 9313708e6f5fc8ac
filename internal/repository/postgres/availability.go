package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

func (r *availabilityRepository) CreateRules(ctx context.Context, rules []*model.AvailabilityRule) error {
	if len(rules) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO doctor_availability_rules (id, doctor_id, weekday, start_time, end_time, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	now := time.Now().UTC()
	for _, rule := range rules {
		if rule.ID == uuid.Nil {
			rule.ID = uuid.New()
		}
		rule.CreatedAt = now
		rule.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query,
			rule.ID, rule.DoctorID, rule.Weekday, rule.StartTime, rule.EndTime, rule.Timezone, now,
		); err != nil {
			return fmt.Errorf("failed to insert availability rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rules: %w", err)
	}
	return nil
}

func (r *availabilityRepository) ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT id, doctor_id, weekday, start_time, end_time, timezone, created_at, updated_at
		FROM doctor_availability_rules
		WHERE doctor_id = $1
		ORDER BY weekday ASC, start_time ASC
	`
	var rules []*model.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list availability rules: %w", err)
	}
	return rules, nil
}

// InsertSlots runs as a single transaction so a partial failure never leaves
// a half-generated range behind. The ON CONFLICT clause makes re-generation
// idempotent on (doctor_id, start_time) and leaves booked rows untouched.
func (r *availabilityRepository) InsertSlots(ctx context.Context, doctorID uuid.UUID, slots []*model.AvailabilitySlot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO doctor_availability_slots (id, doctor_id, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		ON CONFLICT (doctor_id, start_time) DO NOTHING
	`
	now := time.Now().UTC()
	var inserted int64
	for _, slot := range slots {
		if slot.ID == uuid.Nil {
			slot.ID = uuid.New()
		}
		res, err := tx.ExecContext(ctx, query, slot.ID, doctorID, slot.StartTime, slot.EndTime, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert slot: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += rows
	}

	if err := insertOutboxTx(ctx, tx, model.EventSlotsGenerated, map[string]interface{}{
		"doctor_id": doctorID.String(),
		"requested": len(slots),
		"inserted":  inserted,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit slots: %w", err)
	}
	return inserted, nil
}

func (r *availabilityRepository) GetSlot(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM doctor_availability_slots
		WHERE id = $1
	`
	var slot model.AvailabilitySlot
	err := r.db.GetContext(ctx, &slot, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("slot", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (r *availabilityRepository) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.FreeSlot, error) {
	query := `
		SELECT id, start_time, end_time
		FROM doctor_availability_slots
		WHERE doctor_id = $1
		  AND is_booked = FALSE
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time ASC
	`
	var slots []*model.FreeSlot
	if err := r.db.SelectContext(ctx, &slots, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list free slots: %w", err)
	}
	return slots, nil
}
