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

// BookSlot claims the slot and creates the appointment in one transaction.
// The conditional UPDATE is the only place is_booked flips to true, so two
// concurrent bookings of the same slot resolve to exactly one winner.
func (r *appointmentRepository) BookSlot(ctx context.Context, slotID, patientID uuid.UUID, symptoms string, feeCents int64) (*model.Appointment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	claim := `
		UPDATE doctor_availability_slots
		SET is_booked = TRUE, updated_at = $2
		WHERE id = $1 AND is_booked = FALSE
		RETURNING doctor_id, start_time
	`
	now := time.Now().UTC()

	var doctorID uuid.UUID
	var startTime time.Time
	err = tx.QueryRowContext(ctx, claim, slotID, now).Scan(&doctorID, &startTime)
	if err == sql.ErrNoRows {
		// Lost the race or the slot never existed; look once to tell apart.
		var booked bool
		checkErr := tx.QueryRowContext(ctx,
			`SELECT is_booked FROM doctor_availability_slots WHERE id = $1`, slotID,
		).Scan(&booked)
		if checkErr == sql.ErrNoRows {
			return nil, apperrors.NotFound("slot", checkErr)
		}
		if checkErr != nil {
			return nil, fmt.Errorf("failed to inspect slot: %w", checkErr)
		}
		return nil, apperrors.SlotUnavailable(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}

	appointment := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		DoctorID:    doctorID,
		PatientID:   patientID,
		SlotID:      slotID,
		ScheduledAt: startTime,
		Status:      model.AppointmentStatusAwaitingPayment,
		Symptoms:    symptoms,
		FeeCents:    feeCents,
	}

	insert := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, slot_id, scheduled_at,
			status, symptoms, notes, fee_cents, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9, $9)
	`
	if _, err := tx.ExecContext(ctx, insert,
		appointment.ID, appointment.DoctorID, appointment.PatientID, appointment.SlotID,
		appointment.ScheduledAt, appointment.Status, appointment.Symptoms, appointment.FeeCents, now,
	); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, model.EventAppointmentBooked, map[string]interface{}{
		"appointment_id": appointment.ID.String(),
		"doctor_id":      doctorID.String(),
		"patient_id":     patientID.String(),
		"scheduled_at":   startTime,
		"fee_cents":      feeCents,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}
	return appointment, nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, slot_id, scheduled_at, status,
		       symptoms, notes, fee_cents, payment_intent_id, video_call_url,
		       created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, slot_id, scheduled_at, status,
		       symptoms, notes, fee_cents, payment_intent_id, video_call_url,
		       created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.DoctorID != uuid.Nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, filters.DoctorID)
			argCount++
		}
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.From.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at >= $%d", argCount)
			args = append(args, filters.From)
			argCount++
		}
		if !filters.To.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at < $%d", argCount)
			args = append(args, filters.To)
			argCount++
		}
	}

	query += " ORDER BY scheduled_at ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (int64, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func (r *appointmentRepository) CancelAndRelease(ctx context.Context, id uuid.UUID, from model.AppointmentStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	cancel := `
		UPDATE appointments
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING slot_id
	`
	var slotID uuid.UUID
	err = tx.QueryRowContext(ctx, cancel, id, from, model.AppointmentStatusCancelled, now).Scan(&slotID)
	if err == sql.ErrNoRows {
		return apperrors.InvalidTransition(string(from), string(model.AppointmentStatusCancelled))
	}
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}

	release := `
		UPDATE doctor_availability_slots
		SET is_booked = FALSE, updated_at = $2
		WHERE id = $1 AND is_booked = TRUE
	`
	if _, err := tx.ExecContext(ctx, release, slotID, now); err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, model.EventAppointmentCancelled, map[string]interface{}{
		"appointment_id": id.String(),
		"slot_id":        slotID.String(),
		"from_status":    string(from),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return nil
}

// CompleteConsultation couples the complete transition with prescription
// issuance. Both are keyed on the appointment id, so a retry after a failed
// commit observes the guarded update and becomes a no-op.
func (r *appointmentRepository) CompleteConsultation(ctx context.Context, id uuid.UUID, symptoms, notes string, items []model.PrescriptionItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	complete := `
		UPDATE appointments
		SET status = $2, symptoms = $3, notes = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`
	res, err := tx.ExecContext(ctx, complete,
		id, model.AppointmentStatusComplete, symptoms, notes, now, model.AppointmentStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to complete appointment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.InvalidTransition(string(model.AppointmentStatusInProgress), string(model.AppointmentStatusComplete))
	}

	// The guarded status update above admits exactly one completion, so the
	// unique appointment_id constraint can never conflict here. Any violation
	// is a real bug and should fail the transaction.
	prescriptionID := uuid.New()
	prescription := `
		INSERT INTO prescriptions (id, appointment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
	`
	if _, err := tx.ExecContext(ctx, prescription, prescriptionID, id, now); err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}

	item := `
		INSERT INTO prescription_items (id, prescription_id, drug_id, qty, dosage, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, item, uuid.New(), prescriptionID, it.DrugID, it.Qty, it.Dosage, it.PriceCents); err != nil {
			return fmt.Errorf("failed to insert prescription item: %w", err)
		}
	}

	if err := insertOutboxTx(ctx, tx, model.EventAppointmentCompleted, map[string]interface{}{
		"appointment_id":  id.String(),
		"prescription_id": prescriptionID.String(),
		"item_count":      len(items),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit consultation: %w", err)
	}
	return nil
}
