package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

// ConfirmCheckout appends the ledger row and advances the appointment to
// paid in one transaction. The ledger insert goes first: its unique
// constraint on payment_intent_id is the dedup key, so a redelivered event
// short-circuits before touching the appointment.
func (r *paymentRepository) ConfirmCheckout(ctx context.Context, appointmentID uuid.UUID, paymentIntentID string, amountCents int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	ledger := `
		INSERT INTO payments (id, related_table, related_id, amount_cents, payment_intent_id, status, paid_at, created_at)
		VALUES ($1, 'appointments', $2, $3, $4, $5, $6, $6)
		ON CONFLICT (payment_intent_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, ledger, uuid.New(), appointmentID, amountCents, paymentIntentID, model.PaymentStatusSucceeded, now)
	if err != nil {
		return false, fmt.Errorf("failed to append payment ledger: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Already reconciled; redelivery is a no-op.
		return true, tx.Commit()
	}

	mark := `
		UPDATE appointments
		SET status = $2, payment_intent_id = $3, updated_at = $4
		WHERE id = $1 AND status = ANY($5)
	`
	payable := make(pq.StringArray, 0, 2)
	for _, s := range model.PayableStatuses() {
		payable = append(payable, string(s))
	}
	res, err = tx.ExecContext(ctx, mark, appointmentID, model.AppointmentStatusPaid, paymentIntentID, now, payable)
	if err != nil {
		return false, fmt.Errorf("failed to mark appointment paid: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var status string
		checkErr := tx.QueryRowContext(ctx, `SELECT status FROM appointments WHERE id = $1`, appointmentID).Scan(&status)
		if checkErr == sql.ErrNoRows {
			return false, apperrors.NotFound("appointment", checkErr)
		}
		if checkErr != nil {
			return false, fmt.Errorf("failed to inspect appointment: %w", checkErr)
		}
		if status == string(model.AppointmentStatusPaid) {
			// Paid through a different intent; the deferred rollback discards
			// the ledger row staged above so only the winning payment keeps a
			// record.
			return true, nil
		}
		return false, apperrors.InvalidTransition(status, string(model.AppointmentStatusPaid))
	}

	if err := insertOutboxTx(ctx, tx, model.EventAppointmentPaid, map[string]interface{}{
		"appointment_id":    appointmentID.String(),
		"payment_intent_id": paymentIntentID,
		"amount_cents":      amountCents,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit payment confirmation: %w", err)
	}
	return false, nil
}

func (r *paymentRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.Payment, error) {
	query := `
		SELECT id, related_table, related_id, amount_cents, payment_intent_id, status, paid_at, created_at
		FROM payments
		WHERE related_table = 'appointments' AND related_id = $1
		ORDER BY paid_at ASC
	`
	var payments []*model.Payment
	if err := r.db.SelectContext(ctx, &payments, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
