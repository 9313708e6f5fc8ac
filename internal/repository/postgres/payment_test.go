package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

func TestConfirmCheckout(t *testing.T) {
	apptID := uuid.New()

	t.Run("first delivery appends ledger and marks paid", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE appointments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO outbox_events").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		duplicate, err := repo.ConfirmCheckout(context.Background(), apptID, "pi_123", 2000)
		require.NoError(t, err)
		assert.False(t, duplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redelivered intent short-circuits on the ledger", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payments").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		duplicate, err := repo.ConfirmCheckout(context.Background(), apptID, "pi_123", 2000)
		require.NoError(t, err)
		assert.True(t, duplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second intent for a paid appointment rolls back its ledger row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE appointments").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM appointments").
			WithArgs(apptID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(model.AppointmentStatusPaid)))
		mock.ExpectRollback()

		duplicate, err := repo.ConfirmCheckout(context.Background(), apptID, "pi_456", 2000)
		require.NoError(t, err)
		assert.True(t, duplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled appointment rejects the payment", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE appointments").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM appointments").
			WithArgs(apptID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(model.AppointmentStatusCancelled)))
		mock.ExpectRollback()

		_, err := repo.ConfirmCheckout(context.Background(), apptID, "pi_789", 2000)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown appointment after valid ledger insert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE appointments").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM appointments").
			WithArgs(apptID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		_, err := repo.ConfirmCheckout(context.Background(), apptID, "pi_000", 2000)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
