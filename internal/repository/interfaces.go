package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	DoctorRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error)
		GetSkillCard(ctx context.Context, doctorID uuid.UUID) (*model.SkillCard, error)
		UpsertSkillCard(ctx context.Context, card *model.SkillCard) error
		ListSkillCards(ctx context.Context) ([]*model.SkillCard, error)
	}

	AvailabilityRepository interface {
		CreateRules(ctx context.Context, rules []*model.AvailabilityRule) error
		ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error)
		// InsertSlots bulk-inserts generated slots in a single transaction,
		// skipping rows whose (doctor_id, start_time) already exist. Existing
		// rows are authoritative; is_booked is never touched.
		InsertSlots(ctx context.Context, doctorID uuid.UUID, slots []*model.AvailabilitySlot) (int64, error)
		GetSlot(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error)
		ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.FreeSlot, error)
	}

	AppointmentRepository interface {
		// BookSlot atomically claims a free slot and creates the appointment
		// in one transaction. Exactly one concurrent caller wins; losers get
		// a SlotUnavailable error.
		BookSlot(ctx context.Context, slotID, patientID uuid.UUID, symptoms string, feeCents int64) (*model.Appointment, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// UpdateStatusGuarded performs a compare-and-set status update,
		// returning the number of rows changed.
		UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (int64, error)
		// CancelAndRelease cancels the appointment and frees its slot in one
		// transaction. The slot release never happens outside this path.
		CancelAndRelease(ctx context.Context, id uuid.UUID, from model.AppointmentStatus) error
		// CompleteConsultation saves symptoms/notes, issues the prescription
		// and moves in_progress to complete as a single unit.
		CompleteConsultation(ctx context.Context, id uuid.UUID, symptoms, notes string, items []model.PrescriptionItem) error
	}

	PaymentRepository interface {
		// ConfirmCheckout reconciles a verified checkout completion: appends
		// the ledger row and advances the appointment to paid. Returns
		// duplicate=true when the payment intent was already reconciled.
		ConfirmCheckout(ctx context.Context, appointmentID uuid.UUID, paymentIntentID string, amountCents int64) (duplicate bool, err error)
		ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.Payment, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
