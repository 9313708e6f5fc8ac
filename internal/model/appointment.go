package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusRequested       AppointmentStatus = "requested"
	AppointmentStatusAwaitingPayment AppointmentStatus = "awaiting_payment"
	AppointmentStatusPaid            AppointmentStatus = "paid"
	AppointmentStatusInProgress      AppointmentStatus = "in_progress"
	AppointmentStatusComplete        AppointmentStatus = "complete"
	AppointmentStatusCancelled       AppointmentStatus = "cancelled"
	AppointmentStatusRefunded        AppointmentStatus = "refunded"
)

// validTransitions is the forward transition table. Transitions to paid are
// deliberately absent: only the payment webhook path may set paid, through a
// repository update that is not reachable from the status endpoint.
var validTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusRequested:       {AppointmentStatusAwaitingPayment, AppointmentStatusCancelled},
	AppointmentStatusAwaitingPayment: {AppointmentStatusCancelled},
	AppointmentStatusPaid:            {AppointmentStatusInProgress, AppointmentStatusCancelled, AppointmentStatusRefunded},
	AppointmentStatusInProgress:      {AppointmentStatusComplete, AppointmentStatusCancelled},
	AppointmentStatusComplete:        {AppointmentStatusRefunded},
}

// CanTransition reports whether from -> to is a legal client-requested
// transition.
func (from AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions other
// than the administrative refund path.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusComplete, AppointmentStatusCancelled, AppointmentStatusRefunded:
		return true
	}
	return false
}

// PayableStatuses are the states a webhook confirmation may advance to paid.
func PayableStatuses() []AppointmentStatus {
	return []AppointmentStatus{AppointmentStatusRequested, AppointmentStatusAwaitingPayment}
}

type Appointment struct {
	Base
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	SlotID          uuid.UUID         `db:"slot_id" json:"slot_id"`
	ScheduledAt     time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Symptoms        string            `db:"symptoms" json:"symptoms,omitempty"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	FeeCents        int64             `db:"fee_cents" json:"fee_cents"`
	PaymentIntentID *string           `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	VideoCallURL    *string           `db:"video_call_url" json:"video_call_url,omitempty"`
}

type BookSlotRequest struct {
	SlotID   uuid.UUID `json:"slot_id" binding:"required"`
	Symptoms string    `json:"symptoms" binding:"max=2000"`
}

// BookingResult is returned to the client so it can start checkout.
type BookingResult struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	FeeCents      int64     `json:"fee_cents"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required"`
}

type SaveConsultationRequest struct {
	Symptoms string                    `json:"symptoms" binding:"max=2000"`
	Notes    string                    `json:"notes" binding:"max=4000"`
	Items    []PrescriptionItemRequest `json:"items" binding:"dive"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	From      time.Time
	To        time.Time
}
