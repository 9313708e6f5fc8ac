package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

type Service struct {
	repo repository.AppointmentRepository
}

func NewService(repo repository.AppointmentRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor *model.TokenClaims) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(appointment, actor); err != nil {
		return nil, err
	}
	return appointment, nil
}

// ListAppointments scopes the result to the actor: doctors see their own
// schedule, patients their own bookings.
func (s *Service) ListAppointments(ctx context.Context, actor *model.TokenClaims, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("", nil)
	}
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	switch actor.Role {
	case model.RoleDoctor:
		filters.DoctorID = actor.UserID
	case model.RolePatient:
		filters.PatientID = actor.UserID
	default:
		return nil, apperrors.Forbidden("", nil)
	}

	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// UpdateStatus applies a client-requested transition. paid and refunded are
// never reachable from here: those transitions belong exclusively to the
// payment processor path, no matter what the caller sends.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, actor *model.TokenClaims) (*model.Appointment, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("", nil)
	}
	switch to {
	case model.AppointmentStatusPaid, model.AppointmentStatusRefunded:
		return nil, apperrors.Forbidden("payment statuses are set by the payment processor", nil)
	}

	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if to == model.AppointmentStatusCancelled {
		if err := requireParticipant(appointment, actor); err != nil {
			return nil, err
		}
		if appointment.Status.IsTerminal() {
			return nil, apperrors.InvalidTransition(string(appointment.Status), string(to))
		}
		if err := s.repo.CancelAndRelease(ctx, id, appointment.Status); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, id)
	}

	// Every non-cancel transition is a doctor action on their own schedule.
	if actor.Role != model.RoleDoctor || actor.UserID != appointment.DoctorID {
		return nil, apperrors.Forbidden("", nil)
	}
	if !appointment.Status.CanTransition(to) {
		return nil, apperrors.InvalidTransition(string(appointment.Status), string(to))
	}

	rows, err := s.repo.UpdateStatusGuarded(ctx, id, appointment.Status, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if rows == 0 {
		// Status moved underneath us; report against the fresh value.
		fresh, freshErr := s.repo.Get(ctx, id)
		if freshErr != nil {
			return nil, freshErr
		}
		return nil, apperrors.InvalidTransition(string(fresh.Status), string(to))
	}

	return s.repo.Get(ctx, id)
}

// SaveConsultation stores the doctor's notes, issues the prescription and
// completes the appointment as one unit. Safe to retry: a second call finds
// the appointment already complete and fails the guarded update.
func (s *Service) SaveConsultation(ctx context.Context, id uuid.UUID, req *model.SaveConsultationRequest, actor *model.TokenClaims) error {
	if actor == nil {
		return apperrors.Unauthorized("", nil)
	}

	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != model.RoleDoctor || actor.UserID != appointment.DoctorID {
		return apperrors.Forbidden("", nil)
	}

	items := make([]model.PrescriptionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.PrescriptionItem{
			DrugID:     it.DrugID,
			Qty:        it.Qty,
			Dosage:     it.Dosage,
			PriceCents: it.PriceCents,
		})
	}

	return s.repo.CompleteConsultation(ctx, id, req.Symptoms, req.Notes, items)
}

func requireParticipant(appointment *model.Appointment, actor *model.TokenClaims) error {
	if actor == nil {
		return apperrors.Unauthorized("", nil)
	}
	if actor.UserID == appointment.DoctorID || actor.UserID == appointment.PatientID {
		return nil
	}
	return apperrors.Forbidden("", nil)
}
