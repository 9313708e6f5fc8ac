package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/metrics"
)

// ConsultationFeeCents is the flat fee charged for every consultation.
const ConsultationFeeCents int64 = 2000

type Service struct {
	apptRepo  repository.AppointmentRepository
	availRepo repository.AvailabilityRepository
	metrics   *metrics.Metrics
}

func NewService(apptRepo repository.AppointmentRepository, availRepo repository.AvailabilityRepository, m *metrics.Metrics) *Service {
	return &Service{
		apptRepo:  apptRepo,
		availRepo: availRepo,
		metrics:   m,
	}
}

// BookSlot claims a free slot for the patient and creates the appointment.
// When two requests race for the same slot exactly one wins; the loser gets
// a SlotUnavailable error and should re-fetch the free slot list.
func (s *Service) BookSlot(ctx context.Context, slotID, patientID uuid.UUID, symptoms string) (*model.BookingResult, error) {
	if patientID == uuid.Nil {
		return nil, apperrors.Unauthorized("patient identity required", nil)
	}

	slot, err := s.availRepo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.StartTime.After(time.Now().UTC()) {
		s.countBooking("rejected")
		return nil, apperrors.Validation("cannot book a slot in the past", nil)
	}
	if slot.IsBooked {
		s.countBooking("lost")
		return nil, apperrors.SlotUnavailable(nil)
	}

	appointment, err := s.apptRepo.BookSlot(ctx, slotID, patientID, symptoms, ConsultationFeeCents)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSlotUnavailable) {
			s.countBooking("lost")
			return nil, err
		}
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to book slot: %w", err)
	}

	s.countBooking("won")
	return &model.BookingResult{
		AppointmentID: appointment.ID,
		FeeCents:      appointment.FeeCents,
	}, nil
}

func (s *Service) countBooking(result string) {
	if s.metrics != nil {
		s.metrics.BookingAttempts.WithLabelValues(result).Inc()
	}
}
