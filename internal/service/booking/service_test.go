package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

type fakeAvailRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*model.AvailabilitySlot
}

func (f *fakeAvailRepo) CreateRules(ctx context.Context, rules []*model.AvailabilityRule) error {
	return nil
}

func (f *fakeAvailRepo) ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	return nil, nil
}

func (f *fakeAvailRepo) InsertSlots(ctx context.Context, doctorID uuid.UUID, slots []*model.AvailabilitySlot) (int64, error) {
	return 0, nil
}

func (f *fakeAvailRepo) GetSlot(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok {
		return nil, apperrors.NotFound("slot", nil)
	}
	copied := *slot
	return &copied, nil
}

func (f *fakeAvailRepo) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.FreeSlot, error) {
	return nil, nil
}

// fakeApptRepo mimics the conditional-update claim: the mutex plays the role
// of the row lock, so exactly one concurrent BookSlot call flips is_booked.
type fakeApptRepo struct {
	mu    sync.Mutex
	avail *fakeAvailRepo
	appts map[uuid.UUID]*model.Appointment
}

func (f *fakeApptRepo) BookSlot(ctx context.Context, slotID, patientID uuid.UUID, symptoms string, feeCents int64) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.avail.mu.Lock()
	slot, ok := f.avail.slots[slotID]
	if !ok {
		f.avail.mu.Unlock()
		return nil, apperrors.NotFound("slot", nil)
	}
	if slot.IsBooked {
		f.avail.mu.Unlock()
		return nil, apperrors.SlotUnavailable(nil)
	}
	slot.IsBooked = true
	f.avail.mu.Unlock()

	appt := &model.Appointment{
		Base:        model.Base{ID: uuid.New()},
		DoctorID:    slot.DoctorID,
		PatientID:   patientID,
		SlotID:      slotID,
		ScheduledAt: slot.StartTime,
		Status:      model.AppointmentStatusAwaitingPayment,
		Symptoms:    symptoms,
		FeeCents:    feeCents,
	}
	f.appts[appt.ID] = appt
	return appt, nil
}

func (f *fakeApptRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return appt, nil
}

func (f *fakeApptRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (int64, error) {
	return 0, nil
}

func (f *fakeApptRepo) CancelAndRelease(ctx context.Context, id uuid.UUID, from model.AppointmentStatus) error {
	return nil
}

func (f *fakeApptRepo) CompleteConsultation(ctx context.Context, id uuid.UUID, symptoms, notes string, items []model.PrescriptionItem) error {
	return nil
}

func newBookingFixture(start time.Time) (*Service, *fakeAvailRepo, *fakeApptRepo, uuid.UUID) {
	slotID := uuid.New()
	avail := &fakeAvailRepo{slots: map[uuid.UUID]*model.AvailabilitySlot{
		slotID: {
			Base:      model.Base{ID: slotID},
			DoctorID:  uuid.New(),
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
		},
	}}
	appts := &fakeApptRepo{avail: avail, appts: make(map[uuid.UUID]*model.Appointment)}
	return NewService(appts, avail, nil), avail, appts, slotID
}

func TestBookSlot(t *testing.T) {
	future := time.Now().UTC().Add(48 * time.Hour)

	t.Run("books a free future slot", func(t *testing.T) {
		svc, avail, appts, slotID := newBookingFixture(future)
		patientID := uuid.New()

		result, err := svc.BookSlot(context.Background(), slotID, patientID, "headache")
		require.NoError(t, err)
		assert.Equal(t, ConsultationFeeCents, result.FeeCents)

		assert.True(t, avail.slots[slotID].IsBooked)
		appt := appts.appts[result.AppointmentID]
		require.NotNil(t, appt)
		assert.Equal(t, model.AppointmentStatusAwaitingPayment, appt.Status)
		assert.Equal(t, patientID, appt.PatientID)
		assert.Equal(t, "headache", appt.Symptoms)
	})

	t.Run("rejects past slots", func(t *testing.T) {
		svc, _, _, slotID := newBookingFixture(time.Now().UTC().Add(-time.Hour))

		_, err := svc.BookSlot(context.Background(), slotID, uuid.New(), "")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("rejects already booked slots", func(t *testing.T) {
		svc, avail, _, slotID := newBookingFixture(future)
		avail.slots[slotID].IsBooked = true

		_, err := svc.BookSlot(context.Background(), slotID, uuid.New(), "")
		assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable))
	})

	t.Run("unknown slot", func(t *testing.T) {
		svc, _, _, _ := newBookingFixture(future)

		_, err := svc.BookSlot(context.Background(), uuid.New(), uuid.New(), "")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("missing patient identity", func(t *testing.T) {
		svc, _, _, slotID := newBookingFixture(future)

		_, err := svc.BookSlot(context.Background(), slotID, uuid.Nil, "")
		assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("exactly one concurrent booking wins", func(t *testing.T) {
		svc, _, appts, slotID := newBookingFixture(future)

		const attempts = 16
		var wg sync.WaitGroup
		errs := make([]error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.BookSlot(context.Background(), slotID, uuid.New(), "")
			}(i)
		}
		wg.Wait()

		var won, lost int
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			case apperrors.Is(err, apperrors.ErrSlotUnavailable):
				lost++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, attempts-1, lost)
		assert.Len(t, appts.appts, 1)
	})
}
