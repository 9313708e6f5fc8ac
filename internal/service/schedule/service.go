package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/metrics"
)

const dateLayout = "2006-01-02"

type Service struct {
	availRepo  repository.AvailabilityRepository
	doctorRepo repository.DoctorRepository
	metrics    *metrics.Metrics
}

func NewService(availRepo repository.AvailabilityRepository, doctorRepo repository.DoctorRepository, m *metrics.Metrics) *Service {
	return &Service{
		availRepo:  availRepo,
		doctorRepo: doctorRepo,
		metrics:    m,
	}
}

func (s *Service) CreateRules(ctx context.Context, doctorID uuid.UUID, reqs []model.CreateRuleRequest) ([]*model.AvailabilityRule, error) {
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	rules := make([]*model.AvailabilityRule, 0, len(reqs))
	for _, req := range reqs {
		start, err := parseTimeOfDay(req.StartTime)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid start_time %q", req.StartTime), err)
		}
		end, err := parseTimeOfDay(req.EndTime)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid end_time %q", req.EndTime), err)
		}
		if !start.before(end) {
			return nil, apperrors.Validation("start_time must be before end_time", nil)
		}
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid timezone %q", req.Timezone), err)
		}

		rules = append(rules, &model.AvailabilityRule{
			DoctorID:  doctorID,
			Weekday:   req.Weekday,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Timezone:  req.Timezone,
		})
	}

	if err := s.availRepo.CreateRules(ctx, rules); err != nil {
		return nil, fmt.Errorf("failed to create rules: %w", err)
	}
	return rules, nil
}

// GenerateSlots expands the doctor's weekly rules into concrete slots over
// [startDate, startDate + months). Re-running over an overlapping range is
// safe: the natural key on (doctor_id, start_time) skips existing rows. A
// doctor with no rules yields zero slots, which is not an error.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, startDate string, months int) (int64, error) {
	if months < model.MinHorizonMonths || months > model.MaxHorizonMonths {
		return 0, apperrors.Validation(
			fmt.Sprintf("months must be between %d and %d", model.MinHorizonMonths, model.MaxHorizonMonths), nil)
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return 0, apperrors.Validation(fmt.Sprintf("invalid start_date %q", startDate), err)
	}

	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return 0, err
	}

	rules, err := s.availRepo.ListRules(ctx, doctorID)
	if err != nil {
		return 0, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	slots, err := expandRules(rules, start, months)
	if err != nil {
		return 0, err
	}

	inserted, err := s.availRepo.InsertSlots(ctx, doctorID, slots)
	if err != nil {
		return 0, fmt.Errorf("failed to insert slots: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SlotsGenerated.Add(float64(inserted))
	}
	return inserted, nil
}

func (s *Service) GetFreeSlots(ctx context.Context, doctorID uuid.UUID, day string) ([]*model.FreeSlot, error) {
	dayStart, err := time.Parse(dateLayout, day)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("invalid day %q", day), err)
	}

	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	from := dayStart.UTC()
	to := from.AddDate(0, 0, 1)
	slots, err := s.availRepo.ListFreeSlots(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list free slots: %w", err)
	}
	return slots, nil
}

// expandRules tiles each rule window with fixed-length slots in the rule's
// timezone and converts the instants to UTC. Overlapping rules are resolved
// here by dedup on start time.
func expandRules(rules []*model.AvailabilityRule, start time.Time, months int) ([]*model.AvailabilitySlot, error) {
	horizonEnd := start.AddDate(0, months, 0)
	seen := make(map[time.Time]struct{})
	var slots []*model.AvailabilitySlot

	for _, rule := range rules {
		loc, err := time.LoadLocation(rule.Timezone)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("rule %s has invalid timezone %q", rule.ID, rule.Timezone), err)
		}
		windowStart, err := parseTimeOfDay(rule.StartTime)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("rule %s has invalid start_time", rule.ID), err)
		}
		windowEnd, err := parseTimeOfDay(rule.EndTime)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("rule %s has invalid end_time", rule.ID), err)
		}

		for d := start; d.Before(horizonEnd); d = d.AddDate(0, 0, 1) {
			if isoWeekday(d) != rule.Weekday {
				continue
			}

			open := time.Date(d.Year(), d.Month(), d.Day(), windowStart.hour, windowStart.minute, 0, 0, loc)
			close := time.Date(d.Year(), d.Month(), d.Day(), windowEnd.hour, windowEnd.minute, 0, 0, loc)

			for t := open; !t.Add(model.SlotDuration).After(close); t = t.Add(model.SlotDuration) {
				key := t.UTC()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				slots = append(slots, &model.AvailabilitySlot{
					DoctorID:  rule.DoctorID,
					StartTime: key,
					EndTime:   t.Add(model.SlotDuration).UTC(),
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots, nil
}

// isoWeekday maps Go's Sunday-based weekday to ISO-8601 (1=Monday..7=Sunday).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

type timeOfDay struct {
	hour   int
	minute int
}

func (t timeOfDay) before(other timeOfDay) bool {
	return t.hour < other.hour || (t.hour == other.hour && t.minute < other.minute)
}

func parseTimeOfDay(s string) (timeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return timeOfDay{hour: parsed.Hour(), minute: parsed.Minute()}, nil
		}
	}
	return timeOfDay{}, fmt.Errorf("time of day %q is not in HH:MM format", s)
}
