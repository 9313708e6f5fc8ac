package model

import (
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of a bookable slot. Rule windows are
// tiled with slots of this length; a trailing remainder shorter than one
// slot is dropped.
const SlotDuration = 30 * time.Minute

// Horizon bounds for slot generation, in months.
const (
	MinHorizonMonths = 1
	MaxHorizonMonths = 6
)

// AvailabilityRule is a weekly recurring availability window for a doctor.
// Weekday follows ISO-8601: 1 = Monday .. 7 = Sunday. StartTime and EndTime
// are times of day in the rule's timezone, formatted "15:04".
type AvailabilityRule struct {
	Base
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Weekday   int       `db:"weekday" json:"weekday"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Timezone  string    `db:"timezone" json:"timezone"`
}

// AvailabilitySlot is a single bookable interval. Start and end are absolute
// UTC instants. IsBooked only ever flips false to true through the booking
// coordinator; a release cancels the owning appointment in the same
// transaction.
type AvailabilitySlot struct {
	Base
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	IsBooked  bool      `db:"is_booked" json:"is_booked"`
}

type CreateRuleRequest struct {
	Weekday   int    `json:"weekday" binding:"required,min=1,max=7"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Timezone  string `json:"timezone" binding:"required"`
}

type CreateRulesRequest struct {
	Rules []CreateRuleRequest `json:"rules" binding:"required,min=1,dive"`
}

type GenerateSlotsRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	Months    int    `json:"months" binding:"required"`
}

// FreeSlot is the read-model returned to booking screens.
type FreeSlot struct {
	SlotID    uuid.UUID `db:"id" json:"slot_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
}
