package model

import (
	"github.com/google/uuid"
)

type Doctor struct {
	Base
	Name        string  `db:"name" json:"name"`
	Specialty   string  `db:"specialty" json:"specialty"`
	Bio         string  `db:"bio" json:"bio,omitempty"`
	ImageURL    *string `db:"image_url" json:"image_url,omitempty"`
	FeeCents    int64   `db:"fee_cents" json:"fee_cents"`
	RatingAvg   float64 `db:"rating_avg" json:"rating_avg"`
	RatingCount int     `db:"rating_count" json:"rating_count"`
	Available   bool    `db:"available" json:"available"`
}

// SkillCard is the browsable card a doctor advertises on the marketplace.
// A doctor holds at most one card.
type SkillCard struct {
	Base
	DoctorID uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Title    string    `db:"title" json:"title"`
	Emoji    string    `db:"emoji" json:"emoji"`
}

type UpsertSkillCardRequest struct {
	Title string `json:"title" binding:"required,max=120"`
	Emoji string `json:"emoji" binding:"required,max=8"`
}

type DoctorFilters struct {
	Specialty string
	Available *bool
}
