package model

import (
	"github.com/google/uuid"
)

type Prescription struct {
	Base
	AppointmentID uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	Items         []PrescriptionItem `db:"-" json:"items,omitempty"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	DrugID         uuid.UUID `db:"drug_id" json:"drug_id"`
	Qty            int       `db:"qty" json:"qty"`
	Dosage         string    `db:"dosage" json:"dosage"`
	PriceCents     int64     `db:"price_cents" json:"price_cents"`
}

type PrescriptionItemRequest struct {
	DrugID     uuid.UUID `json:"drug_id" binding:"required"`
	Qty        int       `json:"qty" binding:"required,min=1"`
	Dosage     string    `json:"dosage" binding:"max=500"`
	PriceCents int64     `json:"price_cents" binding:"min=0"`
}
