package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
)

// Payment is one row of the append-only ledger. PaymentIntentID carries a
// unique constraint; it is the dedup key for webhook redelivery.
type Payment struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	RelatedTable    string        `db:"related_table" json:"related_table"`
	RelatedID       uuid.UUID     `db:"related_id" json:"related_id"`
	AmountCents     int64         `db:"amount_cents" json:"amount_cents"`
	PaymentIntentID string        `db:"payment_intent_id" json:"payment_intent_id"`
	Status          PaymentStatus `db:"status" json:"status"`
	PaidAt          time.Time     `db:"paid_at" json:"paid_at"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

type CreateCheckoutRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" binding:"required"`
	SuccessURL    string    `json:"success_url" binding:"required,url"`
	CancelURL     string    `json:"cancel_url" binding:"required,url"`
}

type CheckoutSession struct {
	SessionURL string `json:"session_url"`
}
