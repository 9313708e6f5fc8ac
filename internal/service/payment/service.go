package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/logger"
	"github.com/carebook/booking-api/pkg/metrics"
)

// EventCheckoutCompleted is the provider event type that confirms payment.
const EventCheckoutCompleted = "checkout.session.completed"

// Provider abstracts the hosted-checkout payment provider. ConstructEvent
// must return a Signature error for any payload that fails authenticity
// verification.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, appointmentID uuid.UUID, amountCents int64, successURL, cancelURL string) (string, error)
	ConstructEvent(payload []byte, sigHeader string) (*ProviderEvent, error)
}

// ProviderEvent is the provider-neutral view of a webhook delivery.
type ProviderEvent struct {
	Type            string
	AppointmentID   string
	PaymentIntentID string
	AmountCents     int64
}

// WebhookResult reports what a delivery did.
type WebhookResult struct {
	Handled   bool `json:"handled"`
	Duplicate bool `json:"duplicate"`
}

type Service struct {
	provider    Provider
	paymentRepo repository.PaymentRepository
	apptRepo    repository.AppointmentRepository
	log         *logger.Logger
	metrics     *metrics.Metrics
}

func NewService(provider Provider, paymentRepo repository.PaymentRepository, apptRepo repository.AppointmentRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		provider:    provider,
		paymentRepo: paymentRepo,
		apptRepo:    apptRepo,
		log:         log,
		metrics:     m,
	}
}

// CreateCheckout opens a hosted checkout session for the appointment fee.
// The appointment id rides along as opaque metadata and comes back on the
// completion webhook.
func (s *Service) CreateCheckout(ctx context.Context, req *model.CreateCheckoutRequest, actor *model.TokenClaims) (*model.CheckoutSession, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("", nil)
	}

	appointment, err := s.apptRepo.Get(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != appointment.PatientID {
		return nil, apperrors.Forbidden("", nil)
	}
	switch appointment.Status {
	case model.AppointmentStatusRequested, model.AppointmentStatusAwaitingPayment:
	default:
		return nil, apperrors.InvalidTransition(string(appointment.Status), string(model.AppointmentStatusPaid))
	}

	url, err := s.provider.CreateCheckoutSession(ctx, appointment.ID, appointment.FeeCents, req.SuccessURL, req.CancelURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &model.CheckoutSession{SessionURL: url}, nil
}

// HandleWebhook verifies and reconciles a provider delivery. Redeliveries of
// an already-reconciled payment intent are acknowledged without effect.
// Unknown event types are logged and acknowledged so the provider stops
// retrying them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*WebhookResult, error) {
	event, err := s.provider.ConstructEvent(payload, sigHeader)
	if err != nil {
		s.countWebhook("signature_failed")
		return nil, err
	}

	if event.Type != EventCheckoutCompleted {
		s.log.Debug("ignoring webhook event", "type", event.Type)
		s.countWebhook("ignored")
		return &WebhookResult{Handled: false}, nil
	}

	appointmentID, err := uuid.Parse(event.AppointmentID)
	if err != nil {
		s.log.Error(err, "webhook event carries no usable appointment id", "payment_intent_id", event.PaymentIntentID)
		return nil, apperrors.Validation("missing or malformed appointment id in event metadata", err)
	}
	if event.PaymentIntentID == "" {
		return nil, apperrors.Validation("missing payment intent id in event", nil)
	}

	duplicate, err := s.paymentRepo.ConfirmCheckout(ctx, appointmentID, event.PaymentIntentID, event.AmountCents)
	if err != nil {
		s.countWebhook("failed")
		return nil, err
	}

	if duplicate {
		s.log.Info("duplicate webhook delivery",
			"appointment_id", appointmentID.String(),
			"payment_intent_id", event.PaymentIntentID)
		s.countWebhook("duplicate")
	} else {
		s.log.Info("payment reconciled",
			"appointment_id", appointmentID.String(),
			"payment_intent_id", event.PaymentIntentID,
			"amount_cents", event.AmountCents)
		s.countWebhook("processed")
	}

	return &WebhookResult{Handled: true, Duplicate: duplicate}, nil
}

func (s *Service) ListPayments(ctx context.Context, appointmentID uuid.UUID) ([]*model.Payment, error) {
	return s.paymentRepo.ListByAppointment(ctx, appointmentID)
}

func (s *Service) countWebhook(result string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(result).Inc()
	}
}
