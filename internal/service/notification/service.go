package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	"github.com/carebook/booking-api/pkg/logger"
	"github.com/carebook/booking-api/pkg/messaging"
)

// Sender delivers a single email. Satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Service listens on the broker for appointment lifecycle events and emails
// the participants. Delivery is best effort: a failed email is logged and
// dropped, never retried against the outbox.
type Service struct {
	sender   Sender
	from     string
	apptRepo repository.AppointmentRepository
	userRepo repository.UserRepository
	log      *logger.Logger
}

func NewService(cfg SMTPConfig, apptRepo repository.AppointmentRepository, userRepo repository.UserRepository, log *logger.Logger) *Service {
	return &Service{
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		apptRepo: apptRepo,
		userRepo: userRepo,
		log:      log,
	}
}

// NewServiceWithSender is used by tests to inject a fake sender.
func NewServiceWithSender(sender Sender, from string, apptRepo repository.AppointmentRepository, userRepo repository.UserRepository, log *logger.Logger) *Service {
	return &Service{
		sender:   sender,
		from:     from,
		apptRepo: apptRepo,
		userRepo: userRepo,
		log:      log,
	}
}

// Run consumes broker messages until the context is cancelled.
func (s *Service) Run(ctx context.Context, broker messaging.Broker, channels ...string) error {
	for _, channel := range channels {
		msgs, err := broker.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		go s.consume(ctx, channel, msgs)
	}
	<-ctx.Done()
	return nil
}

func (s *Service) consume(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			if err := s.HandleEvent(ctx, raw); err != nil {
				s.log.Error(err, "failed to handle event", "channel", channel)
			}
		}
	}
}

type eventPayload struct {
	AppointmentID string `json:"appointment_id"`
}

// HandleEvent dispatches one broker message to the matching email template.
func (s *Service) HandleEvent(ctx context.Context, raw []byte) error {
	var msg messaging.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	switch msg.Type {
	case model.EventAppointmentBooked, model.EventAppointmentPaid, model.EventAppointmentCancelled:
	default:
		return nil
	}

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	var payload eventPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	appointmentID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("event payload has no appointment id: %w", err)
	}

	appointment, err := s.apptRepo.Get(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to load appointment: %w", err)
	}
	patient, err := s.userRepo.Get(ctx, appointment.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}

	subject, body := s.render(msg.Type, appointment, patient)
	return s.send(patient.Email, subject, body)
}

func (s *Service) render(eventType string, appointment *model.Appointment, patient *model.User) (subject, body string) {
	when := appointment.ScheduledAt.Format("Mon, 2 Jan 2006 at 15:04 MST")
	switch eventType {
	case model.EventAppointmentBooked:
		subject = "Your appointment is reserved"
		body = fmt.Sprintf("Hi %s,\n\nYour consultation on %s is reserved. Complete payment to confirm it.\n", patient.Name, when)
	case model.EventAppointmentPaid:
		subject = "Your appointment is confirmed"
		body = fmt.Sprintf("Hi %s,\n\nPayment received. Your consultation on %s is confirmed.\n", patient.Name, when)
	case model.EventAppointmentCancelled:
		subject = "Your appointment was cancelled"
		body = fmt.Sprintf("Hi %s,\n\nYour consultation on %s has been cancelled. The slot has been released.\n", patient.Name, when)
	}
	return subject, body
}

func (s *Service) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.log.Debug("notification sent", "to", to, "subject", subject)
	return nil
}
