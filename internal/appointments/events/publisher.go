package events

import (
	"context"
	"time"

	"breez/pkg/config"
	"breez/pkg/kafka"
	kafka_config "breez/pkg/kafka/config"
	"breez/pkg/logger"
	"breez/pkg/middleware"
	"breez/pkg/model"
)

const source = "appointments"

// Event types published on the appointments stream.
const (
	TypeBooked      = "appointment.booked"
	TypeRescheduled = "appointment.rescheduled"
	TypeCancelled   = "appointment.cancelled"
)

type payload struct {
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	Service       string    `json:"service"`
	StartTime     time.Time `json:"start_time"`
}

// Publisher emits appointment lifecycle events after committed writes.
// Publishing is best-effort: a broker failure is logged, never surfaced to
// the caller, and never rolls back the booking.
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher builds a Publisher from config. When events are disabled the
// returned Publisher is a no-op, which keeps the service wiring uniform.
func NewPublisher(cfg *config.Config) (*Publisher, error) {
	if !cfg.EventsEnabled {
		return &Publisher{log: cfg.Log}, nil
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(kcfg, cfg.EventsTopic)
	if err != nil {
		return nil, err
	}

	cfg.Log.Info("Appointment event publishing enabled",
		"topic", cfg.EventsTopic,
		"brokers", kcfg.Brokers,
	)
	return &Publisher{producer: producer, log: cfg.Log}, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, appt *model.Appointment) {
	if p.producer == nil {
		return
	}

	msg, err := kafka.NewMessage().
		WithKey(appt.ID).
		WithValue(payload{
			AppointmentID: appt.ID,
			PatientName:   appt.PatientName,
			Service:       appt.Service,
			StartTime:     appt.StartTime,
		}).
		WithEventType(eventType, source).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		Build()
	if err != nil {
		p.log.Error("Failed to build appointment event", "event_type", eventType, "error", err)
		return
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish appointment event",
			"event_type", eventType,
			"appointment_id", appt.ID,
			"error", err,
		)
	}
}

func (p *Publisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
