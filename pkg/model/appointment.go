package model

import (
	"time"
)

// Appointment is a confirmed booking occupying the clinic's single chair.
// StartTime is a canonical instant at minute precision; only StartTime is
// ever mutated after creation, and only by a reschedule.
type Appointment struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PatientName       string    `json:"patient_name" bson:"patient_name" validate:"required,min=2,max=100"`
	Age               int       `json:"age" bson:"age" validate:"required,gte=1,lte=120"`
	Service           string    `json:"service" bson:"service" validate:"required,min=2,max=100"`
	StartTime         time.Time `json:"start_time" bson:"start_time" validate:"required"`
	InsuranceProvider string    `json:"insurance_provider,omitempty" bson:"insurance_provider,omitempty" validate:"omitempty,max=100"`
	Notes             string    `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=500"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// AppointmentRequest is the booking payload as received on the wire. The
// appointment date stays a raw string here; normalization into a canonical
// instant happens in the service, not the transport.
type AppointmentRequest struct {
	PatientName       string `json:"patient_name"`
	Age               int    `json:"age"`
	Service           string `json:"service"`
	AppointmentDate   string `json:"appointment_date"`
	InsuranceProvider string `json:"insurance_provider,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// RescheduleRequest moves an existing appointment to a new raw date.
type RescheduleRequest struct {
	AppointmentDate string `json:"appointment_date"`
}

// SlotLock is an advisory lock document serializing check-then-act on a slot.
// The unique _id is derived from the slot coordinates; ExpiresAt backs a TTL
// index so crashed holders cannot wedge a slot.
type SlotLock struct {
	ID        string    `json:"id" bson:"_id"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
