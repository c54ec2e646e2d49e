package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const RoutingKeyAppointmentBooked = "appointment.booked"

// AppointmentBooked is published once per committed booking.
type AppointmentBooked struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Reason        string    `json:"reason,omitempty"`
	BookedAt      time.Time `json:"booked_at"`
}

type Publisher interface {
	PublishAppointmentBooked(ctx context.Context, e AppointmentBooked) error
	Close() error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishAppointmentBooked(context.Context, AppointmentBooked) error { return nil }

func (Nop) Close() error { return nil }
