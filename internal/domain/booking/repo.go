package booking

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentStore interface {
	// FindByDoctorAndDate returns the doctor's appointments on date in every status.
	FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error)
	ExistsActive(ctx context.Context, doctorID uuid.UUID, slot TimeSlot) (bool, error)
	// Insert is an atomic check-and-insert: it returns ErrConflict when an
	// active appointment already holds the same doctor and slot.
	Insert(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

// DoctorDirectory resolves doctor-role accounts. Accounts with any other role
// are reported as not existing.
type DoctorDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

// SessionStore is opaque per-session storage. A missing or expired key
// reports ok == false.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (payload []byte, ok bool, err error)
	Put(ctx context.Context, sessionID string, payload []byte) error
	Clear(ctx context.Context, sessionID string) error
}
