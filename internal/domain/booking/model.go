package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusCancelled: true, StatusCompleted: true,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return validStatuses[s] }

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool { return s != StatusCancelled }

// Appointment maps to the appointments table.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Slot            TimeSlot  `db:"starts_at" json:"-"`
	Status          Status    `db:"status" json:"status"`
	Reason          string    `db:"reason" json:"reason"`
	DoctorName      string    `db:"doctor_name" json:"doctor_name"`
	DoctorSpecialty string    `db:"doctor_specialty" json:"doctor_specialty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Doctor holds the display fields denormalized onto an appointment at booking time.
type Doctor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
}

// AppointmentView is the JSON shape returned to clients.
type AppointmentView struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Status          Status    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	DoctorName      string    `json:"doctor_name"`
	DoctorSpecialty string    `json:"doctor_specialty,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (a *Appointment) View() AppointmentView {
	return AppointmentView{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		Date:            a.Slot.Date.String(),
		Time:            a.Slot.Time.String(),
		Status:          a.Status,
		Reason:          a.Reason,
		DoctorName:      a.DoctorName,
		DoctorSpecialty: a.DoctorSpecialty,
		CreatedAt:       a.CreatedAt,
	}
}
