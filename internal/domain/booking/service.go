package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	appointments AppointmentStore
	doctors      DoctorDirectory
	sessions     *Sessions
	resolver     *Resolver
	committer    *Committer
}

func NewService(appts AppointmentStore, doctors DoctorDirectory, sessions SessionStore, policy WorkingHoursPolicy) *Service {
	return &Service{
		appointments: appts,
		doctors:      doctors,
		sessions:     NewSessions(sessions, doctors, policy),
		resolver:     NewResolver(appts, doctors, policy),
		committer:    NewCommitter(appts, doctors),
	}
}

// -- Wizard --

func (s *Service) Start(ctx context.Context, key SessionKey, patientID uuid.UUID) (Draft, error) {
	return s.sessions.Start(ctx, key, patientID)
}

func (s *Service) ChooseDoctor(ctx context.Context, key SessionKey, doctorID uuid.UUID) (Draft, error) {
	return s.sessions.ChooseDoctor(ctx, key, doctorID)
}

func (s *Service) ChooseSlot(ctx context.Context, key SessionKey, date, timeOfDay string) (Draft, error) {
	return s.sessions.ChooseSlot(ctx, key, date, timeOfDay)
}

func (s *Service) SetReason(ctx context.Context, key SessionKey, reason string) (Draft, error) {
	return s.sessions.SetReason(ctx, key, reason)
}

func (s *Service) CurrentDraft(ctx context.Context, key SessionKey) (Draft, error) {
	return s.sessions.CurrentDraft(ctx, key)
}

func (s *Service) Abandon(ctx context.Context, key SessionKey) error {
	return s.sessions.Abandon(ctx, key)
}

// Commit books the session's draft. On success the draft is cleared; on
// ErrDoubleBooking it is left intact so the patient can pick another slot.
func (s *Service) Commit(ctx context.Context, key SessionKey) (*Appointment, error) {
	d, err := s.sessions.pending(ctx, key)
	if err != nil {
		return nil, err
	}
	appt, err := s.committer.Commit(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.complete(ctx, key, appt.ID); err != nil {
		return nil, fmt.Errorf("appointment %s booked but session not cleared: %w", appt.ID, err)
	}
	return appt, nil
}

// Confirmation returns the appointment last booked in this session.
func (s *Service) Confirmation(ctx context.Context, key SessionKey) (*Appointment, error) {
	id, ok, err := s.sessions.LastBooked(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no appointment booked in this session: %w", ErrNotFound)
	}
	return s.appointments.GetByID(ctx, id)
}

// -- Lookups --

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) AvailableTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	return s.resolver.AvailableTimes(ctx, doctorID, date)
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

// GetPatientAppointment hides other patients' appointments behind ErrNotFound.
func (s *Service) GetPatientAppointment(ctx context.Context, patientID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, notFound("appointment", id)
	}
	return appt, nil
}

// DoctorDay lists a doctor's appointments on a date, cancelled ones included.
func (s *Service) DoctorDay(ctx context.Context, doctorID uuid.UUID, date string) ([]*Appointment, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.FindByDoctorAndDate(ctx, doctorID, d)
	if err != nil {
		return nil, fmt.Errorf("find appointments for doctor %s on %s: %w", doctorID, d, err)
	}
	return appts, nil
}
