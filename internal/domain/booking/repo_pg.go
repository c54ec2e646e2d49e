package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/booking/internal/platform/db"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	// activeSlotIndex is the partial unique index on (doctor_id, starts_at)
	// over rows whose status is not cancelled.
	activeSlotIndex = "appointments_active_slot_uq"
	patientFK       = "appointments_patient_id_fkey"
	doctorFK        = "appointments_doctor_id_fkey"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentStore {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, doctor_id, starts_at, status, reason,
	doctor_name, doctor_specialty, created_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var startsAt time.Time
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &startsAt, &a.Status, &a.Reason,
		&a.DoctorName, &a.DoctorSpecialty, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Slot = SlotAt(startsAt)
	return &a, nil
}

func (r *appointmentRepoPG) FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	from := date.Midnight()
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`, doctorID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ExistsActive(ctx context.Context, doctorID uuid.UUID, slot TimeSlot) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE doctor_id = $1 AND starts_at = $2 AND status <> 'cancelled')`,
		doctorID, slot.Start()).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, starts_at, status, reason,
			doctor_name, doctor_specialty, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.PatientID, a.DoctorID, a.Slot.Start(), a.Status, a.Reason,
		a.DoctorName, a.DoctorSpecialty, a.CreatedAt)
	return insertError(a, err)
}

// insertError maps constraint violations on appointments to domain errors.
func insertError(a *Appointment, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeSlotIndex:
		return fmt.Errorf("doctor %s at %s: %w", a.DoctorID, a.Slot, ErrConflict)
	case pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == patientFK:
		return &ValidationError{Field: "patient_id", Reason: fmt.Sprintf("%s has no account", a.PatientID)}
	case pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == doctorFK:
		return &ValidationError{Field: "doctor_id", Reason: fmt.Sprintf("%s has no account", a.DoctorID)}
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("appointment", id)
	}
	return a, err
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE patient_id = $1 ORDER BY starts_at LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
