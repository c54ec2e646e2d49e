package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carebook/booking/internal/domain/booking"
	"github.com/carebook/booking/internal/platform/auth"
	"github.com/carebook/booking/internal/platform/validation"
)

var validate = validation.New()

// Doctors exposes the accounts that may accept appointments as a
// booking.DoctorDirectory.
type Doctors struct {
	accounts AccountRepository
}

func NewDoctors(accounts AccountRepository) *Doctors {
	return &Doctors{accounts: accounts}
}

var _ booking.DoctorDirectory = (*Doctors)(nil)

func doctorRoles() []auth.Role {
	var roles []auth.Role
	for _, r := range []auth.Role{auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin} {
		if r.Can(auth.CapAcceptAppointments) {
			roles = append(roles, r)
		}
	}
	return roles
}

func (d *Doctors) Get(ctx context.Context, id uuid.UUID) (*booking.Doctor, error) {
	a, err := d.accounts.GetByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("doctor %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !a.Role.Can(auth.CapAcceptAppointments) {
		return nil, fmt.Errorf("doctor %s: %w", id, booking.ErrNotFound)
	}
	return &booking.Doctor{ID: a.ID, Name: a.Name, Specialty: a.Specialty}, nil
}

func (d *Doctors) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := d.Get(ctx, id)
	if errors.Is(err, booking.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (d *Doctors) List(ctx context.Context, limit, offset int) ([]*booking.Doctor, int, error) {
	accounts, total, err := d.accounts.ListByRoles(ctx, doctorRoles(), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	doctors := make([]*booking.Doctor, len(accounts))
	for i, a := range accounts {
		doctors[i] = &booking.Doctor{ID: a.ID, Name: a.Name, Specialty: a.Specialty}
	}
	return doctors, total, nil
}

// Register validates and stores a new account.
func Register(ctx context.Context, accounts AccountRepository, a *Account) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	fields, err := validate.Check(a)
	if err != nil {
		return fmt.Errorf("validate account: %w", err)
	}
	if len(fields) > 0 {
		return &booking.ValidationError{Field: fields[0].Field, Reason: fields[0].Reason}
	}
	if _, err := auth.ParseRole(string(a.Role)); err != nil {
		return &booking.ValidationError{Field: "role", Reason: err.Error()}
	}
	if a.Specialty != "" && !a.Role.Can(auth.CapAcceptAppointments) {
		return &booking.ValidationError{Field: "specialty", Reason: "only doctors have a specialty"}
	}
	return accounts.Create(ctx, a)
}
