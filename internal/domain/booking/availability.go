package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Resolver computes which grid slots a doctor still has free on a day.
// The answer is a point-in-time read for display and reserves nothing.
type Resolver struct {
	store   AppointmentStore
	doctors DoctorDirectory
	policy  WorkingHoursPolicy
}

func NewResolver(store AppointmentStore, doctors DoctorDirectory, policy WorkingHoursPolicy) *Resolver {
	return &Resolver{store: store, doctors: doctors, policy: policy}
}

// Available returns the grid for date minus the times held by the doctor's
// active appointments, in ascending order.
func (r *Resolver) Available(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeSlot, error) {
	ok, err := r.doctors.Exists(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("look up doctor %s: %w", doctorID, err)
	}
	if !ok {
		return nil, notFound("doctor", doctorID)
	}

	appts, err := r.store.FindByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("find appointments for doctor %s on %s: %w", doctorID, date, err)
	}
	taken := make(map[TimeOfDay]bool, len(appts))
	for _, a := range appts {
		if a.Status.Active() {
			taken[a.Slot.Time] = true
		}
	}

	all := r.policy.Generate(date)
	free := make([]TimeSlot, 0, len(all))
	for _, slot := range all {
		if !taken[slot.Time] {
			free = append(free, slot)
		}
	}
	return free, nil
}

// AvailableTimes is Available for string input, returning HH:MM values.
func (r *Resolver) AvailableTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	slots, err := r.Available(ctx, doctorID, d)
	if err != nil {
		return nil, err
	}
	times := make([]string, len(slots))
	for i, s := range slots {
		times[i] = s.Time.String()
	}
	return times, nil
}
