package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Committer turns a complete draft into a scheduled appointment. Conflicts are
// decided by the store at commit time, never by availability the client saw earlier.
type Committer struct {
	store   AppointmentStore
	doctors DoctorDirectory
	now     func() time.Time
}

func NewCommitter(store AppointmentStore, doctors DoctorDirectory) *Committer {
	return &Committer{store: store, doctors: doctors, now: time.Now}
}

// Commit creates the appointment or fails with ErrDoubleBooking when the
// doctor's slot is already held by an active appointment. No retry is attempted.
func (c *Committer) Commit(ctx context.Context, d Draft) (*Appointment, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return nil, &IncompleteDraftError{Missing: missing}
	}

	taken, err := c.store.ExistsActive(ctx, d.DoctorID, d.Slot)
	if err != nil {
		return nil, fmt.Errorf("check slot %s: %w", d.Slot, err)
	}
	if taken {
		return nil, ErrDoubleBooking
	}

	doc, err := c.doctors.Get(ctx, d.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor %s: %w", d.DoctorID, err)
	}

	appt := &Appointment{
		ID:              uuid.New(),
		PatientID:       d.PatientID,
		DoctorID:        d.DoctorID,
		Slot:            d.Slot,
		Status:          StatusScheduled,
		Reason:          d.Reason,
		DoctorName:      doc.Name,
		DoctorSpecialty: doc.Specialty,
		CreatedAt:       c.now().UTC(),
	}
	// The existence check above only narrows the window; Insert closes it.
	if err := c.store.Insert(ctx, appt); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrDoubleBooking
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return appt, nil
}
