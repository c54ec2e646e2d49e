package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// State is the position of a draft in the booking wizard.
type State int

const (
	StateEmpty State = iota
	StatePatientSet
	StateDoctorSet
	StateSlotSet
	StateReadyToCommit
	StateCommitted
)

var stateNames = map[State]string{
	StateEmpty:         "empty",
	StatePatientSet:    "patient_set",
	StateDoctorSet:     "doctor_set",
	StateSlotSet:       "slot_set",
	StateReadyToCommit: "ready_to_commit",
	StateCommitted:     "committed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Draft is a value snapshot of the in-progress selections. Copies never
// alias session storage.
type Draft struct {
	State     State
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Slot      TimeSlot
	Reason    string
}

// Missing lists the required selections that are not set yet, in wizard order.
func (d Draft) Missing() []string {
	var missing []string
	if d.PatientID == uuid.Nil {
		missing = append(missing, "patient")
	}
	if d.DoctorID == uuid.Nil {
		missing = append(missing, "doctor")
	}
	if d.Slot.Date.IsZero() {
		missing = append(missing, "slot")
	}
	return missing
}

var wizardSteps = []string{"patient", "doctor", "slot"}

// requireBefore fails when a step that precedes step in the wizard is unset.
func (d Draft) requireBefore(step string) error {
	missing := d.Missing()
	for _, s := range wizardSteps {
		if s == step {
			return nil
		}
		if slices.Contains(missing, s) {
			return &IncompleteDraftError{Missing: []string{s}}
		}
	}
	return nil
}

// DraftView is the JSON shape of a draft.
type DraftView struct {
	State     string     `json:"state"`
	PatientID uuid.UUID  `json:"patient_id"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	Date      string     `json:"date,omitempty"`
	Time      string     `json:"time,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func (d Draft) View() DraftView {
	v := DraftView{State: d.State.String(), PatientID: d.PatientID, Reason: d.Reason}
	if d.DoctorID != uuid.Nil {
		id := d.DoctorID
		v.DoctorID = &id
	}
	if !d.Slot.Date.IsZero() {
		v.Date = d.Slot.Date.String()
		v.Time = d.Slot.Time.String()
	}
	return v
}

// SessionKey names a wizard session and the account driving it. The cookie
// id alone does not grant access to a stored draft.
type SessionKey struct {
	ID    string
	Owner uuid.UUID
}

// sessionRecord is what gets persisted into the SessionStore.
type sessionRecord struct {
	Owner      uuid.UUID   `json:"owner"`
	Draft      draftRecord `json:"draft"`
	LastBooked *uuid.UUID  `json:"last_booked,omitempty"`
}

type draftRecord struct {
	State     State      `json:"state"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	Date      string     `json:"date,omitempty"`
	Time      string     `json:"time,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func recordOf(d Draft) draftRecord {
	r := draftRecord{State: d.State, Reason: d.Reason}
	if d.PatientID != uuid.Nil {
		id := d.PatientID
		r.PatientID = &id
	}
	if d.DoctorID != uuid.Nil {
		id := d.DoctorID
		r.DoctorID = &id
	}
	if !d.Slot.Date.IsZero() {
		r.Date = d.Slot.Date.String()
		r.Time = d.Slot.Time.String()
	}
	return r
}

func (r draftRecord) draft() (Draft, error) {
	d := Draft{State: r.State, Reason: r.Reason}
	if r.PatientID != nil {
		d.PatientID = *r.PatientID
	}
	if r.DoctorID != nil {
		d.DoctorID = *r.DoctorID
	}
	if r.Date != "" {
		slot, err := ParseTimeSlot(r.Date, r.Time)
		if err != nil {
			return Draft{}, fmt.Errorf("decode stored slot: %w", err)
		}
		d.Slot = slot
	}
	return d, nil
}

// Sessions runs the booking wizard state machine. Each operation loads the
// draft for a session id, applies one transition and writes it back.
type Sessions struct {
	store   SessionStore
	doctors DoctorDirectory
	policy  WorkingHoursPolicy
}

func NewSessions(store SessionStore, doctors DoctorDirectory, policy WorkingHoursPolicy) *Sessions {
	return &Sessions{store: store, doctors: doctors, policy: policy}
}

// load reads the record for key. A record owned by another account reads as
// empty, and the next write replaces it.
func (s *Sessions) load(ctx context.Context, key SessionKey) (sessionRecord, error) {
	empty := sessionRecord{Owner: key.Owner}
	payload, ok, err := s.store.Get(ctx, key.ID)
	if err != nil {
		return empty, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return empty, nil
	}
	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return empty, fmt.Errorf("decode session: %w", err)
	}
	if rec.Owner != key.Owner {
		return empty, nil
	}
	return rec, nil
}

func (s *Sessions) save(ctx context.Context, key SessionKey, rec sessionRecord) error {
	if rec.Draft.State == StateEmpty && rec.LastBooked == nil {
		if err := s.store.Clear(ctx, key.ID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Put(ctx, key.ID, payload); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Sessions) update(ctx context.Context, key SessionKey, fn func(d *Draft) error) (Draft, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return Draft{}, err
	}
	d, err := rec.Draft.draft()
	if err != nil {
		return Draft{}, err
	}
	if err := fn(&d); err != nil {
		return Draft{}, err
	}
	rec.Draft = recordOf(d)
	if err := s.save(ctx, key, rec); err != nil {
		return Draft{}, err
	}
	return d, nil
}

func advance(d *Draft, to State) {
	if d.State < to {
		d.State = to
	}
}

// Start discards any prior draft and begins a new one for patient.
func (s *Sessions) Start(ctx context.Context, key SessionKey, patientID uuid.UUID) (Draft, error) {
	if patientID == uuid.Nil {
		return Draft{}, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	return s.update(ctx, key, func(d *Draft) error {
		*d = Draft{State: StatePatientSet, PatientID: patientID}
		return nil
	})
}

// ChooseDoctor stores the doctor. It may be called again to change the doctor;
// later selections are kept and re-checked at commit.
func (s *Sessions) ChooseDoctor(ctx context.Context, key SessionKey, doctorID uuid.UUID) (Draft, error) {
	return s.update(ctx, key, func(d *Draft) error {
		if err := d.requireBefore("doctor"); err != nil {
			return err
		}
		ok, err := s.doctors.Exists(ctx, doctorID)
		if err != nil {
			return fmt.Errorf("look up doctor %s: %w", doctorID, err)
		}
		if !ok {
			return &ValidationError{Field: "doctor_id", Reason: fmt.Sprintf("%s is not a doctor", doctorID)}
		}
		d.DoctorID = doctorID
		advance(d, StateDoctorSet)
		return nil
	})
}

// ChooseSlot stores the date and time. Live availability is not checked here.
func (s *Sessions) ChooseSlot(ctx context.Context, key SessionKey, date, timeOfDay string) (Draft, error) {
	slot, err := ParseTimeSlot(date, timeOfDay)
	if err != nil {
		return Draft{}, err
	}
	if !s.policy.Contains(slot.Time) {
		return Draft{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("%s is not a bookable slot", slot.Time)}
	}
	return s.update(ctx, key, func(d *Draft) error {
		if err := d.requireBefore("slot"); err != nil {
			return err
		}
		d.Slot = slot
		advance(d, StateSlotSet)
		return nil
	})
}

// SetReason stores the free-text reason. An unset reason commits as empty.
func (s *Sessions) SetReason(ctx context.Context, key SessionKey, reason string) (Draft, error) {
	return s.update(ctx, key, func(d *Draft) error {
		if missing := d.Missing(); len(missing) > 0 {
			return &IncompleteDraftError{Missing: missing}
		}
		d.Reason = reason
		advance(d, StateReadyToCommit)
		return nil
	})
}

// CurrentDraft returns the draft for confirmation. Patient, doctor and slot
// must all be set.
func (s *Sessions) CurrentDraft(ctx context.Context, key SessionKey) (Draft, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return Draft{}, err
	}
	d, err := rec.Draft.draft()
	if err != nil {
		return Draft{}, err
	}
	if missing := d.Missing(); len(missing) > 0 {
		return Draft{}, &IncompleteDraftError{Missing: missing}
	}
	return d, nil
}

// Abandon clears the draft. It is safe to call on an empty session.
func (s *Sessions) Abandon(ctx context.Context, key SessionKey) error {
	rec, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	rec.Draft = draftRecord{}
	return s.save(ctx, key, rec)
}

// pending returns the stored draft without completeness checks.
func (s *Sessions) pending(ctx context.Context, key SessionKey) (Draft, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return Draft{}, err
	}
	return rec.Draft.draft()
}

// complete clears the draft and remembers the appointment it became.
func (s *Sessions) complete(ctx context.Context, key SessionKey, appointmentID uuid.UUID) error {
	rec, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	id := appointmentID
	rec.Draft = draftRecord{}
	rec.LastBooked = &id
	return s.save(ctx, key, rec)
}

// LastBooked returns the id of the appointment most recently committed in
// this session.
func (s *Sessions) LastBooked(ctx context.Context, key SessionKey) (uuid.UUID, bool, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return uuid.Nil, false, err
	}
	if rec.LastBooked == nil {
		return uuid.Nil, false, nil
	}
	return *rec.LastBooked, true, nil
}
