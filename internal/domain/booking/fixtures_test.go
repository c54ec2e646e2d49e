package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking/internal/platform/session"
)

// -- Mock Doctor Directory --

type mockDoctors struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctors(docs ...*Doctor) *mockDoctors {
	m := &mockDoctors{doctors: make(map[uuid.UUID]*Doctor)}
	for _, d := range docs {
		m.doctors[d.ID] = d
	}
	return m
}

func (m *mockDoctors) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.doctors[id]
	return ok, nil
}

func (m *mockDoctors) Get(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, notFound("doctor", id)
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctors) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Doctor
	for _, d := range m.doctors {
		out = append(out, d)
	}
	return out, len(out), nil
}

// failingStore wraps an AppointmentStore and fails selected operations.
type failingStore struct {
	AppointmentStore
	findErr   error
	insertErr error
}

func (f *failingStore) FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.AppointmentStore.FindByDoctorAndDate(ctx, doctorID, date)
}

func (f *failingStore) Insert(ctx context.Context, a *Appointment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.AppointmentStore.Insert(ctx, a)
}

var errStoreDown = errors.New("connection reset by peer")

// -- Fixture --

type fixture struct {
	store    *MemoryStore
	doctors  *mockDoctors
	sessions *session.MemoryStore
	svc      *Service

	doctor  *Doctor
	doctor2 *Doctor
	patient uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewMemoryStore(),
		doctor:   &Doctor{ID: uuid.New(), Name: "Dr. Gregory House", Specialty: "Diagnostics"},
		doctor2:  &Doctor{ID: uuid.New(), Name: "Dr. Lisa Cuddy", Specialty: "Endocrinology"},
		patient:  uuid.New(),
		sessions: session.NewMemoryStore(100, time.Hour),
	}
	f.doctors = newMockDoctors(f.doctor, f.doctor2)
	f.svc = NewService(f.store, f.doctors, f.sessions, DefaultPolicy)
	return f
}

// book inserts an appointment directly into the store.
func (f *fixture) book(t *testing.T, doctorID uuid.UUID, date, tod string, status Status) *Appointment {
	t.Helper()
	slot, err := ParseTimeSlot(date, tod)
	if err != nil {
		t.Fatalf("bad slot: %v", err)
	}
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Slot:      slot,
		Status:    status,
		CreatedAt: time.Now(),
	}
	if err := f.store.Insert(context.Background(), a); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return a
}

// key is a session owned by the fixture patient.
func (f *fixture) key(id string) SessionKey {
	return SessionKey{ID: id, Owner: f.patient}
}

// draftThroughSlot walks a session to SlotSet.
func (f *fixture) draftThroughSlot(t *testing.T, sid string, doctorID uuid.UUID, date, tod string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.key(sid), f.patient); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := f.svc.ChooseDoctor(ctx, f.key(sid), doctorID); err != nil {
		t.Fatalf("ChooseDoctor() error: %v", err)
	}
	if _, err := f.svc.ChooseSlot(ctx, f.key(sid), date, tod); err != nil {
		t.Fatalf("ChooseSlot() error: %v", err)
	}
}
