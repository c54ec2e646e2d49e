package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type slotKey struct {
	doctorID uuid.UUID
	slot     TimeSlot
}

// MemoryStore is an in-memory AppointmentStore. A single mutex makes Insert
// an atomic check-and-insert.
type MemoryStore struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment // appointment ID -> appointment
	active       map[slotKey]uuid.UUID      // (doctor, slot) -> active appointment ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[uuid.UUID]*Appointment),
		active:       make(map[slotKey]uuid.UUID),
	}
}

func (m *MemoryStore) FindByDoctorAndDate(_ context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Slot.Date == date {
			cp := *a
			results = append(results, &cp)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Slot.Time < results[j].Slot.Time })
	return results, nil
}

func (m *MemoryStore) ExistsActive(_ context.Context, doctorID uuid.UUID, slot TimeSlot) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, taken := m.active[slotKey{doctorID, slot}]
	return taken, nil
}

func (m *MemoryStore) Insert(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{a.DoctorID, a.Slot}
	if a.Status.Active() {
		if _, taken := m.active[key]; taken {
			return ErrConflict
		}
		m.active[key] = a.ID
	}
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, notFound("appointment", id)
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			cp := *a
			results = append(results, &cp)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Slot.Start().Before(results[j].Slot.Start()) })

	total := len(results)
	if offset >= total {
		return nil, total, nil
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

// SetStatus moves an appointment to status, releasing its slot when the new
// status is cancelled. It backs administrative flows and test setup.
func (m *MemoryStore) SetStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return notFound("appointment", id)
	}
	key := slotKey{a.DoctorID, a.Slot}
	if status.Active() && !a.Status.Active() {
		if _, taken := m.active[key]; taken {
			return ErrConflict
		}
		m.active[key] = a.ID
	}
	if !status.Active() && m.active[key] == a.ID {
		delete(m.active, key)
	}
	a.Status = status
	return nil
}
