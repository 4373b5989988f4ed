package appointment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memRepository is an in-memory Repository. Create enforces the same
// (practitioner, instant) uniqueness as the database index.
type memRepository struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	nextID int64

	clientsByAccount       map[int64]int64
	practitionersByAccount map[int64]int64
	appointments           map[int64]Appointment
	events                 []EventLog
}

func newMemRepository() *memRepository {
	return &memRepository{
		clientsByAccount:       map[int64]int64{},
		practitionersByAccount: map[int64]int64{},
		appointments:           map[int64]Appointment{},
	}
}

func (m *memRepository) addClient(accountID, clientID int64) {
	m.clientsByAccount[accountID] = clientID
}

func (m *memRepository) addPractitioner(accountID, practitionerID int64) {
	m.practitionersByAccount[accountID] = practitionerID
}

func (m *memRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *memRepository) GetClientIDByAccount(_ context.Context, accountID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.clientsByAccount[accountID]
	if !ok {
		return 0, ErrNotClient
	}
	return id, nil
}

func (m *memRepository) GetPractitionerIDByAccount(_ context.Context, accountID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.practitionersByAccount[accountID]
	if !ok {
		return 0, ErrNotPractitioner
	}
	return id, nil
}

func (m *memRepository) PractitionerExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.practitionersByAccount {
		if p == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepository) FindAtInstant(_ context.Context, practitionerID int64, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.PractitionerID == practitionerID && a.AppointmentDate.Equal(at) {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepository) Create(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.appointments {
		if existing.PractitionerID == a.PractitionerID && existing.AppointmentDate.Equal(a.AppointmentDate) {
			return nil, ErrSlotTaken
		}
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	m.appointments[a.ID] = a
	return &a, nil
}

// seed stores an appointment without any checks, e.g. one in the past.
func (m *memRepository) seed(a Appointment) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.appointments[a.ID] = a
	return a
}

func (m *memRepository) GetByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepository) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *memRepository) UpdateStatus(_ context.Context, id int64, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepository) UpdateNotes(_ context.Context, id int64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Notes = notes
	m.appointments[id] = a
	return nil
}

func (m *memRepository) pair(practitionerID, clientID int64) []Appointment {
	var out []Appointment
	for _, a := range m.appointments {
		if a.PractitionerID == practitionerID && a.ClientID == clientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentDate.Before(out[j].AppointmentDate) })
	return out
}

func (m *memRepository) LatestForPair(_ context.Context, practitionerID, clientID int64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.pair(practitionerID, clientID)
	if len(all) == 0 {
		return nil, ErrNoSharedAppointment
	}
	latest := all[len(all)-1]
	return &latest, nil
}

func (m *memRepository) ListForPair(_ context.Context, practitionerID, clientID int64) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair(practitionerID, clientID), nil
}

func (m *memRepository) ListDetails(_ context.Context, f Filter) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Detail
	for _, a := range m.appointments {
		if f.PractitionerID != 0 && a.PractitionerID != f.PractitionerID {
			continue
		}
		if f.ClientID != 0 && a.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, Detail{Appointment: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepository) ListClientsOf(context.Context, int64) ([]ClientCard, error) {
	return nil, nil
}

func (m *memRepository) CountAll(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appointments), nil
}

func (m *memRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

var _ Repository = (*memRepository)(nil)
