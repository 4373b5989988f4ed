package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by service tests. InTx restores the
// previous state when fn fails.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	clock         time.Time
	accounts      map[int64]Account
	practitioners map[int64]PractitionerProfile
	clients       map[int64]ClientProfile
	failProfile   error
	memberLocks   int
}

func newMemStore() *memStore {
	return &memStore{
		clock:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		accounts:      map[int64]Account{},
		practitioners: map[int64]PractitionerProfile{},
		clients:       map[int64]ClientProfile{},
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	accounts := cloneMap(m.accounts)
	practitioners := cloneMap(m.practitioners)
	clients := cloneMap(m.clients)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.accounts, m.practitioners, m.clients = accounts, practitioners, clients
		m.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) InsertAccount(_ context.Context, a Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return nil, ErrDuplicateEmail
		}
	}
	m.nextID++
	m.clock = m.clock.Add(time.Minute)
	a.ID = m.nextID
	a.IsActive = true
	a.CreatedAt = m.clock
	m.accounts[a.ID] = a
	return &a, nil
}

func (m *memStore) InsertPractitionerProfile(_ context.Context, p PractitionerProfile) (*PractitionerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProfile != nil {
		return nil, m.failProfile
	}
	m.nextID++
	p.ID = m.nextID
	m.practitioners[p.ID] = p
	return &p, nil
}

func (m *memStore) InsertClientProfile(_ context.Context, c ClientProfile) (*ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProfile != nil {
		return nil, m.failProfile
	}
	m.nextID++
	c.ID = m.nextID
	m.clients[c.ID] = c
	return &c, nil
}

func (m *memStore) GetAccountByID(_ context.Context, id int64) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (m *memStore) GetAccountByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *memStore) UpdateAccount(_ context.Context, id int64, name, email, passwordHash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if email != nil {
		for otherID, other := range m.accounts {
			if otherID != id && strings.EqualFold(other.Email, *email) {
				return ErrDuplicateEmail
			}
		}
		a.Email = *email
	}
	if name != nil {
		a.Name = *name
	}
	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	m.accounts[id] = a
	return nil
}

func (m *memStore) SetAccountActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.IsActive = active
	m.accounts[id] = a
	return nil
}

func (m *memStore) LockMembership(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberLocks++
	return nil
}

func (m *memStore) CountActiveMembers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.accounts {
		if a.IsActive && a.Role != RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeactivateOldestMembers(_ context.Context, n int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []Account
	for _, a := range m.accounts {
		if a.IsActive && a.Role != RoleAdmin {
			active = append(active, a)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	var done int64
	for i := 0; i < n && i < len(active); i++ {
		a := active[i]
		a.IsActive = false
		m.accounts[a.ID] = a
		done++
	}
	return done, nil
}

func (m *memStore) GetPractitionerByID(_ context.Context, id int64) (*Practitioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &Practitioner{Account: m.accounts[p.AccountID], Profile: p}, nil
}

func (m *memStore) GetPractitionerByAccount(ctx context.Context, accountID int64) (*Practitioner, error) {
	m.mu.Lock()
	var id int64
	for _, p := range m.practitioners {
		if p.AccountID == accountID {
			id = p.ID
		}
	}
	m.mu.Unlock()
	return m.GetPractitionerByID(ctx, id)
}

func (m *memStore) UpdatePractitionerProfile(_ context.Context, id int64, specialization, bio *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.practitioners[id]
	if !ok {
		return ErrPractitionerNotFound
	}
	if specialization != nil {
		p.Specialization = *specialization
	}
	if bio != nil {
		p.Bio = *bio
	}
	m.practitioners[id] = p
	return nil
}

func (m *memStore) ListPractitioners(_ context.Context, query string) ([]Practitioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []Practitioner
	for _, p := range m.practitioners {
		a := m.accounts[p.AccountID]
		if !a.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(a.Name), q) || strings.Contains(strings.ToLower(p.Specialization), q) {
			out = append(out, Practitioner{Account: a, Profile: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Profile.ID < out[j].Profile.ID })
	return out, nil
}

func (m *memStore) ListSpecializations(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range m.practitioners {
		if p.Specialization != "" && !seen[p.Specialization] && m.accounts[p.AccountID].IsActive {
			seen[p.Specialization] = true
			out = append(out, p.Specialization)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) GetClientByID(_ context.Context, id int64) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &Client{Account: m.accounts[c.AccountID], Profile: c}, nil
}

func (m *memStore) GetClientByAccount(ctx context.Context, accountID int64) (*Client, error) {
	m.mu.Lock()
	var id int64
	for _, c := range m.clients {
		if c.AccountID == accountID {
			id = c.ID
		}
	}
	m.mu.Unlock()
	return m.GetClientByID(ctx, id)
}

func (m *memStore) UpdateClientProfile(_ context.Context, id int64, age *int, address, medicalHistory *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return ErrClientNotFound
	}
	if age != nil {
		c.Age = age
	}
	if address != nil {
		c.Address = *address
	}
	if medicalHistory != nil {
		c.MedicalHistory = *medicalHistory
	}
	m.clients[id] = c
	return nil
}

func (m *memStore) ListClientsByName(_ context.Context, query string) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []Client
	for _, c := range m.clients {
		a := m.accounts[c.AccountID]
		if strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, Client{Account: a, Profile: c})
		}
	}
	return out, nil
}

func (m *memStore) SearchAccounts(_ context.Context, query string) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []Account
	for _, a := range m.accounts {
		if strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CountActiveByRole(context.Context) (RoleCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c RoleCounts
	for _, a := range m.accounts {
		if !a.IsActive {
			continue
		}
		switch a.Role {
		case RolePractitioner:
			c.Practitioners++
		case RoleClient:
			c.Clients++
		case RoleAdmin:
			c.Admins++
		}
	}
	return c, nil
}

var _ Store = (*memStore)(nil)
