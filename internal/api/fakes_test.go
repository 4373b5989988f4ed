package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/jobs"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/projection"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

const testJobToken = "job-secret"

var (
	adminAccount        = identity.Account{ID: 1, Name: "admin", Email: "admin@example.com", Role: identity.RoleAdmin, IsActive: true}
	practitionerAccount = identity.Account{ID: 2, Name: "Strange", Email: "strange@clinic.test", Role: identity.RolePractitioner, IsActive: true}
	clientAccount       = identity.Account{ID: 3, Name: "Alice", Email: "alice@example.com", Role: identity.RoleClient, IsActive: true}
)

// fakeIdentity implements the calls the handlers make; anything else panics
// through the nil embedded interface.
type fakeIdentity struct {
	IdentityService
	issuer        *identity.TokenIssuer
	practitioners map[int64]*identity.Practitioner
	clients       map[int64]*identity.Client
	created       []identity.NewAccount
	deactivated   map[int64]bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		issuer: identity.NewTokenIssuer("test-secret", 30*time.Minute),
		practitioners: map[int64]*identity.Practitioner{
			practitionerAccount.ID: {
				Account: practitionerAccount,
				Profile: identity.PractitionerProfile{ID: 10, AccountID: practitionerAccount.ID, Specialization: "Neurology"},
			},
		},
		clients: map[int64]*identity.Client{
			clientAccount.ID: {
				Account: clientAccount,
				Profile: identity.ClientProfile{ID: 20, AccountID: clientAccount.ID},
			},
		},
	}
}

func (f *fakeIdentity) VerifyToken(_ context.Context, raw string) (identity.Principal, error) {
	p, err := f.issuer.Verify(raw)
	if err != nil {
		return identity.Principal{}, err
	}
	if f.deactivated[p.AccountID] {
		return identity.Principal{}, identity.ErrInvalidToken
	}
	return p, nil
}

func (f *fakeIdentity) Login(_ context.Context, email, password string) (*identity.Token, error) {
	if email == clientAccount.Email && password == "secret" {
		acct := clientAccount
		return f.issuer.Issue(&acct)
	}
	return nil, identity.ErrInvalidCredentials
}

func (f *fakeIdentity) CreateAccount(_ context.Context, in identity.NewAccount) (*identity.Account, error) {
	for _, p := range f.practitioners {
		if p.Account.Email == in.Email {
			return nil, identity.ErrDuplicateEmail
		}
	}
	f.created = append(f.created, in)
	acct := identity.Account{ID: int64(100 + len(f.created)), Name: in.Name, Email: in.Email, Role: in.Role, IsActive: true}
	switch in.Role {
	case identity.RolePractitioner:
		f.practitioners[acct.ID] = &identity.Practitioner{Account: acct, Profile: identity.PractitionerProfile{ID: acct.ID + 1000, AccountID: acct.ID, Specialization: in.Specialization}}
	case identity.RoleClient:
		f.clients[acct.ID] = &identity.Client{Account: acct, Profile: identity.ClientProfile{ID: acct.ID + 2000, AccountID: acct.ID}}
	}
	return &acct, nil
}

func (f *fakeIdentity) PractitionerByAccount(_ context.Context, accountID int64) (*identity.Practitioner, error) {
	if p, ok := f.practitioners[accountID]; ok {
		return p, nil
	}
	return nil, identity.ErrPractitionerNotFound
}

func (f *fakeIdentity) ClientByAccount(_ context.Context, accountID int64) (*identity.Client, error) {
	if c, ok := f.clients[accountID]; ok {
		return c, nil
	}
	return nil, identity.ErrClientNotFound
}

func (f *fakeIdentity) ListPractitioners(context.Context) ([]identity.Practitioner, error) {
	return []identity.Practitioner{*f.practitioners[practitionerAccount.ID]}, nil
}

func (f *fakeIdentity) token(t *testing.T, acct identity.Account) string {
	t.Helper()
	tok, err := f.issuer.Issue(&acct)
	require.NoError(t, err)
	return tok.AccessToken
}

type fakeAppointments struct {
	AppointmentService
	booked   []appointment.BookRequest
	bookErr  error
	cancelID int64
}

func (f *fakeAppointments) Book(_ context.Context, _ identity.Principal, req appointment.BookRequest) (*appointment.Appointment, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	f.booked = append(f.booked, req)
	return &appointment.Appointment{
		ID:              7,
		PractitionerID:  req.PractitionerID,
		ClientID:        20,
		AppointmentDate: time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		Status:          appointment.StatusScheduled,
		Notes:           req.Notes,
	}, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, _ identity.Principal, id int64) (*appointment.Appointment, error) {
	f.cancelID = id
	return &appointment.Appointment{ID: id, Status: appointment.StatusCancelled}, nil
}

type memAvailability struct {
	mu   sync.Mutex
	docs map[int64]string
}

func (m *memAvailability) Load(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id], nil
}

func (m *memAvailability) LoadMany(_ context.Context, ids []int64) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		out[id] = m.docs[id]
	}
	return out, nil
}

func (m *memAvailability) Save(_ context.Context, id int64, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = raw
	return nil
}

type fakeReader struct {
	projection.Reader
	err error
}

func (f *fakeReader) ListDetails(context.Context, appointment.Filter) ([]appointment.Detail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

type fakeJobs struct {
	JobService
	reminders int
	tasks     map[string]*redisclient.Task
}

func (f *fakeJobs) DailyReminders(context.Context, time.Time) (int, error) {
	f.reminders++
	return 3, nil
}

func (f *fakeJobs) RequestExport(_ context.Context, kind jobs.ExportKind, _ int64, requestedBy string) (*redisclient.Task, error) {
	task := &redisclient.Task{ID: "task-1", Kind: string(kind), Status: redisclient.TaskPending, RequestedBy: requestedBy}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeJobs) Task(_ context.Context, id string) (*redisclient.Task, error) {
	if task, ok := f.tasks[id]; ok {
		return task, nil
	}
	return nil, jobs.ErrTaskNotFound
}

type testServer struct {
	handler      http.Handler
	identity     *fakeIdentity
	appointments *fakeAppointments
	reader       *fakeReader
	jobs         *fakeJobs
	registry     *prometheus.Registry
	pgErr        error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		identity:     newFakeIdentity(),
		appointments: &fakeAppointments{},
		reader:       &fakeReader{},
		jobs:         &fakeJobs{tasks: map[string]*redisclient.Task{}},
		registry:     prometheus.NewRegistry(),
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	health := NewHealthHandler(
		func(context.Context) error { return ts.pgErr },
		func(context.Context) error { return nil },
		"test", "v0",
	)
	ts.handler = NewRouter(RouterConfig{
		Identity:       ts.identity,
		Appointments:   ts.appointments,
		Availability:   availability.NewService(&memAvailability{docs: map[int64]string{}}, logging.Discard()),
		Projection:     projection.NewService(ts.reader, nil, loc),
		Jobs:           ts.jobs,
		Health:         health,
		Logger:         logging.Discard(),
		HTTPMetrics:    metrics.NewHTTPMetrics(ts.registry),
		Gatherer:       ts.registry,
		AllowedOrigins: []string{"https://app.example.com"},
		JobToken:       testJobToken,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var errBoom = errors.New("connection reset by peer")
