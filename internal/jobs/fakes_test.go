package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

type fakeAppointments struct {
	details []appointment.Detail
	err     error
}

func (f *fakeAppointments) ListDetails(_ context.Context, flt appointment.Filter) ([]appointment.Detail, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []appointment.Detail
	for _, d := range f.details {
		switch {
		case flt.PractitionerID != 0 && d.PractitionerID != flt.PractitionerID:
		case flt.ClientID != 0 && d.ClientID != flt.ClientID:
		case flt.Status != "" && d.Status != flt.Status:
		case !flt.From.IsZero() && d.AppointmentDate.Before(flt.From):
		case !flt.To.IsZero() && !d.AppointmentDate.Before(flt.To):
		default:
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeClients map[int64]*identity.Client

func (f fakeClients) Client(_ context.Context, id int64) (*identity.Client, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, identity.ErrClientNotFound
}

// flakySender fails for the listed recipients.
type flakySender struct {
	mu     sync.Mutex
	sent   []notify.EmailMessage
	failTo map[string]bool
}

func (f *flakySender) Send(_ context.Context, msg notify.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *flakySender) messages() []notify.EmailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.EmailMessage(nil), f.sent...)
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func detail(id, practitionerID, clientID int64, at time.Time, status appointment.Status) appointment.Detail {
	names := map[int64]string{1: "Strange", 2: "House", 10: "Alice", 11: "Bob"}
	emails := map[int64]string{1: "strange@clinic.test", 2: "house@clinic.test", 10: "alice@example.com", 11: "bob@example.com"}
	return appointment.Detail{
		Appointment: appointment.Appointment{
			ID:              id,
			PractitionerID:  practitionerID,
			ClientID:        clientID,
			AppointmentDate: at,
			Status:          status,
		},
		PractitionerName:  names[practitionerID],
		PractitionerEmail: emails[practitionerID],
		ClientName:        names[clientID],
		ClientEmail:       emails[clientID],
	}
}

type harness struct {
	runner *Runner
	appts  *fakeAppointments
	sender *flakySender
	tasks  *redisclient.TaskStore
	queue  *MemoryQueue
	mr     *miniredis.Miniredis
}

func newHarness(t *testing.T, details ...appointment.Detail) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		appts:  &fakeAppointments{details: details},
		sender: &flakySender{failTo: map[string]bool{}},
		tasks:  redisclient.NewTaskStore(client, time.Hour),
		queue:  NewMemoryQueue(8),
		mr:     mr,
	}
	h.runner = NewRunner(Deps{
		Appointments: h.appts,
		Clients: fakeClients{
			10: {Account: identity.Account{ID: 100, Name: "Alice", Email: "alice@example.com"}},
			11: {Account: identity.Account{ID: 101, Name: "Bob", Email: "bob@example.com"}},
		},
		Tasks:    h.tasks,
		Queue:    h.queue,
		Sender:   h.sender,
		Location: kolkata(t),
		Metrics:  metrics.NewJobMetrics(prometheus.NewRegistry()),
	}, logging.Discard())
	return h
}
