package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/jobs"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/projection"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

type IdentityService interface {
	TokenVerifier
	Login(ctx context.Context, email, password string) (*identity.Token, error)
	CreateAccount(ctx context.Context, in identity.NewAccount) (*identity.Account, error)
	PractitionerByAccount(ctx context.Context, accountID int64) (*identity.Practitioner, error)
	ClientByAccount(ctx context.Context, accountID int64) (*identity.Client, error)
	ListPractitioners(ctx context.Context) ([]identity.Practitioner, error)
	SearchPractitioners(ctx context.Context, query string) ([]identity.Practitioner, error)
	Specializations(ctx context.Context) ([]string, error)
	UpdatePractitioner(ctx context.Context, practitionerID int64, upd identity.PractitionerUpdate) (*identity.Practitioner, error)
	UpdateClient(ctx context.Context, clientID int64, upd identity.ClientUpdate) (*identity.Client, error)
	DeactivatePractitioner(ctx context.Context, practitionerID int64) error
	DeactivateClient(ctx context.Context, clientID int64) error
}

type AppointmentService interface {
	Book(ctx context.Context, caller identity.Principal, req appointment.BookRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, caller identity.Principal, appointmentID int64) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, caller identity.Principal, appointmentID int64, status string) (*appointment.Appointment, error)
	AttachHistory(ctx context.Context, caller identity.Principal, clientID int64, entry appointment.HistoryEntry) (*appointment.Appointment, error)
	History(ctx context.Context, caller identity.Principal, clientID int64) ([]appointment.HistoryRecord, error)
}

type AvailabilityService interface {
	Set(ctx context.Context, practitionerID int64, doc availability.Document) error
	Get(ctx context.Context, practitionerID int64) (availability.Document, error)
	GetMany(ctx context.Context, practitionerIDs []int64) (map[int64]availability.Document, error)
}

type ProjectionService interface {
	ForCaller(ctx context.Context, caller identity.Principal) ([]projection.View, error)
	PractitionerAppointments(ctx context.Context, caller identity.Principal) ([]projection.View, error)
	AllAppointments(ctx context.Context) ([]projection.View, error)
	UniqueClients(ctx context.Context, caller identity.Principal) ([]projection.ClientView, error)
	Summary(ctx context.Context) (projection.Summary, error)
	Search(ctx context.Context, query string) (*identity.Directory, error)
	RenderAppointment(a appointment.Appointment) projection.View
	FormatLocal(t time.Time) string
}

type JobService interface {
	DailyReminders(ctx context.Context, now time.Time) (int, error)
	MonthlyReports(ctx context.Context, now time.Time) (int, error)
	RequestExport(ctx context.Context, kind jobs.ExportKind, clientID int64, requestedBy string) (*redisclient.Task, error)
	Task(ctx context.Context, id string) (*redisclient.Task, error)
}

type RouterConfig struct {
	Identity     IdentityService
	Appointments AppointmentService
	Availability AvailabilityService
	Projection   ProjectionService
	Jobs         JobService
	Health       *HealthHandler

	Logger         *logging.Logger
	HTTPMetrics    *metrics.HTTPMetrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	JobToken       string
}

type handler struct {
	identity     IdentityService
	appointments AppointmentService
	availability AvailabilityService
	projection   ProjectionService
	jobs         JobService
	logger       *logging.Logger
	now          func() time.Time
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	h := &handler{
		identity:     cfg.Identity,
		appointments: cfg.Appointments,
		availability: cfg.Availability,
		projection:   cfg.Projection,
		jobs:         cfg.Jobs,
		logger:       logger,
		now:          time.Now,
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(Metrics(cfg.HTTPMetrics))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Public endpoints
	r.Post("/login", h.login)
	r.Post("/register/practitioner", h.registerPractitioner)
	r.Post("/register/client", h.registerClient)
	r.Get("/practitioners", h.listPractitioners)
	r.Get("/practitioners/search", h.searchPractitioners)
	r.Get("/practitioners/specializations", h.specializations)

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Identity, logger))

		r.Get("/appointments", h.listAppointments)
		r.With(RequireRole(logger, identity.RoleClient)).Post("/appointments/book", h.book)
		r.With(RequireRole(logger, identity.RoleClient)).Patch("/appointments/cancel/{id}", h.cancel)

		r.Route("/doctor", func(r chi.Router) {
			r.Use(RequireRole(logger, identity.RolePractitioner))
			r.Get("/appointments", h.practitionerAppointments)
			r.Put("/appointments/{id}/status", h.setStatus)
			r.Get("/patients", h.practitionerClients)
			r.Get("/patient/{id}/history", h.clientHistory)
			r.Post("/patient/{id}/history", h.attachHistory)
			r.Get("/availability", h.getAvailability)
			r.Put("/availability", h.putAvailability)
		})

		r.Route("/client", func(r chi.Router) {
			r.Use(RequireRole(logger, identity.RoleClient))
			r.Get("/profile", h.clientProfile)
			r.Put("/profile", h.updateClientProfile)
			r.Post("/export-csv", h.requestClientExport)
			r.Get("/export-csv/{taskID}", h.clientExportStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(logger, identity.RoleAdmin))
			r.Get("/summary", h.adminSummary)
			r.Get("/appointments", h.adminAppointments)
			r.Get("/search", h.adminSearch)
			r.Post("/practitioners", h.adminCreatePractitioner)
			r.Put("/practitioners/{id}", h.adminUpdatePractitioner)
			r.Delete("/practitioners/{id}", h.adminDeactivatePractitioner)
			r.Post("/clients", h.adminCreateClient)
			r.Put("/clients/{id}", h.adminUpdateClient)
			r.Delete("/clients/{id}", h.adminDeactivateClient)
			r.Post("/export-csv", h.requestSystemExport)
			r.Get("/export-csv/{taskID}", h.systemExportStatus)
		})
	})

	// Scheduler-triggered jobs
	r.Route("/jobs", func(r chi.Router) {
		r.Use(JobToken(cfg.JobToken, logger))
		r.Post("/daily-reminder", h.runDailyReminder)
		r.Post("/monthly-report", h.runMonthlyReport)
	})

	return r
}
