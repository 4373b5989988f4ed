// Package jobs holds the background work that runs outside the request path:
// daily reminders, monthly practitioner reports and CSV exports.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

const (
	JobDailyReminder = "daily_reminder"
	JobMonthlyReport = "monthly_report"
	JobExport        = "export"
)

var (
	ErrNoRecords    = apperr.NotFound("no_records", "No treatment records found")
	ErrTaskNotFound = apperr.NotFound("task_not_found", "export task not found")
)

// Appointments is the read side the jobs need.
type Appointments interface {
	ListDetails(ctx context.Context, f appointment.Filter) ([]appointment.Detail, error)
}

// Clients resolves export recipients.
type Clients interface {
	Client(ctx context.Context, id int64) (*identity.Client, error)
}

// Tasks records export progress. *redisclient.TaskStore satisfies it.
type Tasks interface {
	Create(ctx context.Context, id, kind, requestedBy string) (*redisclient.Task, error)
	SetStatus(ctx context.Context, id string, status redisclient.TaskStatus, cause error) error
	Get(ctx context.Context, id string) (*redisclient.Task, error)
}

type Runner struct {
	appts   Appointments
	clients Clients
	tasks   Tasks
	queue   Queue
	sender  notify.EmailSender
	loc     *time.Location
	metrics *metrics.JobMetrics
	logger  *logging.Logger
}

type Deps struct {
	Appointments Appointments
	Clients      Clients
	Tasks        Tasks
	Queue        Queue
	Sender       notify.EmailSender
	Location     *time.Location
	Metrics      *metrics.JobMetrics
}

func NewRunner(deps Deps, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		appts:   deps.Appointments,
		clients: deps.Clients,
		tasks:   deps.Tasks,
		queue:   deps.Queue,
		sender:  deps.Sender,
		loc:     loc,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// dayBounds returns the UTC window of the display-zone day containing now.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// monthBounds returns the UTC window of the display-zone month containing now.
func monthBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 1, 0).UTC()
}

func (r *Runner) localTime(t time.Time) string {
	return t.In(r.loc).Format("2006-01-02 15:04 MST")
}

func (r *Runner) send(ctx context.Context, job string, msg notify.EmailMessage) error {
	err := r.sender.Send(ctx, msg)
	r.metrics.ObserveEmail(job, err)
	return err
}

// DailyReminders emails every client holding a scheduled appointment on the
// display-zone day of now. It returns how many reminders went out.
func (r *Runner) DailyReminders(ctx context.Context, now time.Time) (sent int, err error) {
	defer func() { r.metrics.ObserveRun(JobDailyReminder, err) }()

	from, to := dayBounds(now, r.loc)
	details, err := r.appts.ListDetails(ctx, appointment.Filter{
		Status: appointment.StatusScheduled,
		From:   from,
		To:     to,
	})
	if err != nil {
		return 0, fmt.Errorf("list appointments for reminders: %w", err)
	}

	var failures []error
	for _, d := range details {
		msg := notify.EmailMessage{
			To:      d.ClientEmail,
			ToName:  d.ClientName,
			Subject: "Appointment Reminder",
			Body: fmt.Sprintf("Hello %s! You have an appointment with Dr. %s today at %s.",
				d.ClientName, d.PractitionerName, r.localTime(d.AppointmentDate)),
		}
		if err := r.send(ctx, JobDailyReminder, msg); err != nil {
			r.logger.Error("reminder email failed", "appointment_id", d.ID, "error", err)
			failures = append(failures, err)
			continue
		}
		sent++
	}

	r.logger.Info("daily reminders sent", "sent", sent, "failed", len(failures), "day_start", from)
	if len(failures) > 0 && sent == 0 {
		return 0, errors.Join(failures...)
	}
	return sent, nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<h3>Monthly Activity Report</h3>
<p>{{.Month}}</p>
<table border="1" cellpadding="5">
<tr><th>Patient</th><th>Date</th><th>Status</th><th>Notes</th></tr>
{{range .Rows}}<tr><td>{{.Client}}</td><td>{{.Date}}</td><td>{{.Status}}</td><td>{{.Notes}}</td></tr>
{{end}}</table>
`))

type reportRow struct {
	Client string
	Date   string
	Status string
	Notes  string
}

func (r *Runner) renderReport(month string, details []appointment.Detail) (string, error) {
	rows := make([]reportRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, reportRow{
			Client: d.ClientName,
			Date:   r.localTime(d.AppointmentDate),
			Status: string(d.Status),
			Notes:  d.Notes,
		})
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, struct {
		Month string
		Rows  []reportRow
	}{month, rows}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MonthlyReports emails each practitioner an HTML table of their appointments
// in the display-zone month containing now. Practitioners without appointments
// get nothing. It returns how many reports went out.
func (r *Runner) MonthlyReports(ctx context.Context, now time.Time) (sent int, err error) {
	defer func() { r.metrics.ObserveRun(JobMonthlyReport, err) }()

	from, to := monthBounds(now, r.loc)
	details, err := r.appts.ListDetails(ctx, appointment.Filter{From: from, To: to})
	if err != nil {
		return 0, fmt.Errorf("list appointments for reports: %w", err)
	}

	var order []int64
	byPractitioner := make(map[int64][]appointment.Detail)
	for _, d := range details {
		if _, ok := byPractitioner[d.PractitionerID]; !ok {
			order = append(order, d.PractitionerID)
		}
		byPractitioner[d.PractitionerID] = append(byPractitioner[d.PractitionerID], d)
	}

	month := from.In(r.loc).Format("January 2006")
	var failures []error
	for _, id := range order {
		rows := byPractitioner[id]
		html, err := r.renderReport(month, rows)
		if err != nil {
			return sent, fmt.Errorf("render report: %w", err)
		}
		msg := notify.EmailMessage{
			To:      rows[0].PractitionerEmail,
			ToName:  rows[0].PractitionerName,
			Subject: "Monthly Activity Report",
			HTML:    html,
		}
		if err := r.send(ctx, JobMonthlyReport, msg); err != nil {
			r.logger.Error("monthly report email failed", "practitioner_id", id, "error", err)
			failures = append(failures, err)
			continue
		}
		sent++
	}

	r.logger.Info("monthly reports sent", "sent", sent, "failed", len(failures), "month", month)
	if len(failures) > 0 && sent == 0 {
		return 0, errors.Join(failures...)
	}
	return sent, nil
}

// RequestExport records a pending task and queues it for a consumer.
// clientID is only used for client history exports.
func (r *Runner) RequestExport(ctx context.Context, kind ExportKind, clientID int64, requestedBy string) (*redisclient.Task, error) {
	taskID := uuid.NewString()
	task, err := r.tasks.Create(ctx, taskID, string(kind), requestedBy)
	if err != nil {
		return nil, fmt.Errorf("create export task: %w", err)
	}

	body, err := encodePayload(exportPayload{
		TaskID:      taskID,
		Kind:        kind,
		ClientID:    clientID,
		RequestedBy: requestedBy,
	})
	if err == nil {
		err = r.queue.Send(ctx, body)
	}
	if err != nil {
		if setErr := r.tasks.SetStatus(ctx, taskID, redisclient.TaskFailed, err); setErr != nil {
			r.logger.Error("failed to mark export task failed", "task_id", taskID, "error", setErr)
		}
		return nil, fmt.Errorf("enqueue export task: %w", err)
	}

	r.logger.Info("export task queued", "task_id", taskID, "kind", kind)
	return task, nil
}

// Task returns the record of an export task.
func (r *Runner) Task(ctx context.Context, id string) (*redisclient.Task, error) {
	task, err := r.tasks.Get(ctx, id)
	if errors.Is(err, redisclient.ErrTaskNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}
