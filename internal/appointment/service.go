package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventStatusChanged        = "APPOINTMENT_STATUS_CHANGED"
	EventHistoryAttached      = "APPOINTMENT_HISTORY_ATTACHED"
)

var tracer = otel.Tracer("clinic.internal.appointment")

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	strict  bool
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		strict:  cfg.StrictStatusTransitions,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// BookRequest is a client's request for one slot.
type BookRequest struct {
	PractitionerID  int64
	AppointmentDate string
	Notes           string
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	}
	span.End()
}

// Book creates a scheduled appointment for the calling client.
//
// Checks run in a fixed order: caller is a client, practitioner exists,
// timestamp parses, slot is free (any status blocks it), slot is not in the
// past. The Redis lock serializes attempts on one slot; the unique index on
// (practitioner_id, appointment_date) is the authoritative guard, so an
// unreachable Redis falls back to the index alone.
func (s *Service) Book(ctx context.Context, caller identity.Principal, req BookRequest) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Book")
	span.SetAttributes(attribute.Int64("clinic.practitioner_id", req.PractitionerID))
	start := time.Now()
	defer func() {
		s.metrics.ObserveBooking(outcome(err), time.Since(start).Seconds())
		finishSpan(span, err)
	}()

	if caller.Role != identity.RoleClient {
		return nil, ErrNotClient
	}
	clientID, err := s.repo.GetClientIDByAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.PractitionerExists(ctx, req.PractitionerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPractitionerNotFound
	}

	at, err := NormalizeInstant(req.AppointmentDate)
	if err != nil {
		return nil, err
	}

	attempt := func(lockCtx context.Context) error {
		existing, err := s.repo.FindAtInstant(lockCtx, req.PractitionerID, at)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		if at.Before(s.now().UTC()) {
			return ErrPastBooking
		}

		created, err := s.repo.Create(lockCtx, Appointment{
			PractitionerID:  req.PractitionerID,
			ClientID:        clientID,
			AppointmentDate: at,
			Status:          StatusScheduled,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}
		appt = created
		return nil
	}

	err = s.locker.WithSlotLock(ctx, req.PractitionerID, at, attempt)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		s.logger.Warn("slot lock unavailable, booking under the unique index only",
			"practitioner_id", req.PractitionerID,
			"error", err,
		)
		err = attempt(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"practitioner_id":  appt.PractitionerID,
		"client_id":        appt.ClientID,
		"appointment_date": appt.AppointmentDate,
	})
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"practitioner_id", appt.PractitionerID,
		"client_id", appt.ClientID,
		"appointment_date", appt.AppointmentDate,
	)
	return appt, nil
}

// Cancel lets a client cancel their own scheduled, future appointment.
// Only the status changes.
func (s *Service) Cancel(ctx context.Context, caller identity.Principal, appointmentID int64) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Cancel")
	span.SetAttributes(attribute.Int64("clinic.appointment_id", appointmentID))
	defer func() {
		s.metrics.ObserveCancel(outcome(err))
		finishSpan(span, err)
	}()

	if caller.Role != identity.RoleClient {
		return nil, ErrNotClient
	}
	clientID, err := s.repo.GetClientIDByAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}

	err = s.repo.InTx(ctx, func(tx Repository) error {
		current, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.ClientID != clientID {
			return ErrAppointmentNotFound
		}
		switch current.Status {
		case StatusCancelled:
			return ErrAlreadyCancelled
		case StatusScheduled:
		default:
			return ErrNotScheduled
		}
		if current.AppointmentDate.Before(s.now().UTC()) {
			return ErrPastCancel
		}

		appt, err = tx.UpdateStatus(ctx, appointmentID, StatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{"client_id": clientID})
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "client_id", clientID)
	return appt, nil
}

// SetStatus applies a practitioner's status update to one of their appointments.
// Any of the three statuses is accepted as a target. With strict transitions
// enabled, terminal appointments cannot move to another status.
func (s *Service) SetStatus(ctx context.Context, caller identity.Principal, appointmentID int64, newStatus string) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.SetStatus")
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", appointmentID),
		attribute.String("clinic.status", newStatus),
	)
	to, parseErr := ParseStatus(newStatus)
	defer func() {
		label := string(to)
		if label == "" {
			label = "invalid"
		}
		s.metrics.ObserveStatusChange(label, outcome(err))
		finishSpan(span, err)
	}()

	practitionerID, err := s.practitionerID(ctx, caller)
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}

	var from Status
	err = s.repo.InTx(ctx, func(tx Repository) error {
		current, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.PractitionerID != practitionerID {
			return ErrAppointmentNotFound
		}
		from = current.Status
		if s.strict && from.Terminal() && from != to {
			return apperr.Withf(ErrInvalidTransition, "cannot move a %s appointment to %s", from, to)
		}
		if from == to {
			appt = current
			return nil
		}

		appt, err = tx.UpdateStatus(ctx, appointmentID, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	if from != to {
		s.logEvent(ctx, appt.ID, EventStatusChanged, map[string]any{"from": from, "to": to})
		s.logger.Info("appointment status changed", "appointment_id", appt.ID, "from", from, "to", to)
	}
	return appt, nil
}

func (s *Service) practitionerID(ctx context.Context, caller identity.Principal) (int64, error) {
	if caller.Role != identity.RolePractitioner {
		return 0, ErrNotPractitioner
	}
	return s.repo.GetPractitionerIDByAccount(ctx, caller.AccountID)
}

// AttachHistory stores a structured entry as the notes of the latest appointment
// between the calling practitioner and the client. The previous notes are replaced.
func (s *Service) AttachHistory(ctx context.Context, caller identity.Principal, clientID int64, entry HistoryEntry) (*Appointment, error) {
	practitionerID, err := s.practitionerID(ctx, caller)
	if err != nil {
		return nil, err
	}
	entry.Diagnosis = strings.TrimSpace(entry.Diagnosis)
	entry.Treatment = strings.TrimSpace(entry.Treatment)
	entry.Prescriptions = strings.TrimSpace(entry.Prescriptions)
	if entry == (HistoryEntry{}) {
		return nil, apperr.InvalidInput("empty_history", "diagnosis, treatment or prescriptions is required")
	}

	latest, err := s.repo.LatestForPair(ctx, practitionerID, clientID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.repo.UpdateNotes(ctx, latest.ID, string(raw)); err != nil {
		return nil, err
	}
	latest.Notes = string(raw)

	s.logEvent(ctx, latest.ID, EventHistoryAttached, map[string]any{"client_id": clientID})
	return latest, nil
}

// History returns every visit between the calling practitioner and the client.
func (s *Service) History(ctx context.Context, caller identity.Principal, clientID int64) ([]HistoryRecord, error) {
	practitionerID, err := s.practitionerID(ctx, caller)
	if err != nil {
		return nil, err
	}

	// An unknown client simply has no history with this practitioner.
	appts, err := s.repo.ListForPair(ctx, practitionerID, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryRecord, 0, len(appts))
	for _, a := range appts {
		out = append(out, toHistoryRecord(a))
	}
	return out, nil
}

// ParseNotes returns the structured entry held in notes, or nil for free text.
func ParseNotes(notes string) *HistoryEntry {
	trimmed := strings.TrimSpace(notes)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var entry HistoryEntry
	if err := json.Unmarshal([]byte(trimmed), &entry); err != nil {
		return nil
	}
	return &entry
}

func toHistoryRecord(a Appointment) HistoryRecord {
	rec := HistoryRecord{
		AppointmentID:   a.ID,
		AppointmentDate: a.AppointmentDate,
		Status:          a.Status,
	}
	if entry := ParseNotes(a.Notes); entry != nil {
		rec.Entry = entry
	} else {
		rec.Notes = a.Notes
	}
	return rec
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}
