package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

const slotUniqueConstraint = "appointments_practitioner_slot_key"

type PgRepository struct {
	pool db.Beginner
	q    db.DBTX
}

func NewPgRepository(pool db.Beginner) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{pool: r.pool, q: tx})
	})
}

// Helpers

const appointmentColumns = `id, practitioner_id, client_id, appointment_date, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.ClientID,
		&a.AppointmentDate,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.AppointmentDate = a.AppointmentDate.UTC()
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Interface methods

func (r *PgRepository) GetClientIDByAccount(ctx context.Context, accountID int64) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		SELECT c.id FROM client_profiles c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.account_id = $1 AND a.role = 'client'
	`, accountID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotClient
		}
		return 0, fmt.Errorf("load client profile: %w", err)
	}
	return id, nil
}

func (r *PgRepository) GetPractitionerIDByAccount(ctx context.Context, accountID int64) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM practitioner_profiles WHERE account_id = $1`, accountID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotPractitioner
		}
		return 0, fmt.Errorf("load practitioner profile: %w", err)
	}
	return id, nil
}

func (r *PgRepository) PractitionerExists(ctx context.Context, practitionerID int64) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM practitioner_profiles WHERE id = $1)`, practitionerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check practitioner: %w", err)
	}
	return ok, nil
}

// FindAtInstant returns any appointment for the practitioner at exactly at,
// whatever its status.
func (r *PgRepository) FindAtInstant(ctx context.Context, practitionerID int64, at time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1 AND appointment_date = $2
	`, practitionerID, at.UTC())
	return scanAppointment(row)
}

func (r *PgRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (practitioner_id, client_id, appointment_date, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+appointmentColumns,
		a.PractitionerID, a.ClientID, a.AppointmentDate.UTC(), a.Status, a.Notes,
	)
	created, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, slotUniqueConstraint) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id int64, to Status) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, to,
	)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateNotes(ctx context.Context, id int64, notes string) error {
	tag, err := r.q.Exec(ctx, `UPDATE appointments SET notes = $2, updated_at = now() WHERE id = $1`, id, notes)
	if err != nil {
		return fmt.Errorf("update notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) LatestForPair(ctx context.Context, practitionerID, clientID int64) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1 AND client_id = $2
		ORDER BY appointment_date DESC, id DESC
		LIMIT 1
	`, practitionerID, clientID)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrNoSharedAppointment
	}
	return a, err
}

func (r *PgRepository) ListForPair(ctx context.Context, practitionerID, clientID int64) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1 AND client_id = $2
		ORDER BY appointment_date, id
	`, practitionerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments for pair: %w", err)
	}
	return scanAppointments(rows)
}

const detailSelect = `
	SELECT ap.id, ap.practitioner_id, ap.client_id, ap.appointment_date, ap.status, ap.notes,
	       ap.created_at, ap.updated_at,
	       pa.name, pa.email, p.specialization,
	       ca.name, ca.email
	FROM appointments ap
	JOIN practitioner_profiles p ON p.id = ap.practitioner_id
	JOIN accounts pa ON pa.id = p.account_id
	JOIN client_profiles c ON c.id = ap.client_id
	JOIN accounts ca ON ca.id = c.account_id`

// buildDetailQuery renders the filter into a WHERE clause with positional args.
func buildDetailQuery(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PractitionerID != 0 {
		add("ap.practitioner_id = $%d", f.PractitionerID)
	}
	if f.ClientID != 0 {
		add("ap.client_id = $%d", f.ClientID)
	}
	if f.Status != "" {
		add("ap.status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("ap.appointment_date >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("ap.appointment_date < $%d", f.To.UTC())
	}

	var sb strings.Builder
	sb.WriteString(detailSelect)
	if len(conds) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if f.NewestFirst {
		sb.WriteString("\n\tORDER BY ap.appointment_date DESC, ap.id DESC")
	} else {
		sb.WriteString("\n\tORDER BY ap.appointment_date, ap.id")
	}
	return sb.String(), args
}

func (r *PgRepository) ListDetails(ctx context.Context, f Filter) ([]Detail, error) {
	query, args := buildDetailQuery(f)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(
			&d.ID, &d.PractitionerID, &d.ClientID, &d.AppointmentDate, &d.Status, &d.Notes,
			&d.CreatedAt, &d.UpdatedAt,
			&d.PractitionerName, &d.PractitionerEmail, &d.Specialization,
			&d.ClientName, &d.ClientEmail,
		); err != nil {
			return nil, err
		}
		d.AppointmentDate = d.AppointmentDate.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PgRepository) ListClientsOf(ctx context.Context, practitionerID int64) ([]ClientCard, error) {
	rows, err := r.q.Query(ctx, `
		SELECT c.id, a.name, a.email, c.age, c.address, c.medical_history
		FROM client_profiles c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.id IN (SELECT DISTINCT client_id FROM appointments WHERE practitioner_id = $1)
		ORDER BY a.name, c.id
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list clients of practitioner: %w", err)
	}
	defer rows.Close()

	var out []ClientCard
	for rows.Next() {
		var c ClientCard
		if err := rows.Scan(&c.ClientID, &c.Name, &c.Email, &c.Age, &c.Address, &c.MedicalHistory); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PgRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM appointments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.EventType, ev.AppointmentID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

var _ Repository = (*PgRepository)(nil)
