package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{"id", "practitioner_id", "client_id", "appointment_date", "status", "notes", "created_at", "updated_at"}

func TestPgRepositoryCreateMapsUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(3), int64(1), at, StatusScheduled, "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_practitioner_slot_key"})

	_, err = NewPgRepository(mock).Create(context.Background(), Appointment{
		PractitionerID: 3, ClientID: 1, AppointmentDate: at, Status: StatusScheduled,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryCreateReturnsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(int64(9), int64(3), int64(1), at, StatusScheduled, "hello", now, now))

	got, err := NewPgRepository(mock).Create(context.Background(), Appointment{
		PractitionerID: 3, ClientID: 1, AppointmentDate: at, Status: StatusScheduled, Notes: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
	assert.Equal(t, StatusScheduled, got.Status)
}

func TestPgRepositoryFindAtInstantNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE practitioner_id = \\$1 AND appointment_date = \\$2").
		WithArgs(int64(3), at).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err = NewPgRepository(mock).FindAtInstant(context.Background(), 3, at)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgRepositoryCancelInTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(int64(9), int64(3), int64(1), at, StatusScheduled, "", now, now))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(9), StatusCancelled).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(int64(9), int64(3), int64(1), at, StatusCancelled, "", now, now))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	var out *Appointment
	err = repo.InTx(context.Background(), func(tx Repository) error {
		if _, err := tx.GetForUpdate(context.Background(), 9); err != nil {
			return err
		}
		out, err = tx.UpdateStatus(context.Background(), 9, StatusCancelled)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryLatestForPairMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ORDER BY appointment_date DESC").
		WithArgs(int64(3), int64(1)).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err = NewPgRepository(mock).LatestForPair(context.Background(), 3, 1)
	assert.ErrorIs(t, err, ErrNoSharedAppointment)
}

func TestBuildDetailQuery(t *testing.T) {
	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query, args := buildDetailQuery(Filter{PractitionerID: 3, Status: StatusScheduled, From: from, To: to, NewestFirst: true})
	assert.Contains(t, query, "ap.practitioner_id = $1 AND ap.status = $2 AND ap.appointment_date >= $3 AND ap.appointment_date < $4")
	assert.Contains(t, query, "ORDER BY ap.appointment_date DESC")
	assert.Equal(t, []any{int64(3), StatusScheduled, from, to}, args)

	query, args = buildDetailQuery(Filter{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}
