package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/db"
)

var ErrPractitionerNotFound = apperr.NotFound("practitioner_not_found", "practitioner not found")

type Store interface {
	Load(ctx context.Context, practitionerID int64) (string, error)
	LoadMany(ctx context.Context, practitionerIDs []int64) (map[int64]string, error)
	Save(ctx context.Context, practitionerID int64, raw string) error
}

type PgStore struct {
	q db.DBTX
}

func NewPgStore(q db.DBTX) *PgStore {
	return &PgStore{q: q}
}

func (s *PgStore) Load(ctx context.Context, practitionerID int64) (string, error) {
	var raw string
	err := s.q.QueryRow(ctx, `SELECT availability FROM practitioner_profiles WHERE id = $1`, practitionerID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPractitionerNotFound
		}
		return "", fmt.Errorf("load availability: %w", err)
	}
	return raw, nil
}

func (s *PgStore) LoadMany(ctx context.Context, practitionerIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(practitionerIDs))
	if len(practitionerIDs) == 0 {
		return out, nil
	}
	rows, err := s.q.Query(ctx, `SELECT id, availability FROM practitioner_profiles WHERE id = ANY($1)`, practitionerIDs)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		out[id] = raw
	}
	return out, rows.Err()
}

func (s *PgStore) Save(ctx context.Context, practitionerID int64, raw string) error {
	tag, err := s.q.Exec(ctx, `UPDATE practitioner_profiles SET availability = $2 WHERE id = $1`, practitionerID, raw)
	if err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}
