package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

const emailUniqueConstraint = "accounts_email_key"

type PgStore struct {
	pool db.Beginner
	q    db.DBTX
}

func NewPgStore(pool db.Beginner) *PgStore {
	return &PgStore{pool: pool, q: pool}
}

func (s *PgStore) InTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PgStore{pool: s.pool, q: tx})
	})
}

// Helpers

const accountColumns = `a.id, a.name, a.email, a.password_hash, a.role, a.is_active, a.created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

const practitionerColumns = accountColumns + `, p.id, p.account_id, p.specialization, p.bio`

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var pr Practitioner
	a, p := &pr.Account, &pr.Profile
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt,
		&p.ID, &p.AccountID, &p.Specialization, &p.Bio)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}
	return &pr, nil
}

const clientColumns = accountColumns + `, c.id, c.account_id, c.age, c.address, c.medical_history`

func scanClient(row pgx.Row) (*Client, error) {
	var cl Client
	a, c := &cl.Account, &cl.Profile
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt,
		&c.ID, &c.AccountID, &c.Age, &c.Address, &c.MedicalHistory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &cl, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func likePattern(q string) string {
	return "%" + q + "%"
}

// Accounts

func (s *PgStore) InsertAccount(ctx context.Context, a Account) (*Account, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO accounts AS a (name, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+accountColumns,
		a.Name, a.Email, a.PasswordHash, a.Role,
	)
	created, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err, emailUniqueConstraint) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return created, nil
}

func (s *PgStore) GetAccountByID(ctx context.Context, id int64) (*Account, error) {
	row := s.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id)
	return scanAccount(row)
}

func (s *PgStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE lower(a.email) = lower($1)`, email)
	return scanAccount(row)
}

func (s *PgStore) UpdateAccount(ctx context.Context, id int64, name, email, passwordHash *string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE accounts
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    password_hash = COALESCE($4, password_hash)
		WHERE id = $1
	`, id, name, email, passwordHash)
	if err != nil {
		if db.IsUniqueViolation(err, emailUniqueConstraint) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PgStore) SetAccountActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.q.Exec(ctx, `UPDATE accounts SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// membershipLockKey is the advisory lock taken around the ceiling check.
const membershipLockKey int64 = 0x636c696e6963 // "clinic"

func (s *PgStore) LockMembership(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, membershipLockKey); err != nil {
		return fmt.Errorf("lock membership: %w", err)
	}
	return nil
}

func (s *PgStore) CountActiveMembers(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `SELECT count(*) FROM accounts WHERE is_active AND role <> 'admin'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active accounts: %w", err)
	}
	return n, nil
}

func (s *PgStore) DeactivateOldestMembers(ctx context.Context, n int) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE accounts SET is_active = FALSE
		WHERE id IN (
			SELECT id FROM accounts
			WHERE is_active AND role <> 'admin'
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE
		)
	`, n)
	if err != nil {
		return 0, fmt.Errorf("deactivate oldest accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) SearchAccounts(ctx context.Context, query string) ([]Account, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts a
		WHERE a.name ILIKE $1
		ORDER BY a.name, a.id
	`, likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return collect(rows, scanAccount)
}

func (s *PgStore) CountActiveByRole(ctx context.Context) (RoleCounts, error) {
	var c RoleCounts
	err := s.q.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE role = 'practitioner'),
			count(*) FILTER (WHERE role = 'client'),
			count(*) FILTER (WHERE role = 'admin')
		FROM accounts WHERE is_active
	`).Scan(&c.Practitioners, &c.Clients, &c.Admins)
	if err != nil {
		return RoleCounts{}, fmt.Errorf("count accounts by role: %w", err)
	}
	return c, nil
}

// Practitioners

func (s *PgStore) InsertPractitionerProfile(ctx context.Context, p PractitionerProfile) (*PractitionerProfile, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO practitioner_profiles (account_id, specialization, bio)
		VALUES ($1, $2, $3)
		RETURNING id
	`, p.AccountID, p.Specialization, p.Bio).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("insert practitioner profile: %w", err)
	}
	return &p, nil
}

const practitionerFrom = ` FROM practitioner_profiles p JOIN accounts a ON a.id = p.account_id`

func (s *PgStore) GetPractitionerByID(ctx context.Context, id int64) (*Practitioner, error) {
	row := s.q.QueryRow(ctx, `SELECT `+practitionerColumns+practitionerFrom+` WHERE p.id = $1`, id)
	return scanPractitioner(row)
}

func (s *PgStore) GetPractitionerByAccount(ctx context.Context, accountID int64) (*Practitioner, error) {
	row := s.q.QueryRow(ctx, `SELECT `+practitionerColumns+practitionerFrom+` WHERE p.account_id = $1`, accountID)
	return scanPractitioner(row)
}

func (s *PgStore) UpdatePractitionerProfile(ctx context.Context, id int64, specialization, bio *string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE practitioner_profiles
		SET specialization = COALESCE($2, specialization),
		    bio = COALESCE($3, bio)
		WHERE id = $1
	`, id, specialization, bio)
	if err != nil {
		return fmt.Errorf("update practitioner profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}

// ListPractitioners returns active practitioners whose name or specialization
// contains query. An empty query lists all of them.
func (s *PgStore) ListPractitioners(ctx context.Context, query string) ([]Practitioner, error) {
	rows, err := s.q.Query(ctx, `SELECT `+practitionerColumns+practitionerFrom+`
		WHERE a.is_active AND (a.name ILIKE $1 OR p.specialization ILIKE $1)
		ORDER BY a.name, p.id
	`, likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	return collect(rows, scanPractitioner)
}

func (s *PgStore) ListSpecializations(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, `
		SELECT DISTINCT p.specialization`+practitionerFrom+`
		WHERE a.is_active AND p.specialization <> ''
		ORDER BY p.specialization
	`)
	if err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var spec string
		if err := rows.Scan(&spec); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, rows.Err()
}

// Clients

func (s *PgStore) InsertClientProfile(ctx context.Context, c ClientProfile) (*ClientProfile, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO client_profiles (account_id, age, address, medical_history)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.AccountID, c.Age, c.Address, c.MedicalHistory).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("insert client profile: %w", err)
	}
	return &c, nil
}

const clientFrom = ` FROM client_profiles c JOIN accounts a ON a.id = c.account_id`

func (s *PgStore) GetClientByID(ctx context.Context, id int64) (*Client, error) {
	row := s.q.QueryRow(ctx, `SELECT `+clientColumns+clientFrom+` WHERE c.id = $1`, id)
	return scanClient(row)
}

func (s *PgStore) GetClientByAccount(ctx context.Context, accountID int64) (*Client, error) {
	row := s.q.QueryRow(ctx, `SELECT `+clientColumns+clientFrom+` WHERE c.account_id = $1`, accountID)
	return scanClient(row)
}

func (s *PgStore) UpdateClientProfile(ctx context.Context, id int64, age *int, address, medicalHistory *string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE client_profiles
		SET age = COALESCE($2, age),
		    address = COALESCE($3, address),
		    medical_history = COALESCE($4, medical_history)
		WHERE id = $1
	`, id, age, address, medicalHistory)
	if err != nil {
		return fmt.Errorf("update client profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (s *PgStore) ListClientsByName(ctx context.Context, query string) ([]Client, error) {
	rows, err := s.q.Query(ctx, `SELECT `+clientColumns+clientFrom+`
		WHERE a.name ILIKE $1
		ORDER BY a.name, c.id
	`, likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return collect(rows, scanClient)
}

var _ Store = (*PgStore)(nil)
