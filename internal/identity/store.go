package identity

import "context"

// Store contains all persistence needed by the identity service.
type Store interface {
	// InTx runs fn against a store bound to a single transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	InsertAccount(ctx context.Context, a Account) (*Account, error)
	InsertPractitionerProfile(ctx context.Context, p PractitionerProfile) (*PractitionerProfile, error)
	InsertClientProfile(ctx context.Context, c ClientProfile) (*ClientProfile, error)

	GetAccountByID(ctx context.Context, id int64) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateAccount(ctx context.Context, id int64, name, email, passwordHash *string) error
	SetAccountActive(ctx context.Context, id int64, active bool) error

	// Population ceiling. LockMembership serializes ceiling checks until the
	// surrounding transaction ends.
	LockMembership(ctx context.Context) error
	CountActiveMembers(ctx context.Context) (int, error)
	DeactivateOldestMembers(ctx context.Context, n int) (int64, error)

	GetPractitionerByID(ctx context.Context, id int64) (*Practitioner, error)
	GetPractitionerByAccount(ctx context.Context, accountID int64) (*Practitioner, error)
	UpdatePractitionerProfile(ctx context.Context, id int64, specialization, bio *string) error
	ListPractitioners(ctx context.Context, query string) ([]Practitioner, error)
	ListSpecializations(ctx context.Context) ([]string, error)

	GetClientByID(ctx context.Context, id int64) (*Client, error)
	GetClientByAccount(ctx context.Context, accountID int64) (*Client, error)
	UpdateClientProfile(ctx context.Context, id int64, age *int, address, medicalHistory *string) error
	ListClientsByName(ctx context.Context, query string) ([]Client, error)

	SearchAccounts(ctx context.Context, query string) ([]Account, error)
	CountActiveByRole(ctx context.Context) (RoleCounts, error)
}
