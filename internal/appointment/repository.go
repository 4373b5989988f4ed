package appointment

import (
	"context"
	"time"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// InTx runs fn against a repository bound to one transaction.
	InTx(ctx context.Context, fn func(Repository) error) error

	// Parties
	GetClientIDByAccount(ctx context.Context, accountID int64) (int64, error)
	GetPractitionerIDByAccount(ctx context.Context, accountID int64) (int64, error)
	PractitionerExists(ctx context.Context, practitionerID int64) (bool, error)

	// For conflict checks
	FindAtInstant(ctx context.Context, practitionerID int64, at time.Time) (*Appointment, error)

	// Creation and updates
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	GetForUpdate(ctx context.Context, id int64) (*Appointment, error)
	UpdateStatus(ctx context.Context, id int64, to Status) (*Appointment, error)
	UpdateNotes(ctx context.Context, id int64, notes string) error

	// History between one practitioner and one client
	LatestForPair(ctx context.Context, practitionerID, clientID int64) (*Appointment, error)
	ListForPair(ctx context.Context, practitionerID, clientID int64) ([]Appointment, error)

	// Read views
	ListDetails(ctx context.Context, f Filter) ([]Detail, error)
	ListClientsOf(ctx context.Context, practitionerID int64) ([]ClientCard, error)
	CountAll(ctx context.Context) (int, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
