package identity

import (
	"strings"
	"time"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

// Role is the closed set of account roles. Tokens carrying anything else are rejected.
type Role string

const (
	RoleAdmin        Role = "admin"
	RolePractitioner Role = "practitioner"
	RoleClient       Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePractitioner, RoleClient:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", apperr.Withf(ErrInvalidRole, "unknown role %q", s)
	}
	return r, nil
}

type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

type PractitionerProfile struct {
	ID             int64
	AccountID      int64
	Specialization string
	Bio            string
}

type ClientProfile struct {
	ID             int64
	AccountID      int64
	Age            *int
	Address        string
	MedicalHistory string
}

// Practitioner is an account joined with its practitioner profile.
type Practitioner struct {
	Account Account
	Profile PractitionerProfile
}

// Client is an account joined with its client profile.
type Client struct {
	Account Account
	Profile ClientProfile
}

// Principal is the verified caller attached to a request.
type Principal struct {
	AccountID int64
	Email     string
	Role      Role
}

func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// NewAccount carries registration input. Profile fields apply to the matching role only.
type NewAccount struct {
	Role     Role
	Name     string
	Email    string
	Password string

	Specialization string
	Bio            string

	Age            *int
	Address        string
	MedicalHistory string
}

// PractitionerUpdate is a partial update; nil fields are left unchanged.
type PractitionerUpdate struct {
	Name           *string
	Email          *string
	Password       *string
	Specialization *string
	Bio            *string
}

// ClientUpdate is a partial update; nil fields are left unchanged.
type ClientUpdate struct {
	Name           *string
	Email          *string
	Password       *string
	Age            *int
	Address        *string
	MedicalHistory *string
}

// Directory is the admin search result over accounts and profiles.
type Directory struct {
	Accounts      []Account
	Practitioners []Practitioner
	Clients       []Client
}

// RoleCounts are active account totals per role.
type RoleCounts struct {
	Practitioners int
	Clients       int
	Admins        int
}
