package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

const minPasswordLength = 6

type Service struct {
	store  Store
	hasher PasswordHasher
	tokens *TokenIssuer
	logger *logging.Logger

	// maxActive caps active practitioner and client accounts. When a new
	// registration would exceed it, the oldest active members are deactivated.
	// This is a soft capacity control: it silently locks out long-standing users
	// instead of rejecting the newcomer, and offers no security guarantee.
	maxActive int
}

func NewService(store Store, hasher PasswordHasher, tokens *TokenIssuer, maxActive int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		maxActive: maxActive,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateNewAccount(in *NewAccount) error {
	if !in.Role.Valid() {
		return apperr.Withf(ErrInvalidRole, "unknown role %q", in.Role)
	}
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return apperr.Withf(ErrInvalidAccount, "email %q is not valid", in.Email)
	}
	if in.Name == "" {
		return apperr.Withf(ErrInvalidAccount, "name is required")
	}
	if len(in.Password) < minPasswordLength {
		return apperr.Withf(ErrInvalidAccount, "password must be at least %d characters", minPasswordLength)
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 150) {
		return apperr.Withf(ErrInvalidAccount, "age %d is out of range", *in.Age)
	}
	return nil
}

// CreateAccount registers an account together with its role profile in one
// transaction, so a failure never leaves an account without a profile.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	if err := validateNewAccount(&in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var created *Account
	err = s.store.InTx(ctx, func(tx Store) error {
		if in.Role != RoleAdmin {
			if err := s.enforceCeiling(ctx, tx); err != nil {
				return err
			}
		}

		acct, err := tx.InsertAccount(ctx, Account{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: hash,
			Role:         in.Role,
		})
		if err != nil {
			return err
		}

		switch in.Role {
		case RolePractitioner:
			_, err = tx.InsertPractitionerProfile(ctx, PractitionerProfile{
				AccountID:      acct.ID,
				Specialization: strings.TrimSpace(in.Specialization),
				Bio:            in.Bio,
			})
		case RoleClient:
			_, err = tx.InsertClientProfile(ctx, ClientProfile{
				AccountID:      acct.ID,
				Age:            in.Age,
				Address:        in.Address,
				MedicalHistory: in.MedicalHistory,
			})
		}
		if err != nil {
			return err
		}

		created = acct
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account created", "account_id", created.ID, "role", created.Role)
	return created, nil
}

func (s *Service) enforceCeiling(ctx context.Context, tx Store) error {
	if s.maxActive <= 0 {
		return nil
	}
	if err := tx.LockMembership(ctx); err != nil {
		return err
	}
	active, err := tx.CountActiveMembers(ctx)
	if err != nil {
		return err
	}
	excess := active - s.maxActive + 1
	if excess <= 0 {
		return nil
	}
	n, err := tx.DeactivateOldestMembers(ctx, excess)
	if err != nil {
		return err
	}
	s.logger.Warn("active account ceiling reached, deactivated oldest accounts",
		"ceiling", s.maxActive, "deactivated", n)
	return nil
}

// Authenticate checks credentials. Unknown email, wrong password and inactive
// accounts are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acct, err := s.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !s.hasher.Compare(acct.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !acct.IsActive {
		s.logger.Info("login rejected for inactive account", "account_id", acct.ID)
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	acct, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(acct)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tok, nil
}

// VerifyToken checks the signature and then the account, so a deactivated
// account loses access before its token expires.
func (s *Service) VerifyToken(ctx context.Context, raw string) (Principal, error) {
	p, err := s.tokens.Verify(raw)
	if err != nil {
		return Principal{}, err
	}
	acct, err := s.store.GetAccountByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Principal{}, apperr.Withf(ErrInvalidToken, "token subject no longer exists")
		}
		return Principal{}, fmt.Errorf("load token subject: %w", err)
	}
	if !acct.IsActive {
		return Principal{}, apperr.Withf(ErrInvalidToken, "account is deactivated")
	}
	return p, nil
}

// Deactivate blacklists an account. Its data is kept.
func (s *Service) Deactivate(ctx context.Context, accountID int64) error {
	if err := s.store.SetAccountActive(ctx, accountID, false); err != nil {
		return err
	}
	s.logger.Info("account deactivated", "account_id", accountID)
	return nil
}

func (s *Service) DeactivatePractitioner(ctx context.Context, practitionerID int64) error {
	pr, err := s.store.GetPractitionerByID(ctx, practitionerID)
	if err != nil {
		return err
	}
	return s.Deactivate(ctx, pr.Account.ID)
}

func (s *Service) DeactivateClient(ctx context.Context, clientID int64) error {
	cl, err := s.store.GetClientByID(ctx, clientID)
	if err != nil {
		return err
	}
	return s.Deactivate(ctx, cl.Account.ID)
}

func (s *Service) accountChanges(name, email, password *string) (*string, *string, *string, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, nil, nil, apperr.Withf(ErrInvalidAccount, "name cannot be empty")
		}
		name = &trimmed
	}
	if email != nil {
		normalized := normalizeEmail(*email)
		if _, err := mail.ParseAddress(normalized); err != nil {
			return nil, nil, nil, apperr.Withf(ErrInvalidAccount, "email %q is not valid", normalized)
		}
		email = &normalized
	}
	var hash *string
	if password != nil {
		if len(*password) < minPasswordLength {
			return nil, nil, nil, apperr.Withf(ErrInvalidAccount, "password must be at least %d characters", minPasswordLength)
		}
		h, err := s.hasher.Hash(*password)
		if err != nil {
			return nil, nil, nil, apperr.Internal(err)
		}
		hash = &h
	}
	return name, email, hash, nil
}

func (s *Service) UpdatePractitioner(ctx context.Context, practitionerID int64, upd PractitionerUpdate) (*Practitioner, error) {
	name, email, hash, err := s.accountChanges(upd.Name, upd.Email, upd.Password)
	if err != nil {
		return nil, err
	}

	var out *Practitioner
	err = s.store.InTx(ctx, func(tx Store) error {
		pr, err := tx.GetPractitionerByID(ctx, practitionerID)
		if err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, pr.Account.ID, name, email, hash); err != nil {
			return err
		}
		if err := tx.UpdatePractitionerProfile(ctx, pr.Profile.ID, upd.Specialization, upd.Bio); err != nil {
			return err
		}
		out, err = tx.GetPractitionerByID(ctx, practitionerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateClient(ctx context.Context, clientID int64, upd ClientUpdate) (*Client, error) {
	name, email, hash, err := s.accountChanges(upd.Name, upd.Email, upd.Password)
	if err != nil {
		return nil, err
	}
	if upd.Age != nil && (*upd.Age < 0 || *upd.Age > 150) {
		return nil, apperr.Withf(ErrInvalidAccount, "age %d is out of range", *upd.Age)
	}

	var out *Client
	err = s.store.InTx(ctx, func(tx Store) error {
		cl, err := tx.GetClientByID(ctx, clientID)
		if err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, cl.Account.ID, name, email, hash); err != nil {
			return err
		}
		if err := tx.UpdateClientProfile(ctx, cl.Profile.ID, upd.Age, upd.Address, upd.MedicalHistory); err != nil {
			return err
		}
		out, err = tx.GetClientByID(ctx, clientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Practitioner(ctx context.Context, id int64) (*Practitioner, error) {
	return s.store.GetPractitionerByID(ctx, id)
}

func (s *Service) PractitionerByAccount(ctx context.Context, accountID int64) (*Practitioner, error) {
	return s.store.GetPractitionerByAccount(ctx, accountID)
}

func (s *Service) Client(ctx context.Context, id int64) (*Client, error) {
	return s.store.GetClientByID(ctx, id)
}

// ClientByAccount returns the caller's client profile.
func (s *Service) ClientByAccount(ctx context.Context, accountID int64) (*Client, error) {
	return s.store.GetClientByAccount(ctx, accountID)
}

func (s *Service) ListPractitioners(ctx context.Context) ([]Practitioner, error) {
	return s.store.ListPractitioners(ctx, "")
}

func (s *Service) SearchPractitioners(ctx context.Context, query string) ([]Practitioner, error) {
	return s.store.ListPractitioners(ctx, strings.TrimSpace(query))
}

func (s *Service) Specializations(ctx context.Context) ([]string, error) {
	return s.store.ListSpecializations(ctx)
}

// SearchDirectory matches accounts, practitioners and clients by display name.
func (s *Service) SearchDirectory(ctx context.Context, query string) (*Directory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidInput("invalid_query", "search query is required")
	}

	var dir Directory
	var err error
	if dir.Accounts, err = s.store.SearchAccounts(ctx, query); err != nil {
		return nil, err
	}
	// Practitioner search also matches specialization; admin search is by name only.
	practitioners, err := s.store.ListPractitioners(ctx, query)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(query)
	for _, p := range practitioners {
		if strings.Contains(strings.ToLower(p.Account.Name), lower) {
			dir.Practitioners = append(dir.Practitioners, p)
		}
	}
	if dir.Clients, err = s.store.ListClientsByName(ctx, query); err != nil {
		return nil, err
	}
	return &dir, nil
}

func (s *Service) CountActive(ctx context.Context) (RoleCounts, error) {
	return s.store.CountActiveByRole(ctx)
}

// EnsureAdmin creates the bootstrap administrator if no account uses email yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	_, err = s.CreateAccount(ctx, NewAccount{
		Role:     RoleAdmin,
		Name:     "admin",
		Email:    email,
		Password: password,
	})
	if errors.Is(err, ErrDuplicateEmail) {
		return nil
	}
	return err
}
