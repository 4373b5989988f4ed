package identity

import "github.com/hackgods/clinic-booking/internal/apperr"

var (
	ErrDuplicateEmail       = apperr.Conflict("email_taken", "email already registered")
	ErrInvalidCredentials   = apperr.Unauthorized("invalid_credentials", "invalid email or password")
	ErrInvalidToken         = apperr.Unauthorized("invalid_token", "invalid or expired token")
	ErrInvalidRole          = apperr.InvalidInput("invalid_role", "unknown role")
	ErrInvalidAccount       = apperr.InvalidInput("invalid_account", "invalid account details")
	ErrAccountNotFound      = apperr.NotFound("account_not_found", "account not found")
	ErrPractitionerNotFound = apperr.NotFound("practitioner_not_found", "practitioner not found")
	ErrClientNotFound       = apperr.NotFound("client_not_found", "client not found")
)
