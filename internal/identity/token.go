package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

const TokenType = "bearer"

type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Token is the login response.
type Token struct {
	AccessToken string
	TokenType   string
	Role        Role
	ExpiresAt   time.Time
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(acct *Account) (*Token, error) {
	if len(t.secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		Email: acct.Email,
		Role:  acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(acct.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: TokenType, Role: acct.Role, ExpiresAt: expires}, nil
}

// Verify parses a bearer token and returns the caller. The role claim must be one
// of the known roles and the subject must be a numeric account id.
func (t *TokenIssuer) Verify(raw string) (Principal, error) {
	if len(t.secret) == 0 || raw == "" {
		return Principal{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, apperr.Wrap(ErrInvalidToken, err)
	}

	if !claims.Role.Valid() {
		return Principal{}, apperr.Withf(ErrInvalidToken, "token carries unknown role %q", claims.Role)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, apperr.Withf(ErrInvalidToken, "token subject is not an account id")
	}

	return Principal{AccountID: id, Email: claims.Email, Role: claims.Role}, nil
}
