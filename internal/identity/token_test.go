package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30*time.Minute)
	tok, err := issuer.Issue(&Account{ID: 42, Email: "a@b.test", Role: RoleClient})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), tok.ExpiresAt, 5*time.Second)

	p, err := issuer.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.AccountID)
	assert.True(t, p.Is(RoleClient))
	assert.False(t, p.Is(RoleAdmin))
}

func TestTokenExpires(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30*time.Minute)
	tok, err := issuer.Issue(&Account{ID: 1, Email: "a@b.test", Role: RoleAdmin})
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = issuer.Verify(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := NewTokenIssuer("one", time.Minute).Issue(&Account{ID: 1, Role: RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Minute).Verify(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func signClaims(t *testing.T, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	raw := signClaims(t, Claims{
		Email: "a@b.test",
		Role:  Role("superuser"),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	_, err := NewTokenIssuer("secret", time.Minute).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingExpiryAndBadSubject(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)

	noExp := signClaims(t, Claims{Role: RoleClient, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}})
	_, err := issuer.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badSub := signClaims(t, Claims{Role: RoleClient, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	_, err = issuer.Verify(badSub)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Practitioner ")
	require.NoError(t, err)
	assert.Equal(t, RolePractitioner, r)

	_, err = ParseRole("doctor")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
