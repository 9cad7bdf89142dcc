package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{
		Username:   "admin",
		Password:   "SecurePassword123!",
		BcryptCost: bcrypt.MinCost, // keep the test fast
	})
	require.NoError(t, err)
	return a
}

func TestNewAuthenticatorValidation(t *testing.T) {
	_, err := NewAuthenticator(Config{Username: "", Password: "longenough"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewAuthenticator(Config{Username: "admin", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = NewAuthenticator(Config{
		Username:          "admin",
		Password:          "short",
		MinPasswordLength: 4,
		BcryptCost:        bcrypt.MinCost,
	})
	assert.NoError(t, err)
}

func TestCheck(t *testing.T) {
	a := newTestAuthenticator(t)

	assert.NoError(t, a.Check("admin", "SecurePassword123!"))
	assert.ErrorIs(t, a.Check("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, a.Check("intruder", "SecurePassword123!"), ErrInvalidCredentials)

	// A good login resets the failure counter.
	assert.NoError(t, a.Check("admin", "SecurePassword123!"))
}

func TestLockout(t *testing.T) {
	a, err := NewAuthenticator(Config{
		Username:        "admin",
		Password:        "SecurePassword123!",
		BcryptCost:      bcrypt.MinCost,
		MaxFailedLogins: 3,
		LockoutDuration: time.Hour,
	})
	require.NoError(t, err)

	current := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return current }

	assert.ErrorIs(t, a.Check("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, a.Check("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, a.Check("admin", "wrong"), ErrAccountLocked)
	assert.True(t, a.Locked())

	// Even the right password is rejected while locked.
	assert.ErrorIs(t, a.Check("admin", "SecurePassword123!"), ErrAccountLocked)

	// After the lockout window passes, logins work again.
	current = current.Add(time.Hour + time.Minute)
	assert.False(t, a.Locked())
	assert.NoError(t, a.Check("admin", "SecurePassword123!"))
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("abc", "abc"))
	assert.False(t, SecureCompare("abc", "abd"))
	assert.False(t, SecureCompare("abc", "abcd"))
}
