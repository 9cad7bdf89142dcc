// Package auth provides HTTP basic authentication for the SOWGraph server.
//
// SOWGraph runs with a single configured credential (SOWGRAPH_AUTH) rather
// than a user database. The password is hashed with bcrypt at startup and
// every check compares against the hash, so the plaintext never sits in
// long-lived server state. Failed attempts are counted and the credential
// locks out after too many in a row.
//
// Example Usage:
//
//	authenticator, err := auth.NewAuthenticator(auth.Config{
//		Username: "admin",
//		Password: "SecurePassword123!",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := authenticator.Check("admin", "SecurePassword123!"); err != nil {
//		// reject the request
//	}
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Errors for authentication operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to failed login attempts")
	ErrPasswordTooShort   = errors.New("password does not meet minimum length requirement")
)

// Config holds authenticator settings.
type Config struct {
	// Username accepted by the server
	Username string
	// Password in plaintext; hashed immediately and discarded
	Password string
	// MinPasswordLength enforced at construction (default 8)
	MinPasswordLength int
	// BcryptCost for hashing (default bcrypt.DefaultCost)
	BcryptCost int
	// MaxFailedLogins before lockout (default 5)
	MaxFailedLogins int
	// LockoutDuration after too many failures (default 15m)
	LockoutDuration time.Duration
}

// Authenticator validates a single username/password credential.
//
// Safe for concurrent use.
type Authenticator struct {
	mu           sync.Mutex
	username     string
	passwordHash []byte
	maxFailed    int
	lockout      time.Duration
	failedLogins int
	lockedUntil  time.Time
	now          func() time.Time
}

// NewAuthenticator hashes the configured password and returns an
// authenticator ready for use. The plaintext password is not retained.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.MaxFailedLogins <= 0 {
		cfg.MaxFailedLogins = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}

	if cfg.Username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidCredentials)
	}
	if len(cfg.Password) < cfg.MinPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters required",
			ErrPasswordTooShort, cfg.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &Authenticator{
		username:     cfg.Username,
		passwordHash: hash,
		maxFailed:    cfg.MaxFailedLogins,
		lockout:      cfg.LockoutDuration,
		now:          time.Now,
	}, nil
}

// Check validates the given username and password against the configured
// credential.
//
// Returns nil on success, ErrAccountLocked while locked out, and
// ErrInvalidCredentials otherwise. A successful check resets the failure
// counter.
func (a *Authenticator) Check(username, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Before(a.lockedUntil) {
		return ErrAccountLocked
	}

	userOK := SecureCompare(username, a.username)
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		a.failedLogins++
		if a.failedLogins >= a.maxFailed {
			a.lockedUntil = now.Add(a.lockout)
			a.failedLogins = 0
			return ErrAccountLocked
		}
		return ErrInvalidCredentials
	}

	a.failedLogins = 0
	return nil
}

// Locked reports whether the credential is currently locked out.
func (a *Authenticator) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now().Before(a.lockedUntil)
}

// SecureCompare performs a constant-time string comparison.
// Prevents timing attacks on credential validation.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
