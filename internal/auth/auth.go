// Package auth implements the admin login: credential checks and the
// short-lived session tokens carried in the admin cookie.
package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSessionTTL is how long an admin session stays valid
const DefaultSessionTTL = 24 * time.Hour

const sweepInterval = 10 * time.Minute

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Credentials is the single configured admin account. When PasswordHash is
// set it takes precedence over the plaintext Password.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Check compares a login attempt against the configured account
func (c Credentials) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1

	var passOK bool
	if c.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}

	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for PasswordHash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Session is an issued admin token
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MaxAge is the cookie lifetime in seconds
func (s *Session) MaxAge() int {
	return int(s.ExpiresAt.Sub(s.CreatedAt) / time.Second)
}

// Registry holds issued admin sessions in memory
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	stopSweep chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its expiry sweep
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	r := &Registry{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
		stopSweep: make(chan struct{}),
	}

	go r.sweepLoop()

	return r
}

// TTL returns the session lifetime
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create issues a new session token
func (r *Registry) Create(username string) *Session {
	now := r.now()
	sess := &Session{
		Token:     uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.sessions[sess.Token] = sess
	r.mu.Unlock()

	r.logger.Info("admin session created", "username", username)

	return sess
}

// Validate returns the session for a token that exists and has not expired.
// Expired tokens are removed.
func (r *Registry) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	r.mu.RLock()
	sess, ok := r.sessions[token]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrUnauthorized
	}

	if !r.now().Before(sess.ExpiresAt) {
		r.Revoke(token)
		return nil, ErrUnauthorized
	}

	return sess, nil
}

// Revoke removes a token; unknown tokens are ignored
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes expired sessions and returns how many were removed
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, sess := range r.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed
}

// Close stops the sweep loop
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stopSweep)
	})
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopSweep:
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("expired admin sessions removed", "count", n)
			}
		}
	}
}
