// Package auth manages the service session: logging in with retries,
// persisting the session cookies between runs, and recovering when the
// server stops accepting them.
//
// Recovery ladder used by Relogin:
//
//	login (up to MaxRetries attempts, RetryDelay apart)
//	└─ all attempts fail
//	    └─ drop every cookie (fresh HTTP client)
//	        └─ login again (one more round of attempts)
//
// The role comes from the "role" cookie the service sets on login. It only
// decides which dashboard to open; the server enforces the real role.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"complaintdesk/internal/account"
	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/storage"

	"github.com/rs/zerolog"
)

// Client is the part of the API client the session manager drives.
type Client interface {
	Login(ctx context.Context, creds account.Credentials) (account.Role, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (account.Profile, error)
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	ResetSession()
}

// SessionStore persists the session between runs.
type SessionStore interface {
	SaveSession(sess storage.Session) error
	LoadSession() (storage.Session, bool, error)
	ClearSession() error
}

// Options configures a Manager.
type Options struct {
	// Credentials used by LoginWithRetry and Relogin. May be empty for
	// interactive use where the caller passes credentials to Login.
	Credentials account.Credentials
	MaxRetries  int
	RetryDelay  time.Duration
}

// Manager owns the session of one API client.
type Manager struct {
	client   Client
	sessions SessionStore
	opts     Options
	log      zerolog.Logger

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.RWMutex
	role account.Role
}

// NewManager creates a session manager. sessions may be nil, in which case
// nothing is persisted.
func NewManager(client Client, sessions SessionStore, opts Options, log zerolog.Logger) *Manager {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Manager{
		client:   client,
		sessions: sessions,
		opts:     opts,
		log:      log.With().Str("component", "auth").Logger(),
		sleep:    sleepContext,
	}
}

// Role returns the role of the current session, or "" before login.
func (m *Manager) Role() account.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

func (m *Manager) setRole(role account.Role) {
	m.mu.Lock()
	m.role = role
	m.mu.Unlock()
}

// Login performs one login with creds and persists the resulting session.
//
// Returns:
//   - account.Role: Role from the role cookie
//   - error: LoginFailedError if the service refuses or sets no role
func (m *Manager) Login(ctx context.Context, creds account.Credentials) (account.Role, error) {
	role, err := m.client.Login(ctx, creds)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", apperrors.NewLoginFailedError("service did not report a role", nil)
	}

	m.setRole(role)
	m.save(role)
	m.log.Info().Str("role", string(role)).Msg("logged in")
	return role, nil
}

// LoginWithRetry logs in with the configured credentials, retrying up to
// MaxRetries times with RetryDelay between attempts. Validation failures
// are not retried.
func (m *Manager) LoginWithRetry(ctx context.Context) (account.Role, error) {
	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		m.log.Debug().Int("attempt", attempt).Int("max", m.opts.MaxRetries).Msg("login attempt")

		role, err := m.Login(ctx, m.opts.Credentials)
		if err == nil {
			return role, nil
		}
		lastErr = err
		if apperrors.IsValidation(err) {
			return "", err
		}

		if attempt < m.opts.MaxRetries {
			m.log.Warn().Err(err).Dur("retry_in", m.opts.RetryDelay).Msg("login failed, retrying")
			if err := m.sleep(ctx, m.opts.RetryDelay); err != nil {
				return "", err
			}
		}
	}
	m.log.Error().Err(lastErr).Int("attempts", m.opts.MaxRetries).Msg("login failed")
	return "", lastErr
}

// Relogin recovers an expired session. If every attempt fails the cookies
// are dropped and one more round is tried from a clean client.
func (m *Manager) Relogin(ctx context.Context) (account.Role, error) {
	role, err := m.LoginWithRetry(ctx)
	if err == nil {
		return role, nil
	}
	if apperrors.IsValidation(err) || ctx.Err() != nil {
		return "", err
	}

	m.log.Warn().Err(err).Msg("re-login failed, resetting HTTP session")
	m.client.ResetSession()
	return m.LoginWithRetry(ctx)
}

// Restore loads a saved session into the client.
//
// Returns:
//   - account.Role: Role saved with the session
//   - bool: false if there was nothing to restore
//   - error: Storage failure
func (m *Manager) Restore() (account.Role, bool, error) {
	if m.sessions == nil {
		return "", false, nil
	}
	sess, ok, err := m.sessions.LoadSession()
	if err != nil || !ok {
		return "", false, err
	}

	m.client.SetCookies(sess.HTTPCookies())
	m.setRole(sess.Role)
	m.log.Debug().Time("saved_at", sess.SavedAt).Str("role", string(sess.Role)).Msg("session restored")
	return sess.Role, true, nil
}

// EnsureSession returns a usable session, preferring a saved one.
//
// Flow:
//  1. Restore the saved session, if any
//  2. Probe it with a profile request
//  3. If there was none, or the server rejects it, log in with retries
func (m *Manager) EnsureSession(ctx context.Context) (account.Role, error) {
	role, ok, err := m.Restore()
	if err != nil {
		m.log.Warn().Err(err).Msg("could not read saved session")
	}
	if ok {
		_, err := m.client.Profile(ctx)
		switch {
		case err == nil:
			return role, nil
		case apperrors.IsUnauthorized(err):
			m.log.Info().Msg("saved session expired")
		default:
			return "", err
		}
	}
	return m.Relogin(ctx)
}

// Logout ends the session on the server and forgets it locally. Local
// state is cleared even if the server call fails.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.client.Logout(ctx)

	m.client.ResetSession()
	m.setRole("")
	if m.sessions != nil {
		if cerr := m.sessions.ClearSession(); cerr != nil {
			m.log.Warn().Err(cerr).Msg("could not clear saved session")
		}
	}
	return err
}

func (m *Manager) save(role account.Role) {
	if m.sessions == nil {
		return
	}
	if err := m.sessions.SaveSession(storage.NewSession(m.client.Cookies(), role)); err != nil {
		m.log.Warn().Err(err).Msg("could not save session")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
