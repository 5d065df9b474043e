// Package session keeps the bearer token used on every backend call and
// forces a logout when the backend, or the token itself, says it is no
// longer valid.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	logger "github.com/sirupsen/logrus"
)

// ErrUnauthorized means there is no usable token. The user has to sign in
// again.
var ErrUnauthorized = errors.New("unauthorized: sign in again")

// ErrSignedOut is the logout reason when the user signs out on purpose.
var ErrSignedOut = errors.New("signed out")

// Session holds the token in memory and, when a path is set, on disk so the
// CLI stays signed in between runs.
type Session struct {
	mu       sync.Mutex
	token    string
	path     string
	onLogout []func(error)
	now      func() time.Time
}

// New returns a session backed by path. An empty path keeps the token in
// memory only. A token already stored at path is loaded.
func New(path string) (*Session, error) {
	s := &Session{path: path, now: time.Now}
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("session: read %s: %w", path, err)
	}
	s.token = strings.TrimSpace(string(b))
	return s, nil
}

// NewWithToken is an in-memory session seeded with tok.
func NewWithToken(tok string) *Session {
	return &Session{token: strings.TrimSpace(tok), now: time.Now}
}

// OnLogout registers fn to run whenever the session is cleared. fn gets
// the reason; it runs outside the session lock.
func (s *Session) OnLogout(fn func(reason error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Token returns the current token. A missing token, or a JWT whose exp has
// passed, yields ErrUnauthorized; an expired token also logs out.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	tok := s.token
	now := s.now()
	s.mu.Unlock()

	if tok == "" {
		return "", ErrUnauthorized
	}
	if Expired(tok, now) {
		s.Logout(fmt.Errorf("token expired: %w", ErrUnauthorized))
		return "", ErrUnauthorized
	}
	return tok, nil
}

// SignedIn reports whether a usable token is present.
func (s *Session) SignedIn() bool {
	_, err := s.Token()
	return err == nil
}

// SetToken stores a token after login or registration.
func (s *Session) SetToken(tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return errors.New("session: empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(tok+"\n"), 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	return nil
}

// Logout clears the token in memory and on disk and runs the logout hooks.
// It is safe to call when already signed out; hooks still run so a second
// 401 is reported too.
func (s *Session) Logout(reason error) {
	s.mu.Lock()
	s.token = ""
	hooks := append([]func(error){}, s.onLogout...)
	path := s.path
	s.mu.Unlock()

	if path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WithError(err).WithField("path", path).Warn("could not remove stored token")
		}
	}
	logger.WithField("reason", reason).Info("session cleared")
	for _, fn := range hooks {
		fn(reason)
	}
}

// Claims are the fields the client reads from a JWT. The signature is not
// verified here; the backend does that on every call.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Parse reads the claims of a JWT without verifying it. Opaque tokens
// return an error.
func Parse(tok string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return Claims{}, fmt.Errorf("session: parse token: %w", err)
	}
	var c Claims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	switch v := claims["user_id"].(type) {
	case string:
		c.UserID = v
	case float64:
		c.UserID = fmt.Sprintf("%.0f", v)
	}
	if c.UserID == "" {
		c.UserID, _ = claims.GetSubject()
	}
	return c, nil
}

// Expired reports whether tok is a JWT whose exp is at or before now.
// Opaque tokens and tokens without exp are left to the backend.
func Expired(tok string, now time.Time) bool {
	c, err := Parse(tok)
	if err != nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}
