// Package session holds the operator's authentication context. Commands load
// it once and hand it to the API client explicitly; nothing reads tokens from
// process-wide state.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"
)

// ErrNoToken is returned when a session has no access token to present.
var ErrNoToken = errors.New("session: no access token")

// User mirrors the user record the backend returns at login.
type User struct {
	ID       string `yaml:"id"`
	Email    string `yaml:"email"`
	Username string `yaml:"username,omitempty"`
	Role     string `yaml:"role,omitempty"`
}

// Session is the authentication context passed into API calls.
type Session struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	User         User   `yaml:"user"`
}

// Claims are the fields read from the access token. The token is not
// verified client-side; the backend remains the authority.
type Claims struct {
	UserID any    `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Load reads a session file written at login.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", path, err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: parse %s: %w", path, err)
	}
	s.AccessToken = strings.TrimSpace(s.AccessToken)
	return &s, nil
}

// Save writes the session with owner-only permissions.
func (s *Session) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("session: write %s: %w", path, err)
	}
	return nil
}

// FromToken builds a session around a bare bearer token (ORCH_TOKEN).
func FromToken(token string) *Session {
	return &Session{AccessToken: strings.TrimSpace(token)}
}

// Claims decodes the access token payload without verifying its signature.
func (s *Session) Claims() (*Claims, error) {
	if s == nil || s.AccessToken == "" {
		return nil, ErrNoToken
	}
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &c); err != nil {
		return nil, fmt.Errorf("session: decode token: %w", err)
	}
	return &c, nil
}

// Expired reports whether the access token's exp claim is at or before now.
// Opaque (non-JWT) tokens and tokens without exp never report expired.
func (s *Session) Expired(now time.Time) bool {
	c, err := s.Claims()
	if err != nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}

// Role returns the stored role, falling back to the token's role claim.
func (s *Session) Role() string {
	if s == nil {
		return ""
	}
	if s.User.Role != "" {
		return s.User.Role
	}
	if c, err := s.Claims(); err == nil {
		return c.Role
	}
	return ""
}

// Authorize attaches the bearer header to req.
func (s *Session) Authorize(req *http.Request) error {
	if s == nil || s.AccessToken == "" {
		return ErrNoToken
	}
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	return nil
}

// Header returns the request headers carrying the session, for transports
// that take a header set rather than a request (websocket dials). It is
// empty for a nil or anonymous session.
func (s *Session) Header() http.Header {
	req := &http.Request{Header: http.Header{}}
	_ = s.Authorize(req)
	return req.Header
}
