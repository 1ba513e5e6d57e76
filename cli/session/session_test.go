package session

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	in := &Session{
		AccessToken:  "abc",
		RefreshToken: "def",
		User:         User{ID: "7", Email: "ops@example.com", Role: "admin"},
	}
	require.NoError(t, in.Save(path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestClaimsAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, Claims{
		UserID: 42,
		Role:   "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	s := FromToken(token)

	c, err := s.Claims()
	require.NoError(t, err)
	assert.Equal(t, "operator", c.Role)
	assert.Equal(t, "operator", s.Role())

	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Hour)))
}

func TestExpired_OpaqueToken(t *testing.T) {
	s := FromToken("not-a-jwt")
	assert.False(t, s.Expired(time.Now()))
	_, err := s.Claims()
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, FromToken(" tok ").Authorize(req))
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))

	var empty *Session
	assert.ErrorIs(t, empty.Authorize(req), ErrNoToken)
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "Bearer tok", FromToken("tok").Header().Get("Authorization"))
	assert.Empty(t, FromToken("").Header())

	var none *Session
	assert.Empty(t, none.Header())
}
