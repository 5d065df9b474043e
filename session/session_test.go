package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestSession_PersistsToken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fxdesk", "token")
	s, err := New(path)
	require.NoError(t, err)
	assert.False(t, s.SignedIn())

	require.NoError(t, s.SetToken("opaque-token"))

	again, err := New(path)
	require.NoError(t, err)
	tok, err := again.Token()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSession_LogoutClearsAndNotifies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SetToken("abc"))

	var calls atomic.Int32
	var got error
	s.OnLogout(func(reason error) {
		calls.Add(1)
		got = reason
	})

	s.Logout(ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, got, ErrUnauthorized)

	_, err = s.Token()
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSession_ExpiredJWTLogsOut(t *testing.T) {
	t.Parallel()

	s := NewWithToken(signed(t, jwt.MapClaims{"user_id": 9, "exp": time.Now().Add(-time.Minute).Unix()}))
	var calls atomic.Int32
	s.OnLogout(func(error) { calls.Add(1) })

	_, err := s.Token()
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.SignedIn())
}

func TestSession_EmptyToken(t *testing.T) {
	t.Parallel()

	s := NewWithToken("")
	_, err := s.Token()
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Error(t, s.SetToken("   "))
}

func TestParse(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	c, err := Parse(signed(t, jwt.MapClaims{"user_id": float64(42), "exp": exp.Unix()}))
	require.NoError(t, err)
	assert.Equal(t, "42", c.UserID)
	assert.True(t, exp.Equal(c.ExpiresAt))

	c, err = Parse(signed(t, jwt.MapClaims{"sub": "u-1"}))
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.True(t, c.ExpiresAt.IsZero())

	_, err = Parse("not-a-jwt")
	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	live := signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	dead := signed(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	noExp := signed(t, jwt.MapClaims{"user_id": "1"})

	assert.False(t, Expired(live, now))
	assert.True(t, Expired(dead, now))
	assert.False(t, Expired(noExp, now))
	assert.False(t, Expired("opaque", now))
}
