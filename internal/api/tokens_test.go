package api

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeJWT builds a structurally valid JWT with the given exp claim.
func fakeJWT(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	claims := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())),
	)
	return header + "." + claims + ".sig"
}

func TestTokenStoreEmpty(t *testing.T) {
	t.Parallel()

	store := NewTokenStore()
	require.Empty(t, store.Token())
	require.True(t, store.Expired())
}

func TestTokenStoreJWTExpiry(t *testing.T) {
	t.Parallel()

	store := NewTokenStore()

	store.SetToken(fakeJWT(time.Now().Add(time.Hour)))
	require.False(t, store.Expired())

	store.SetToken(fakeJWT(time.Now().Add(-time.Minute)))
	require.True(t, store.Expired())
}

func TestTokenStoreOpaqueToken(t *testing.T) {
	t.Parallel()

	// A token that is not a JWT has no local expiry; the backend decides.
	store := NewTokenStore()
	store.SetToken("opaque-session-token")
	require.False(t, store.Expired())
	require.Equal(t, "opaque-session-token", store.Token())
}
