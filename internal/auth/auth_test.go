package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_SignParseRoundtrip(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Sign("alice", time.Hour)
	require.NoError(t, err)

	accountID, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", accountID)
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Sign("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.Parse(token)
	assert.Error(t, err)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a").Sign("alice", time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/?token=query-token", nil)
	assert.Equal(t, "query-token", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: "jwt", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret")
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AccountID(r.Context())
	})

	rec := httptest.NewRecorder()
	v.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := v.Sign("alice", time.Hour)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	rec = httptest.NewRecorder()
	v.Middleware(next).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", seen)
}
