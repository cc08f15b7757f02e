package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/jwtx"
)

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, fp string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[fp], nil
}

func newAuthnManager(t *testing.T) *jwtx.KeyManager {
	t.Helper()
	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		PrivateKeyPEM: pemKey,
		Issuer:        "carelink-auth",
		Audience:      []string{"carelink-api"},
	})
	require.NoError(t, err)
	return km
}

func signToken(t *testing.T, km *jwtx.KeyManager, use string, ttl time.Duration) string {
	t.Helper()
	claims := jwtx.NewClaims(
		"user-1", "a@example.com", "caregiver", "zone-7", "dev-1", use,
		ttl, "carelink-auth", []string{"carelink-api"}, time.Now(),
	)
	token, err := km.Signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})
}

func doAuthn(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/userinfo", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAuthnMiddleware(t *testing.T) {
	km := newAuthnManager(t)
	bl := &fakeBlacklist{revoked: map[string]bool{}}
	h := AuthnMiddleware(km.Verifier, bl)(echoSubject())

	t.Run("valid token passes and injects subject", func(t *testing.T) {
		token := signToken(t, km, jwtx.UseAccess, time.Hour)
		rec := doAuthn(h, "Bearer "+token)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := doAuthn(h, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeMissingToken, errCode(t, rec))
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		rec := doAuthn(h, "Basic dXNlcjpwYXNz")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeInvalidTokenFormat, errCode(t, rec))
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doAuthn(h, "Bearer not.a.jwt")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeTokenMalformed, errCode(t, rec))
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, km, jwtx.UseAccess, -time.Minute)
		rec := doAuthn(h, "Bearer "+token)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeTokenExpired, errCode(t, rec))
	})

	t.Run("refresh token rejected on access route", func(t *testing.T) {
		token := signToken(t, km, jwtx.UseRefresh, time.Hour)
		rec := doAuthn(h, "Bearer "+token)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeTokenMalformed, errCode(t, rec))
	})

	t.Run("blacklisted token rejected before verification", func(t *testing.T) {
		token := signToken(t, km, jwtx.UseAccess, time.Hour)
		bl.revoked[cryptox.FingerprintToken(token)] = true
		rec := doAuthn(h, "Bearer "+token)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeTokenRevoked, errCode(t, rec))
	})

	t.Run("foreign signing key rejected", func(t *testing.T) {
		other := newAuthnManager(t)
		token := signToken(t, other, jwtx.UseAccess, time.Hour)
		rec := doAuthn(h, "Bearer "+token)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeSignatureInvalid, errCode(t, rec))
	})
}

func TestAuthnMiddleware_BlacklistFailClosed(t *testing.T) {
	km := newAuthnManager(t)
	bl := &fakeBlacklist{err: errors.New("connection refused")}
	h := AuthnMiddleware(km.Verifier, bl)(echoSubject())

	token := signToken(t, km, jwtx.UseAccess, time.Hour)
	rec := doAuthn(h, "Bearer "+token)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, CodeStoreUnavailable, errCode(t, rec))
}
