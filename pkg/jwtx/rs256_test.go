package jwtx_test

import (
	"testing"
	"time"

	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "carelink-auth"
	testAudience = "carelink-api"
)

func newTestManager(t *testing.T) *jwtx.KeyManager {
	t.Helper()

	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		PrivateKeyPEM: pemKey,
		Issuer:        testIssuer,
		Audience:      []string{testAudience},
	})
	require.NoError(t, err)
	return km
}

func accessClaims(ttl time.Duration, now time.Time) jwtx.Claims {
	return jwtx.NewClaims(
		"01JC0USER00000000000000000",
		"alice@example.com",
		"caregiver",
		"zone-north",
		"device-1",
		jwtx.UseAccess,
		ttl,
		testIssuer,
		[]string{testAudience},
		now,
	)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	km := newTestManager(t)
	now := time.Now().UTC()

	token, err := km.Signer.Sign(accessClaims(time.Hour, now))
	require.NoError(t, err)

	claims, err := km.Verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "01JC0USER00000000000000000", claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "caregiver", claims.Role)
	require.Equal(t, "zone-north", claims.ZoneID)
	require.Equal(t, "device-1", claims.DeviceID)
	require.Equal(t, jwtx.UseAccess, claims.TokenUse)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	km := newTestManager(t)
	issued := time.Now().UTC().Add(-2 * time.Hour)

	token, err := km.Signer.Sign(accessClaims(time.Hour, issued))
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyIgnoreExpiry(t *testing.T) {
	t.Parallel()

	km := newTestManager(t)
	issued := time.Now().UTC().Add(-2 * time.Hour)

	stale, err := km.Signer.Sign(accessClaims(time.Hour, issued))
	require.NoError(t, err)

	// Expiry is the only check relaxed: the genuine stale token parses
	// and keeps its subject.
	claims, err := km.Verifier.VerifyIgnoreExpiry(stale)
	require.NoError(t, err)
	require.Equal(t, "01JC0USER00000000000000000", claims.Subject)

	// Signature, issuer and audience checks are not.
	other := newTestManager(t)
	forged, err := other.Signer.Sign(accessClaims(time.Hour, time.Now().UTC()))
	require.NoError(t, err)
	_, err = km.Verifier.VerifyIgnoreExpiry(forged)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	badIssuer := jwtx.NewClaims(
		"u1", "a@example.com", "admin", "", "d1", jwtx.UseAccess,
		time.Hour, "someone-else", []string{testAudience}, time.Now().UTC(),
	)
	token, err := km.Signer.Sign(badIssuer)
	require.NoError(t, err)
	_, err = km.Verifier.VerifyIgnoreExpiry(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	_, err = km.Verifier.VerifyIgnoreExpiry("not.a.jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	// Two independent managers: tokens from one must not verify with
	// the other's key set.
	km := newTestManager(t)
	other := newTestManager(t)

	token, err := other.Signer.Sign(accessClaims(time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	t.Parallel()

	km := newTestManager(t)

	_, err := km.Verifier.Verify("not.a.jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)

	_, err = km.Verifier.Verify("")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	t.Parallel()

	km := newTestManager(t)
	now := time.Now().UTC()

	badIssuer := jwtx.NewClaims(
		"u1", "a@example.com", "admin", "", "d1", jwtx.UseAccess,
		time.Hour, "someone-else", []string{testAudience}, now,
	)
	token, err := km.Signer.Sign(badIssuer)
	require.NoError(t, err)
	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	badAud := jwtx.NewClaims(
		"u1", "a@example.com", "admin", "", "d1", jwtx.UseAccess,
		time.Hour, testIssuer, []string{"other-api"}, now,
	)
	token, err = km.Signer.Sign(badAud)
	require.NoError(t, err)
	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrAudience)
}

func TestRotationRetainsOldPublicKey(t *testing.T) {
	t.Parallel()

	oldPEM, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	newPEM, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	oldKM, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		PrivateKeyPEM: oldPEM,
		Issuer:        testIssuer,
		Audience:      []string{testAudience},
	})
	require.NoError(t, err)

	// Token minted before rotation.
	oldToken, err := oldKM.Signer.Sign(accessClaims(time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	// Rotated instance: new private key, old public key retained.
	oldPub, err := cryptox.ExportRSAPublicKey(oldPEM)
	require.NoError(t, err)

	rotated, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		PrivateKeyPEM:      newPEM,
		ExtraPublicKeyPEMs: [][]byte{oldPub},
		Issuer:             testIssuer,
		Audience:           []string{testAudience},
	})
	require.NoError(t, err)

	// Old token still verifies; new tokens verify too.
	_, err = rotated.Verifier.Verify(oldToken)
	require.NoError(t, err)

	newToken, err := rotated.Signer.Sign(accessClaims(time.Hour, time.Now().UTC()))
	require.NoError(t, err)
	_, err = rotated.Verifier.Verify(newToken)
	require.NoError(t, err)

	require.Len(t, rotated.KeySet.PublicJWKS().Keys, 2)
}

func TestAbsentZoneStillVerifies(t *testing.T) {
	t.Parallel()

	km := newTestManager(t)
	now := time.Now().UTC()

	// Cross-zone roles carry no zone_id; the claim is simply omitted.
	claims := jwtx.NewClaims(
		"u-admin", "root@example.com", "admin", "", "d1", jwtx.UseAccess,
		time.Hour, testIssuer, []string{testAudience}, now,
	)
	token, err := km.Signer.Sign(claims)
	require.NoError(t, err)

	got, err := km.Verifier.Verify(token)
	require.NoError(t, err)
	require.Empty(t, got.ZoneID)
	require.Equal(t, "admin", got.Role)
}
