package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/auth/domain"
	"github.com/carelinkhq/carelink/internal/auth/store/drivers/sqlite"
	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/jwtx"
)

type fakeBlacklist struct {
	entries map[string]time.Duration
	err     error
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: map[string]time.Duration{}}
}

func (f *fakeBlacklist) Blacklist(_ context.Context, fp string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if ttl > 0 {
		f.entries[fp] = ttl
	}
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, fp string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.entries[fp]
	return ok, nil
}

func newTestService(t *testing.T) (*SessionService, *fakeBlacklist) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		PrivateKeyPEM: pemKey,
		Issuer:        "carelink-auth",
		Audience:      []string{"carelink-api"},
	})
	require.NoError(t, err)

	hasher, err := cryptox.NewHasher(4) // low cost keeps tests fast
	require.NoError(t, err)

	bl := newFakeBlacklist()
	return &SessionService{
		KeyManager: km,
		Store:      st,
		Blacklist:  bl,
		Hasher:     hasher,
		Issuer:     "carelink-auth",
		Audience:   []string{"carelink-api"},
		AccessTTL:  time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
	}, bl
}

func registerParams(email string) RegisterParams {
	return RegisterParams{
		Email:       email,
		Password:    "correct horse battery",
		DisplayName: "Maria",
		Role:        "caregiver",
		ZoneID:      "zone-7",
		DeviceID:    "dev-1",
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("issues verifiable pair", func(t *testing.T) {
		pair, user, err := svc.Register(ctx, registerParams("maria@example.com"))
		require.NoError(t, err)
		require.Equal(t, "Bearer", pair.TokenType)
		require.EqualValues(t, 3600, pair.ExpiresIn)
		require.Equal(t, "dev-1", pair.DeviceID)

		access, err := svc.KeyManager.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, access.Subject)
		require.Equal(t, "caregiver", access.Role)
		require.Equal(t, "zone-7", access.ZoneID)
		require.NoError(t, access.ValidateUse(jwtx.UseAccess))

		refresh, err := svc.KeyManager.Verifier.Verify(pair.RefreshToken)
		require.NoError(t, err)
		require.NoError(t, refresh.ValidateUse(jwtx.UseRefresh))

		// The refresh record is persisted under the token fingerprint.
		rec, err := svc.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
		require.NoError(t, err)
		require.Equal(t, user.ID, rec.UserID)
	})

	t.Run("role defaults to caregiver", func(t *testing.T) {
		p := registerParams("default-role@example.com")
		p.Role = ""
		_, user, err := svc.Register(ctx, p)
		require.NoError(t, err)
		require.Equal(t, domain.RoleCaregiver, user.Role)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		p := registerParams("bad-role@example.com")
		p.Role = "superuser"
		_, _, err := svc.Register(ctx, p)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, _, err := svc.Register(ctx, registerParams("dup@example.com"))
		require.NoError(t, err)
		_, _, err = svc.Register(ctx, registerParams("dup@example.com"))
		require.ErrorIs(t, err, ErrEmailTaken)

		// The failed attempt must not leave a refresh record behind.
		_, err = svc.Store.Users().GetUserByEmail(ctx, "dup@example.com")
		require.NoError(t, err)
	})

	t.Run("short password rejected", func(t *testing.T) {
		p := registerParams("short@example.com")
		p.Password = "short"
		_, _, err := svc.Register(ctx, p)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("device id generated when absent", func(t *testing.T) {
		p := registerParams("nodevice@example.com")
		p.DeviceID = ""
		pair, _, err := svc.Register(ctx, p)
		require.NoError(t, err)
		require.NotEmpty(t, pair.DeviceID)
	})

	t.Run("admin without zone", func(t *testing.T) {
		p := registerParams("admin@example.com")
		p.Role = "admin"
		p.ZoneID = ""
		pair, _, err := svc.Register(ctx, p)
		require.NoError(t, err)

		claims, err := svc.KeyManager.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Empty(t, claims.ZoneID)
	})
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, registerParams("login@example.com"))
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := svc.Login(ctx, "Login@Example.com", "correct horse battery", "dev-2")
		require.NoError(t, err)

		claims, err := svc.KeyManager.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "login@example.com", claims.Email)
		require.Equal(t, "dev-2", claims.DeviceID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "login@example.com", "wrong", "dev-2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email reads the same as wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost@example.com", "whatever", "dev-2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("each login is its own session", func(t *testing.T) {
		user, err := svc.Store.Users().GetUserByEmail(ctx, "login@example.com")
		require.NoError(t, err)

		sessions, err := svc.Sessions(ctx, user.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(sessions), 2)
	})
}

func TestRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, user, err := svc.Register(ctx, registerParams("refresh@example.com"))
	require.NoError(t, err)

	t.Run("issues new access token, keeps refresh token", func(t *testing.T) {
		got, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, pair.RefreshToken, got.RefreshToken)

		claims, err := svc.KeyManager.Verifier.Verify(got.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.NoError(t, claims.ValidateUse(jwtx.UseAccess))
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrWrongUse)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("revoked session", func(t *testing.T) {
		_, err := svc.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, user.ID)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes sessions and blacklists access token", func(t *testing.T) {
		svc, bl := newTestService(t)
		pair, user, err := svc.Register(ctx, registerParams("logout@example.com"))
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, pair.AccessToken))

		revoked, err := bl.IsBlacklisted(ctx, cryptox.FingerprintToken(pair.AccessToken))
		require.NoError(t, err)
		require.True(t, revoked)

		sessions, err := svc.Sessions(ctx, user.ID)
		require.NoError(t, err)
		require.Empty(t, sessions)

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("idempotent", func(t *testing.T) {
		svc, _ := newTestService(t)
		pair, _, err := svc.Register(ctx, registerParams("twice@example.com"))
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, pair.AccessToken))
		require.NoError(t, svc.Logout(ctx, pair.AccessToken))
	})

	t.Run("unparseable token still succeeds and is blacklisted", func(t *testing.T) {
		svc, bl := newTestService(t)

		require.NoError(t, svc.Logout(ctx, "garbage-token"))

		revoked, err := bl.IsBlacklisted(ctx, cryptox.FingerprintToken("garbage-token"))
		require.NoError(t, err)
		require.True(t, revoked)
		require.Equal(t, svc.AccessTTL, bl.entries[cryptox.FingerprintToken("garbage-token")])
	})

	t.Run("forged token cannot revoke anyone's sessions", func(t *testing.T) {
		svc, bl := newTestService(t)
		_, victim, err := svc.Register(ctx, registerParams("victim@example.com"))
		require.NoError(t, err)

		// A structurally valid token naming the victim as subject, but
		// signed with a key we never trusted.
		attackerPEM, err := cryptox.GenerateRSAKey(2048)
		require.NoError(t, err)
		attackerKM, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
			PrivateKeyPEM: attackerPEM,
			Issuer:        svc.Issuer,
			Audience:      svc.Audience,
		})
		require.NoError(t, err)
		forged, err := attackerKM.Signer.Sign(jwtx.NewClaims(
			victim.ID, victim.Email, "caregiver", "zone-7", "dev-1",
			jwtx.UseAccess, time.Hour, svc.Issuer, svc.Audience, time.Now(),
		))
		require.NoError(t, err)

		// Logout reports success, but only the presented string gets
		// blacklisted; the victim's sessions stay intact.
		require.NoError(t, svc.Logout(ctx, forged))

		blocked, err := bl.IsBlacklisted(ctx, cryptox.FingerprintToken(forged))
		require.NoError(t, err)
		require.True(t, blocked)

		sessions, err := svc.Sessions(ctx, victim.ID)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
	})

	t.Run("expired but genuine token still logs out", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, user, err := svc.Register(ctx, registerParams("stale@example.com"))
		require.NoError(t, err)

		stale, err := svc.KeyManager.Signer.Sign(jwtx.NewClaims(
			user.ID, user.Email, "caregiver", "zone-7", "dev-1",
			jwtx.UseAccess, time.Hour, svc.Issuer, svc.Audience,
			time.Now().Add(-2*time.Hour),
		))
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, stale))

		sessions, err := svc.Sessions(ctx, user.ID)
		require.NoError(t, err)
		require.Empty(t, sessions)
	})

	t.Run("guard outage surfaces for valid tokens", func(t *testing.T) {
		svc, bl := newTestService(t)
		pair, user, err := svc.Register(ctx, registerParams("outage@example.com"))
		require.NoError(t, err)

		bl.err = errors.New("connection refused")
		require.ErrorIs(t, svc.Logout(ctx, pair.AccessToken), ErrGuardUnavailable)

		// Refresh sessions must remain intact if the blacklist write failed.
		sessions, err := svc.Sessions(ctx, user.ID)
		require.NoError(t, err)
		require.NotEmpty(t, sessions)
	})
}

func TestRevokeSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, user, err := svc.Register(ctx, registerParams("sessions@example.com"))
	require.NoError(t, err)

	sessions, err := svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	t.Run("foreign session id is not found", func(t *testing.T) {
		require.ErrorIs(t, svc.RevokeSession(ctx, "someone-else", sessions[0].ID), ErrNotFound)
	})

	t.Run("owner can revoke", func(t *testing.T) {
		require.NoError(t, svc.RevokeSession(ctx, user.ID, sessions[0].ID))

		_, err := svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrTokenRevoked)

		left, err := svc.Sessions(ctx, user.ID)
		require.NoError(t, err)
		require.Empty(t, left)
	})
}

func TestUserInfo(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, user, err := svc.Register(ctx, registerParams("info@example.com"))
	require.NoError(t, err)

	got, err := svc.UserInfo(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)

	_, err = svc.UserInfo(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
