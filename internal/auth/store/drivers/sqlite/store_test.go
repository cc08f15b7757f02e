package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/auth/domain"
	"github.com/carelinkhq/carelink/internal/auth/store"
	"github.com/carelinkhq/carelink/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$2a$04$not-a-real-digest",
		DisplayName:  "Test User",
		Role:         domain.RoleCaregiver,
		ZoneID:       "zone-7",
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func seedRefreshToken(t *testing.T, s store.Store, userID, hash string, expiresAt time.Time) domain.RefreshToken {
	t.Helper()
	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: hash,
		DeviceID:  "dev-1",
		ExpiresAt: expiresAt,
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(context.Background(), rt))
	return rt
}

func TestUsersRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		u := seedUser(t, s, "maria@example.com")

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, got.Email)
		require.Equal(t, domain.RoleCaregiver, got.Role)
		require.Equal(t, "zone-7", got.ZoneID)
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		seedUser(t, s, "casey@example.com")

		got, err := s.Users().GetUserByEmail(ctx, "CASEY@Example.COM")
		require.NoError(t, err)
		require.Equal(t, "casey@example.com", got.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		seedUser(t, s, "dup@example.com")

		err := s.Users().CreateUser(ctx, domain.User{
			ID:           idx.New().String(),
			Email:        "dup@example.com",
			PasswordHash: "x",
			Role:         domain.RoleAdmin,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("admin without zone", func(t *testing.T) {
		u := domain.User{
			ID:           idx.New().String(),
			Email:        "admin@example.com",
			PasswordHash: "x",
			Role:         domain.RoleAdmin,
		}
		require.NoError(t, s.Users().CreateUser(ctx, u))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Empty(t, got.ZoneID)
	})
}

func TestRefreshTokensRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "tokens@example.com")

	t.Run("create and fetch by hash", func(t *testing.T) {
		rt := seedRefreshToken(t, s, u.ID, "hash-1", time.Now().Add(time.Hour))

		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
		require.NoError(t, err)
		require.Equal(t, rt.ID, got.ID)
		require.Nil(t, got.RevokedAt)
		require.True(t, got.Active(time.Now()))
	})

	t.Run("duplicate hash", func(t *testing.T) {
		err := s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    u.ID,
			TokenHash: "hash-1",
			ExpiresAt: time.Now().Add(time.Hour),
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("revoke single session", func(t *testing.T) {
		rt := seedRefreshToken(t, s, u.ID, "hash-2", time.Now().Add(time.Hour))

		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, u.ID, rt.ID))

		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-2")
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		require.False(t, got.Active(time.Now()))

		// Revoking again is a no-op.
		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, u.ID, rt.ID))
	})

	t.Run("revoke is scoped to owner", func(t *testing.T) {
		other := seedUser(t, s, "other@example.com")
		rt := seedRefreshToken(t, s, other.ID, "hash-3", time.Now().Add(time.Hour))

		err := s.RefreshTokens().RevokeRefreshToken(ctx, u.ID, rt.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-3")
		require.NoError(t, err)
		require.Nil(t, got.RevokedAt)
	})

	t.Run("revoke all returns count", func(t *testing.T) {
		bulk := seedUser(t, s, "bulk@example.com")
		seedRefreshToken(t, s, bulk.ID, "bulk-1", time.Now().Add(time.Hour))
		seedRefreshToken(t, s, bulk.ID, "bulk-2", time.Now().Add(time.Hour))

		n, err := s.RefreshTokens().RevokeAllUserRefreshTokens(ctx, bulk.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		// Second call touches nothing.
		n, err = s.RefreshTokens().RevokeAllUserRefreshTokens(ctx, bulk.ID)
		require.NoError(t, err)
		require.EqualValues(t, 0, n)
	})

	t.Run("list active skips revoked and expired", func(t *testing.T) {
		lister := seedUser(t, s, "lister@example.com")
		live := seedRefreshToken(t, s, lister.ID, "live-1", time.Now().Add(time.Hour))
		seedRefreshToken(t, s, lister.ID, "expired-1", time.Now().Add(-time.Hour))
		dead := seedRefreshToken(t, s, lister.ID, "revoked-1", time.Now().Add(time.Hour))
		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, lister.ID, dead.ID))

		got, err := s.RefreshTokens().ListActiveByUser(ctx, lister.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, live.ID, got[0].ID)
	})
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "prune@example.com")

	// Long expired: outside the retention window, should be pruned.
	seedRefreshToken(t, s, u.ID, "stale", time.Now().Add(-48*time.Hour))
	// Recently expired: still inside retention, kept for auditability.
	seedRefreshToken(t, s, u.ID, "recent", time.Now().Add(-time.Minute))
	// Live token: untouched.
	seedRefreshToken(t, s, u.ID, "live", time.Now().Add(time.Hour))

	n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "stale")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "recent")
	require.NoError(t, err)
}

func TestWithTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		u := domain.User{
			ID:           idx.New().String(),
			Email:        "tx-ok@example.com",
			PasswordHash: "x",
			Role:         domain.RoleCaregiver,
		}
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
				ID:        idx.New().String(),
				UserID:    u.ID,
				TokenHash: "tx-hash",
				ExpiresAt: time.Now().Add(time.Hour),
			})
		})
		require.NoError(t, err)

		_, err = s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		u := domain.User{
			ID:           idx.New().String(),
			Email:        "tx-fail@example.com",
			PasswordHash: "x",
			Role:         domain.RoleCaregiver,
		}
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			// Duplicate hash forces the whole tx to roll back.
			return tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
				ID:        idx.New().String(),
				UserID:    u.ID,
				TokenHash: "tx-hash",
				ExpiresAt: time.Now().Add(time.Hour),
			})
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		_, err = s.Users().GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
