package store

import (
	"context"
	"errors"
	"time"

	"github.com/carelinkhq/carelink/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop callers from accidentally
// nesting transactions within transactions.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., creating
	// a user together with its first refresh token record).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is already registered.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login. Email comparison is
	// case-insensitive; the driver stores emails lowercased.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	// Returns ErrAlreadyExists on a token_hash collision.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its hashed value,
	// revoked or not. Callers inspect RevokedAt/ExpiresAt themselves to
	// report the precise rejection reason.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken revokes a single token by id, scoped to the
	// owning user so one user can never revoke another's session.
	// Revoking an already-revoked token is a no-op, not an error.
	RevokeRefreshToken(ctx context.Context, userID, tokenID string) error

	// RevokeAllUserRefreshTokens revokes every live token for a user and
	// returns how many rows were flipped. Used on logout.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) (int64, error)

	// ListActiveByUser returns the user's live (not revoked, not expired)
	// refresh token records, newest first.
	ListActiveByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// DeleteExpiredRefreshTokens removes rows that expired or were
	// revoked more than retention ago. Housekeeping only; revocation
	// state stays queryable for the retention window.
	DeleteExpiredRefreshTokens(ctx context.Context, retention time.Duration) (int64, error)
}
