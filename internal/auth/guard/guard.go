// Package guard is the ephemeral security state of the service: the
// access-token blacklist and the credential-endpoint admission counters.
// Both live in Redis so every instance shares one view of revocations
// and rate budgets.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistKeyPrefix = "bl:"
	counterKeyPrefix   = "rl:"
)

// Store wraps the Redis client with the two key families the service
// uses. Keys carry their own TTLs, so nothing here needs housekeeping.
type Store struct {
	rdb redis.UniversalClient
}

func NewStore(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Blacklist records a token fingerprint as revoked for ttl. The entry
// expires together with the token itself, so the blacklist never grows
// beyond the set of still-live revoked tokens.
//
// A non-positive ttl means the token is already expired and there is
// nothing to blacklist. Re-blacklisting an entry is harmless.
func (s *Store) Blacklist(ctx context.Context, tokenFP string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, blacklistKeyPrefix+tokenFP, "1", ttl).Err()
}

// IsBlacklisted reports whether the fingerprint has a live blacklist
// entry. Errors are returned as-is; the caller decides the fail policy.
func (s *Store) IsBlacklisted(ctx context.Context, tokenFP string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blacklistKeyPrefix+tokenFP).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementCounter bumps the fixed-window counter for action+subject and
// returns the new count plus the window's remaining lifetime.
//
// INCR and EXPIRE NX run in one pipeline so the window TTL is set
// exactly once, when the first request creates the key. Later requests
// never extend the window; it always closes windowTTL after it opened.
func (s *Store) IncrementCounter(
	ctx context.Context,
	action, subject string,
	windowTTL time.Duration,
) (count int64, retryAfter time.Duration, err error) {
	key := fmt.Sprintf("%s%s:%s", counterKeyPrefix, action, subject)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, windowTTL)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = windowTTL
	}
	return incr.Val(), remaining, nil
}

// Ping verifies the Redis connection is alive. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
