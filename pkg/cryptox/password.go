package cryptox

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured.
// At cost 12 a single hash lands around 150-300ms on current server
// hardware, which is the point: credential guessing should be expensive.
const DefaultHashCost = 12

// ErrInvalidInput reports a plaintext that cannot be hashed (empty or
// whitespace-only).
var ErrInvalidInput = errors.New("cryptox: invalid plaintext input")

// Hasher wraps bcrypt with a fixed, configurable work factor. The cost is
// set once at construction so every credential in the system carries the
// same tuning, and can be raised via config as hardware improves.
type Hasher struct {
	cost int

	// dummy is a digest of a throwaway value, hashed at the configured
	// cost. Verification paths that have no real digest to compare
	// against (unknown account) still burn a full bcrypt comparison on
	// it so response timing does not reveal account existence.
	dummy string
}

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside
// bcrypt's supported range are clamped to DefaultHashCost.
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("carelink-dummy-credential"), cost)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to prepare hasher: %w", err)
	}

	return &Hasher{cost: cost, dummy: string(dummy)}, nil
}

// Cost returns the configured bcrypt work factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash generates a salted bcrypt digest of the plaintext. bcrypt salts
// internally, so hashing the same plaintext twice yields different
// digests. Fails with ErrInvalidInput for empty or whitespace-only input.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", ErrInvalidInput
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the bcrypt digest. It never
// returns an error: malformed digests and empty inputs simply verify
// false. The underlying comparison is constant-time with respect to the
// digest contents.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy burns a full bcrypt comparison against the throwaway digest
// and always reports false. Call this on the no-such-account path of a
// login so it costs the same as a real wrong-password comparison.
func (h *Hasher) VerifyDummy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(h.dummy), []byte(plaintext))
	return false
}
