package cryptox_test

import (
	"strings"
	"testing"

	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

// testCost keeps bcrypt cheap in tests; production tuning is covered by
// the config default, not re-measured here.
const testCost = 4

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	h, err := cryptox.NewHasher(testCost)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		digest, err := h.Hash("CorrectHorse9!")
		require.NoError(t, err)
		require.True(t, h.Verify("CorrectHorse9!", digest))
		require.False(t, h.Verify("wrong-password", digest))
	})

	t.Run("same plaintext yields distinct digests", func(t *testing.T) {
		d1, err := h.Hash("repeatable")
		require.NoError(t, err)
		d2, err := h.Hash("repeatable")
		require.NoError(t, err)
		require.NotEqual(t, d1, d2)
		require.True(t, h.Verify("repeatable", d1))
		require.True(t, h.Verify("repeatable", d2))
	})

	t.Run("rejects empty and whitespace plaintext", func(t *testing.T) {
		_, err := h.Hash("")
		require.ErrorIs(t, err, cryptox.ErrInvalidInput)
		_, err = h.Hash("   \t\n")
		require.ErrorIs(t, err, cryptox.ErrInvalidInput)
	})

	t.Run("verify is false not error for malformed digests", func(t *testing.T) {
		require.False(t, h.Verify("anything", "not-a-bcrypt-digest"))
		require.False(t, h.Verify("anything", ""))
		require.False(t, h.Verify("", "$2a$12$garbage"))
	})

	t.Run("dummy verification always fails", func(t *testing.T) {
		require.False(t, h.VerifyDummy("carelink-dummy-credential"))
		require.False(t, h.VerifyDummy("anything else"))
	})
}

func TestNewHasherClampsCost(t *testing.T) {
	t.Parallel()

	h, err := cryptox.NewHasher(-1)
	require.NoError(t, err)
	require.Equal(t, cryptox.DefaultHashCost, h.Cost())

	h, err = cryptox.NewHasher(99)
	require.NoError(t, err)
	require.Equal(t, cryptox.DefaultHashCost, h.Cost())
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	t.Run("produces url-safe unique tokens", func(t *testing.T) {
		a, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		b, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)

		require.NotEqual(t, a, b)
		require.Len(t, a, 43)
		require.False(t, strings.ContainsAny(a, "+/="))
	})

	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := cryptox.GenerateToken(0)
		require.Error(t, err)
	})
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp := cryptox.FingerprintToken("some-token")
	require.Equal(t, fp, cryptox.FingerprintToken("some-token"))
	require.NotEqual(t, fp, cryptox.FingerprintToken("other-token"))
	require.Len(t, fp, 43)
}
