package rotcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSeed(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, DeriveSeed("kiosk-secret-1"), DeriveSeed("kiosk-secret-1"))
	})

	t.Run("distinct tokens yield distinct seeds", func(t *testing.T) {
		assert.NotEqual(t, DeriveSeed("kiosk-secret-1"), DeriveSeed("kiosk-secret-2"))
	})

	t.Run("fixed length over base32 alphabet", func(t *testing.T) {
		seed := DeriveSeed("any token at all")
		require.Len(t, seed, seedLength)
		for _, c := range seed {
			assert.Contains(t, base32Alphabet, string(c))
		}
	})
}

func TestGenerate(t *testing.T) {
	now := time.Date(2026, 1, 28, 9, 0, 12, 0, time.UTC)

	code, err := Generate("kiosk-secret-1", now)
	require.NoError(t, err)

	assert.Len(t, code.Code, 6)
	assert.Equal(t, time.Date(2026, 1, 28, 9, 0, 30, 0, time.UTC), code.ExpiresAt)
	assert.Equal(t, 18, code.RemainingSeconds)
	assert.Equal(t, RefreshSeconds, code.RefreshSeconds)

	t.Run("same window same code", func(t *testing.T) {
		again, err := Generate("kiosk-secret-1", now.Add(10*time.Second))
		require.NoError(t, err)
		assert.Equal(t, code.Code, again.Code)
	})

	t.Run("next window different code", func(t *testing.T) {
		next, err := Generate("kiosk-secret-1", now.Add(Period*time.Second))
		require.NoError(t, err)
		assert.NotEqual(t, code.Code, next.Code)
	})
}

func TestVerify_WindowTolerance(t *testing.T) {
	secret := "kiosk-secret-1"
	at := time.Date(2026, 1, 28, 9, 0, 15, 0, time.UTC)

	code, err := Generate(secret, at)
	require.NoError(t, err)

	step := Period * time.Second
	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"same window", 0, true},
		{"one step behind", -step, true},
		{"one step ahead", step, true},
		{"two steps behind", -2 * step, false},
		{"two steps ahead", 2 * step, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Verify(secret, code.Code, at.Add(tc.offset)))
		})
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	at := time.Date(2026, 1, 28, 9, 0, 15, 0, time.UTC)
	code, err := Generate("kiosk-secret-1", at)
	require.NoError(t, err)
	assert.False(t, Verify("kiosk-secret-2", code.Code, at))
}

func TestVerify_ClaimedTime(t *testing.T) {
	// Offline sync verifies against the claimed scan time, not receipt time.
	secret := "kiosk-secret-1"
	claimed := time.Date(2026, 1, 28, 7, 45, 0, 0, time.UTC)

	displayed, err := Generate(secret, claimed)
	require.NoError(t, err)

	// Hours later the code must still verify at the claimed time.
	assert.True(t, Verify(secret, displayed.Code, claimed))
	// But not against a claimed time in a distant window.
	assert.False(t, Verify(secret, displayed.Code, claimed.Add(10*time.Minute)))
}
