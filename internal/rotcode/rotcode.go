// Package rotcode implements the rotating one-time code protocol used to
// authenticate kiosk scans. Long-lived secret tokens are never transmitted;
// kiosks display a 6-digit code derived from their secret and the current
// 30-second window, and workers submit the code they scanned.
package rotcode

import (
	"crypto/sha256"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	dErrors "timeclock/pkg/errors"
)

const (
	// Period is the code rotation window in seconds.
	Period = 30
	// RefreshSeconds tells display clients how often to re-fetch.
	RefreshSeconds = 30
	// seedLength is the number of digest bytes mapped into the seed.
	seedLength = 16
)

// base32Alphabet is the RFC 4648 alphabet the seed is projected onto.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Code is one generated rotating code with its validity metadata.
type Code struct {
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int       `json:"remainingSeconds"`
	RefreshSeconds   int       `json:"refreshSeconds"`
}

// DeriveSeed maps a secret token onto a fixed-length base32 seed. The
// derivation must stay bit-exact across releases: seeds are never persisted,
// only the original token is, so any change would invalidate every code
// stream in the field.
func DeriveSeed(secretToken string) string {
	digest := sha256.Sum256([]byte(secretToken))
	seed := make([]byte, seedLength)
	for i := 0; i < seedLength; i++ {
		seed[i] = base32Alphabet[int(digest[i])%len(base32Alphabet)]
	}
	return string(seed)
}

// Generate produces the code for the window containing now.
func Generate(secretToken string, now time.Time) (Code, error) {
	code, err := totp.GenerateCodeCustom(DeriveSeed(secretToken), now, validateOpts())
	if err != nil {
		return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate rotating code")
	}
	expiresAt := nextWindowBoundary(now)
	return Code{
		Code:             code,
		ExpiresAt:        expiresAt,
		RemainingSeconds: int(expiresAt.Sub(now).Seconds()),
		RefreshSeconds:   RefreshSeconds,
	}, nil
}

// Verify reports whether code is valid for the window containing at or
// either adjacent window. The one-step skew absorbs clock drift and
// scan-to-submit latency; offline sync passes the claimed device time here
// so a code displayed hours ago can still be checked against the moment the
// worker says they scanned it.
func Verify(secretToken, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, DeriveSeed(secretToken), at, validateOpts())
	if err != nil {
		return false
	}
	return ok
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func nextWindowBoundary(now time.Time) time.Time {
	elapsed := now.Unix() % Period
	return now.Truncate(time.Second).Add(time.Duration(Period-elapsed) * time.Second)
}
