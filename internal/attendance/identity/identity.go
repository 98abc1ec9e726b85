// Package identity computes the deterministic event identifier used for
// de-duplication across retried and re-submitted scans.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"timeclock/internal/attendance/models"
)

// TimeLayout is the canonical device-time formatting hashed into the
// identity. Ingestion normalizes claimed times to UTC before calling
// EventID so a retry of the same logical scan always hashes the same bytes.
const TimeLayout = time.RFC3339

// EventID derives the identity for one scan. Self-check and kiosk events
// must pass models.SentinelActorID so an online scan and its offline
// resubmission collide; representative events pass the real actor.
// Direction is part of the input: an in and an out at the same instant are
// distinct events.
func EventID(subjectID, actorID int64, deviceTime time.Time, direction models.Direction) string {
	canonical := fmt.Sprintf("%d|%d|%s|%s",
		subjectID,
		actorID,
		deviceTime.UTC().Format(TimeLayout),
		direction,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
