// Package models defines the attendance domain entities and the wire DTOs
// the ingestion channels exchange.
package models

import "time"

// Direction is the scan direction.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Opposite returns the toggled direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// SyncStatus records which channel delivered the event.
type SyncStatus string

const (
	SyncOnline         SyncStatus = "online"
	SyncRepresentative SyncStatus = "representative"
	SyncOffline        SyncStatus = "offline"
)

// SentinelActorID is used for self-check and kiosk events so an online scan
// and its later offline resubmission collide on the same identity.
const SentinelActorID int64 = 0

// Flag reasons. Multiple causes join with ";" into FlagReason.
const (
	FlagFutureTimestamp = "future_timestamp"
	FlagDuplicateWindow = "duplicate_scan_window"
	FlagAuthMismatch    = "auth_mismatch"
	FlagMissingAuth     = "missing_auth"
)

// AttendanceEvent is one scan. Created once by ingestion, mutated exactly
// once by pairing, never updated afterwards.
type AttendanceEvent struct {
	ID             string     `json:"id"`
	SubjectID      int64      `json:"subjectId"`
	ActorID        int64      `json:"actorId"`
	KioskID        *int64     `json:"kioskId,omitempty"`
	Direction      Direction  `json:"direction"`
	DeviceTime     time.Time  `json:"deviceTime"`
	DeviceTimezone string     `json:"deviceTimezone"`
	SyncTime       time.Time  `json:"syncTime"`
	SyncStatus     SyncStatus `json:"syncStatus"`
	Flagged        bool       `json:"flagged"`
	FlagReason     string     `json:"flagReason,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`

	// Pairing-derived fields; nil until the event is paired or classified.
	PairedEventID    *string `json:"pairedEventId,omitempty"`
	WorkMinutes      *int    `json:"workMinutes,omitempty"`
	IsLate           *bool   `json:"isLate,omitempty"`
	IsEarlyDeparture *bool   `json:"isEarlyDeparture,omitempty"`
	IsOvertime       *bool   `json:"isOvertime,omitempty"`
	OvertimeMinutes  *int    `json:"overtimeMinutes,omitempty"`
}

// Clone returns a deep copy so stores can hand out values without aliasing
// their internal state.
func (e *AttendanceEvent) Clone() *AttendanceEvent {
	c := *e
	c.KioskID = clonePtr(e.KioskID)
	c.Latitude = clonePtr(e.Latitude)
	c.Longitude = clonePtr(e.Longitude)
	c.PairedEventID = clonePtr(e.PairedEventID)
	c.WorkMinutes = clonePtr(e.WorkMinutes)
	c.IsLate = clonePtr(e.IsLate)
	c.IsEarlyDeparture = clonePtr(e.IsEarlyDeparture)
	c.IsOvertime = clonePtr(e.IsOvertime)
	c.OvertimeMinutes = clonePtr(e.OvertimeMinutes)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// AddFlag appends a flag reason and marks the event flagged.
func (e *AttendanceEvent) AddFlag(reason string) {
	e.Flagged = true
	if e.FlagReason == "" {
		e.FlagReason = reason
		return
	}
	e.FlagReason += ";" + reason
}
