// Package audit captures review-relevant actions from the attendance core.
// Events are emitted from domain logic and fanned out to sinks; they are
// advisory and must never block or fail the operation that produced them.
package audit

import (
	"context"
	"time"
)

// Action identifies what happened.
type Action string

const (
	ActionEventFlagged      Action = "event_flagged"
	ActionEventDuplicate    Action = "event_duplicate"
	ActionCheckoutUnpaired  Action = "checkout_unpaired"
	ActionSummaryRecomputed Action = "summary_recomputed"
	ActionSubjectPurged     Action = "subject_purged"
)

// Event is one audit record. Keep it transport-agnostic so stores and sinks
// can fan out.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	SubjectID int64     `json:"subjectId,omitempty"`
	ActorID   int64     `json:"actorId,omitempty"`
	EventID   string    `json:"eventId,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
