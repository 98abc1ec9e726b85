// Package event defines the attendance event store. Identity uniqueness is
// the concurrency boundary: duplicate inserts surface ErrDuplicate and the
// caller treats the loser as a normal duplicate, never an error.
package event

import (
	"context"
	"errors"
	"time"

	"timeclock/internal/attendance/models"
)

var (
	// ErrDuplicate signals an insert with an identity that already exists.
	ErrDuplicate = errors.New("event already exists")
	// ErrNotFound signals a lookup for an unknown event ID.
	ErrNotFound = errors.New("event not found")
)

// Store is the persistence contract for attendance events.
type Store interface {
	// Insert persists a new event. Returns ErrDuplicate when the identity is
	// already present; the stored row is left untouched.
	Insert(ctx context.Context, e *models.AttendanceEvent) error

	// GetByID returns the event or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.AttendanceEvent, error)

	// LatestBefore returns the subject's most recent event with deviceTime
	// strictly before t and within the trailing window, or nil.
	LatestBefore(ctx context.Context, subjectID int64, t time.Time, window time.Duration) (*models.AttendanceEvent, error)

	// LatestUnpairedIn returns the subject's most recent unpaired check-in
	// with deviceTime before t and within the trailing window, or nil.
	LatestUnpairedIn(ctx context.Context, subjectID int64, t time.Time, window time.Duration) (*models.AttendanceEvent, error)

	// SetPaired links the check-in to its check-out and records the derived
	// interval length on the check-in side.
	SetPaired(ctx context.Context, inID, outID string, workMinutes int) error

	// HasSameDirectionWithin reports whether the subject already has another
	// event of the same direction within +-window of t.
	HasSameDirectionWithin(ctx context.Context, subjectID int64, direction models.Direction, t time.Time, window time.Duration) (bool, error)

	// ListForRange returns the subject's events with deviceTime in [from, to),
	// ordered by deviceTime ascending.
	ListForRange(ctx context.Context, subjectID int64, from, to time.Time) ([]*models.AttendanceEvent, error)

	// ListFlagged returns flagged events across subjects in [from, to),
	// newest first, capped at limit.
	ListFlagged(ctx context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error)

	// ListUnpairedIn returns unpaired check-ins across subjects in [from, to),
	// newest first, capped at limit.
	ListUnpairedIn(ctx context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error)

	// ListLateArrivals returns late check-ins across subjects in [from, to),
	// newest first, capped at limit.
	ListLateArrivals(ctx context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error)

	// CountByDirection counts events of one direction in [from, to).
	CountByDirection(ctx context.Context, direction models.Direction, from, to time.Time) (int, error)

	// CountLate counts late check-ins in [from, to).
	CountLate(ctx context.Context, from, to time.Time) (int, error)

	// CountEarlyDepartures counts early check-outs in [from, to).
	CountEarlyDepartures(ctx context.Context, from, to time.Time) (int, error)

	// CountFlagged counts flagged events in [from, to).
	CountFlagged(ctx context.Context, from, to time.Time) (int, error)

	// SumWorkMinutes sums paired work minutes recorded on check-outs with
	// deviceTime in [from, to).
	SumWorkMinutes(ctx context.Context, from, to time.Time) (int, error)

	// DistinctSubjects returns subject IDs with at least one event of the
	// direction in [from, to).
	DistinctSubjects(ctx context.Context, direction models.Direction, from, to time.Time) ([]int64, error)

	// SubjectsWithEventsSince returns subject IDs with any event at or after
	// since.
	SubjectsWithEventsSince(ctx context.Context, since time.Time) ([]int64, error)

	// DeleteBySubject removes all of a subject's events. Only the external
	// subject-deletion cascade calls this.
	DeleteBySubject(ctx context.Context, subjectID int64) error
}
