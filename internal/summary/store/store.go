// Package store persists work-summary rollups.
package store

import (
	"context"
	"errors"
	"time"

	"timeclock/internal/summary/models"
)

// ErrNotFound is returned when no summary exists for the requested key.
var ErrNotFound = errors.New("summary not found")

// Store persists summaries keyed by (subject, period type, period start).
type Store interface {
	// Get returns the cached row for the exact key.
	Get(ctx context.Context, subjectID int64, periodType models.PeriodType, periodStart time.Time) (*models.WorkSummary, error)

	// Put replaces the whole row for the summary's key, inserting if absent.
	Put(ctx context.Context, summary *models.WorkSummary) error

	// MarkDirtyOverlapping flags every cached row of the subject whose period
	// contains at, so the next read recomputes instead of serving stale
	// totals.
	MarkDirtyOverlapping(ctx context.Context, subjectID int64, at time.Time) (int, error)

	// DeleteBySubject removes all rows for a subject.
	DeleteBySubject(ctx context.Context, subjectID int64) error
}
