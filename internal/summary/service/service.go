// Package service computes memoized work-time rollups. Every read consults
// the summary store first and recomputes only rows that are absent or dirty;
// ingestion never computes summaries, it only invalidates them.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	attmodels "timeclock/internal/attendance/models"
	"timeclock/internal/summary/metrics"
	"timeclock/internal/summary/models"
	"timeclock/internal/summary/store"
	"timeclock/internal/workhours"
	"timeclock/pkg/audit"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/requestcontext"
)

// EventSource is the slice of the event store aggregation reads from.
type EventSource interface {
	ListForRange(ctx context.Context, subjectID int64, from, to time.Time) ([]*attmodels.AttendanceEvent, error)
}

// WorkHoursResolver resolves the per-subject configuration per call.
type WorkHoursResolver interface {
	Resolve(ctx context.Context, subjectID int64) workhours.Config
}

// AuditPublisher forwards review-relevant actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	events  EventSource
	store   store.Store
	hours   WorkHoursResolver
	audit   AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	// group deduplicates concurrent recomputes of the same row. Recompute is
	// a pure function of persisted events, so racing callers can share one
	// result.
	group singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func New(events EventSource, st store.Store, hours WorkHoursResolver, opts ...Option) (*Service, error) {
	if events == nil {
		return nil, fmt.Errorf("event source is required")
	}
	if st == nil {
		return nil, fmt.Errorf("summary store is required")
	}
	if hours == nil {
		return nil, fmt.Errorf("work hours resolver is required")
	}
	svc := &Service{events: events, store: st, hours: hours, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// MarkDirty flags every cached rollup of the subject whose period contains
// at. Called by ingestion after each stored event.
func (s *Service) MarkDirty(ctx context.Context, subjectID int64, at time.Time) error {
	marked, err := s.store.MarkDirtyOverlapping(ctx, subjectID, at)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalidate summaries")
	}
	if s.metrics != nil && marked > 0 {
		s.metrics.DirtyMarks.Add(float64(marked))
	}
	return nil
}

// DeleteBySubject drops every cached rollup for the subject. Part of the
// purge cascade that runs when the directory removes a subject.
func (s *Service) DeleteBySubject(ctx context.Context, subjectID int64) error {
	if err := s.store.DeleteBySubject(ctx, subjectID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete summaries")
	}
	return nil
}

// ForPeriod dispatches a summary read by period type, anchored on date.
func (s *Service) ForPeriod(ctx context.Context, subjectID int64, periodType models.PeriodType, date time.Time) (*models.WorkSummary, error) {
	switch periodType {
	case models.PeriodDaily:
		return s.Daily(ctx, subjectID, date)
	case models.PeriodWeekly:
		return s.Weekly(ctx, subjectID, date)
	case models.PeriodMonthly:
		return s.Monthly(ctx, subjectID, date.Year(), date.Month())
	case models.PeriodYearly:
		return s.Yearly(ctx, subjectID, date.Year())
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown period type")
	}
}

// Daily returns the rollup for one calendar date.
func (s *Service) Daily(ctx context.Context, subjectID int64, date time.Time) (*models.WorkSummary, error) {
	start := dayStart(date)
	end := start.AddDate(0, 0, 1)
	return s.materialize(ctx, subjectID, models.PeriodDaily, start, end, func(ctx context.Context) (*models.WorkSummary, error) {
		return s.computeDaily(ctx, subjectID, start, end)
	})
}

// Weekly returns the rollup for the Monday-started week containing date.
func (s *Service) Weekly(ctx context.Context, subjectID int64, date time.Time) (*models.WorkSummary, error) {
	start := weekStart(date)
	end := start.AddDate(0, 0, 7)
	return s.materialize(ctx, subjectID, models.PeriodWeekly, start, end, func(ctx context.Context) (*models.WorkSummary, error) {
		return s.computePeriod(ctx, subjectID, start, end)
	})
}

// Monthly returns the rollup for one calendar month.
func (s *Service) Monthly(ctx context.Context, subjectID int64, year int, month time.Month) (*models.WorkSummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return s.materialize(ctx, subjectID, models.PeriodMonthly, start, end, func(ctx context.Context) (*models.WorkSummary, error) {
		return s.computePeriod(ctx, subjectID, start, end)
	})
}

// Yearly accumulates the twelve monthly rollups and fingerprints them so a
// cached year can be checked against its sources without rereading events.
func (s *Service) Yearly(ctx context.Context, subjectID int64, year int) (*models.WorkSummary, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return s.materialize(ctx, subjectID, models.PeriodYearly, start, end, func(ctx context.Context) (*models.WorkSummary, error) {
		agg := &models.WorkSummary{SubjectID: subjectID}
		hash := sha256.New()
		for month := time.January; month <= time.December; month++ {
			monthly, err := s.Monthly(ctx, subjectID, year, month)
			if err != nil {
				return nil, err
			}
			agg.Accumulate(monthly)
			fmt.Fprintf(hash, "%s|%d|%d|%d|%d|%d|%d|%d|%d|%d;",
				monthly.PeriodStart.Format("2006-01-02"),
				monthly.TotalMinutes, monthly.RegularMinutes, monthly.OvertimeMinutes,
				monthly.DaysWorked, monthly.DaysAbsent, monthly.LateArrivals,
				monthly.EarlyDepartures, monthly.MissingCheckins, monthly.MissingCheckouts,
			)
		}
		agg.SourceHash = hex.EncodeToString(hash.Sum(nil))
		return agg, nil
	})
}

// Period computes the rollup for an arbitrary date range without memoizing
// the range itself; the daily rows it reads are memoized individually.
func (s *Service) Period(ctx context.Context, subjectID int64, startDate, endDate time.Time) (*models.WorkSummary, error) {
	start := dayStart(startDate)
	end := dayStart(endDate).AddDate(0, 0, 1)
	return s.computePeriod(ctx, subjectID, start, end)
}

// materialize is the memoization core: serve the cached row unless absent or
// dirty, otherwise recompute once (deduplicated across racing readers) and
// replace the whole row.
func (s *Service) materialize(ctx context.Context, subjectID int64, periodType models.PeriodType, start, end time.Time, compute func(context.Context) (*models.WorkSummary, error)) (*models.WorkSummary, error) {
	cached, err := s.store.Get(ctx, subjectID, periodType, start)
	if err == nil && !cached.IsDirty {
		if s.metrics != nil {
			s.metrics.CacheHits.WithLabelValues(string(periodType)).Inc()
		}
		return cached, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "summary lookup failed")
	}

	key := fmt.Sprintf("%d|%s|%s", subjectID, periodType, start.Format("2006-01-02"))
	v, err, _ := s.group.Do(key, func() (any, error) {
		sum, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		sum.SubjectID = subjectID
		sum.PeriodType = periodType
		sum.PeriodStart = start
		sum.PeriodEnd = end
		sum.CalculatedAt = requestcontext.Now(ctx)
		sum.IsDirty = false
		if err := s.store.Put(ctx, sum); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist summary")
		}
		if s.metrics != nil {
			s.metrics.Recomputes.WithLabelValues(string(periodType)).Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Action:    audit.ActionSummaryRecomputed,
			SubjectID: subjectID,
			Reason:    key,
		})
		return sum, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.WorkSummary).Clone(), nil
}

// computeDaily walks one date's events in time order, pairing sequentially.
// An in over an open interval closes nothing and charges a missing checkout
// to the prior in; an out with no open interval is a missing checkin. A
// trailing open in also counts as a missing checkout: the row is marked
// dirty again as soon as the closing event arrives.
func (s *Service) computeDaily(ctx context.Context, subjectID int64, start, end time.Time) (*models.WorkSummary, error) {
	events, err := s.events.ListForRange(ctx, subjectID, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read events")
	}
	cfg := s.hours.Resolve(ctx, subjectID)

	sum := &models.WorkSummary{SubjectID: subjectID}
	var openIn *attmodels.AttendanceEvent
	for _, e := range events {
		switch e.Direction {
		case attmodels.DirectionIn:
			if openIn != nil {
				sum.MissingCheckouts++
			}
			openIn = e
			if e.IsLate != nil && *e.IsLate {
				sum.LateArrivals++
			}
		case attmodels.DirectionOut:
			if openIn == nil {
				sum.MissingCheckins++
			} else {
				sum.TotalMinutes += int(e.DeviceTime.Sub(openIn.DeviceTime).Minutes())
				openIn = nil
			}
			if e.IsEarlyDeparture != nil && *e.IsEarlyDeparture {
				sum.EarlyDepartures++
			}
		}
	}
	if openIn != nil {
		sum.MissingCheckouts++
	}

	if sum.TotalMinutes > cfg.RegularWorkMinutes {
		sum.OvertimeMinutes = sum.TotalMinutes - cfg.RegularWorkMinutes
	}
	sum.RegularMinutes = sum.TotalMinutes - sum.OvertimeMinutes
	if sum.TotalMinutes > 0 {
		sum.DaysWorked = 1
	}
	return sum, nil
}

// computePeriod accumulates memoized daily rows over the working days of
// [start, end). Non-working days are skipped entirely; a working day without
// worked minutes counts as absent and contributes nothing else.
func (s *Service) computePeriod(ctx context.Context, subjectID int64, start, end time.Time) (*models.WorkSummary, error) {
	cfg := s.hours.Resolve(ctx, subjectID)
	agg := &models.WorkSummary{SubjectID: subjectID}
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if !cfg.IsWorkingDay(day) {
			continue
		}
		daily, err := s.Daily(ctx, subjectID, day)
		if err != nil {
			return nil, err
		}
		if daily.TotalMinutes > 0 {
			agg.Accumulate(daily)
		} else {
			agg.DaysAbsent++
		}
	}
	return agg, nil
}

func (s *Service) emitAudit(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", e.Action, "error", err)
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart snaps to the Monday of t's week.
func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
