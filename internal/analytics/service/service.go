// Package service computes the derived analytics rollups. Everything is a
// pure read over events; nothing is persisted, and the only state is a
// short-TTL cache in front of the overview.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"timeclock/internal/analytics/cache"
	"timeclock/internal/analytics/metrics"
	"timeclock/internal/analytics/models"
	attmodels "timeclock/internal/attendance/models"
	"timeclock/internal/directory"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/requestcontext"
)

const (
	defaultCacheTTL = 30 * time.Second
	// anomalyListCap bounds every anomaly list so a badly-behaved week cannot
	// flood the response.
	anomalyListCap = 50
	minTrendDays   = 7
	maxTrendDays   = 90
	// trendConcurrency bounds the per-day fan-out.
	trendConcurrency = 8
	silentWindow     = 7 * 24 * time.Hour
)

// EventSource is the slice of the event store analytics reads from.
type EventSource interface {
	CountByDirection(ctx context.Context, direction attmodels.Direction, from, to time.Time) (int, error)
	CountLate(ctx context.Context, from, to time.Time) (int, error)
	CountEarlyDepartures(ctx context.Context, from, to time.Time) (int, error)
	CountFlagged(ctx context.Context, from, to time.Time) (int, error)
	SumWorkMinutes(ctx context.Context, from, to time.Time) (int, error)
	DistinctSubjects(ctx context.Context, direction attmodels.Direction, from, to time.Time) ([]int64, error)
	ListFlagged(ctx context.Context, from, to time.Time, limit int) ([]*attmodels.AttendanceEvent, error)
	ListUnpairedIn(ctx context.Context, from, to time.Time, limit int) ([]*attmodels.AttendanceEvent, error)
	ListLateArrivals(ctx context.Context, from, to time.Time, limit int) ([]*attmodels.AttendanceEvent, error)
	SubjectsWithEventsSince(ctx context.Context, since time.Time) ([]int64, error)
}

type Service struct {
	events   EventSource
	subjects directory.SubjectDirectory
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache enables overview caching. Without it every read computes live.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cacheTTL = ttl }
}

func New(events EventSource, subjects directory.SubjectDirectory, opts ...Option) (*Service, error) {
	if events == nil {
		return nil, fmt.Errorf("event source is required")
	}
	if subjects == nil {
		return nil, fmt.Errorf("subject directory is required")
	}
	svc := &Service{
		events:   events,
		subjects: subjects,
		cacheTTL: defaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Overview returns today's at-a-glance rollup, served from cache when a
// recent copy exists. Cache failures degrade to a live computation.
func (s *Service) Overview(ctx context.Context) (*models.Overview, error) {
	now := requestcontext.Now(ctx)
	key := "timeclock:analytics:overview:" + now.UTC().Format("2006-01-02")

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "overview cache read failed", "error", err)
		} else if ok {
			var ov models.Overview
			if err := json.Unmarshal([]byte(raw), &ov); err == nil {
				s.countOverviewRead("hit")
				return &ov, nil
			}
			s.logger.WarnContext(ctx, "overview cache entry malformed", "error", err)
		}
	}
	s.countOverviewRead("miss")

	ov, err := s.computeOverview(ctx, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(ov); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
				s.logger.WarnContext(ctx, "overview cache write failed", "error", err)
			}
		}
	}
	return ov, nil
}

func (s *Service) computeOverview(ctx context.Context, now time.Time) (*models.Overview, error) {
	day := dayStart(now)
	dayEnd := day.AddDate(0, 0, 1)

	checkedIn, err := s.events.DistinctSubjects(ctx, attmodels.DirectionIn, day, dayEnd)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "overview checkins")
	}
	checkedOut, err := s.events.DistinctSubjects(ctx, attmodels.DirectionOut, day, dayEnd)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "overview checkouts")
	}
	flagged, err := s.events.CountFlagged(ctx, day, dayEnd)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "overview flagged")
	}
	weekMinutes, err := s.events.SumWorkMinutes(ctx, weekStart(now), dayEnd)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "overview week minutes")
	}
	monthMinutes, err := s.events.SumWorkMinutes(ctx, monthStart(now), dayEnd)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "overview month minutes")
	}
	active, err := s.subjects.ActiveSubjectIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "overview subjects")
	}

	outSet := make(map[int64]struct{}, len(checkedOut))
	for _, id := range checkedOut {
		outSet[id] = struct{}{}
	}
	working := 0
	for _, id := range checkedIn {
		if _, gone := outSet[id]; !gone {
			working++
		}
	}

	return &models.Overview{
		Date:              day.Format("2006-01-02"),
		CheckinsToday:     len(checkedIn),
		CheckoutsToday:    len(checkedOut),
		CurrentlyWorking:  working,
		ActiveSubjects:    len(active),
		AttendanceRate:    rate(len(checkedIn), len(active)),
		WeekTotalMinutes:  weekMinutes,
		MonthTotalMinutes: monthMinutes,
		FlaggedToday:      flagged,
		GeneratedAt:       now,
	}, nil
}

// Trends returns the per-day series for the trailing window, clamped to
// [7, 90] days and ending today. Per-day loads fan out with bounded
// concurrency; the first failure cancels the rest.
func (s *Service) Trends(ctx context.Context, days int) (*models.Trends, error) {
	if days < minTrendDays {
		days = minTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}
	if s.metrics != nil {
		s.metrics.TrendsDays.Observe(float64(days))
	}

	now := requestcontext.Now(ctx)
	active, err := s.subjects.ActiveSubjectIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "trends subjects")
	}
	activeCount := len(active)

	points := make([]models.TrendPoint, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendConcurrency)
	for i := 0; i < days; i++ {
		i := i
		day := dayStart(now).AddDate(0, 0, i-days+1)
		g.Go(func() error {
			point, err := s.trendPoint(gctx, day, activeCount)
			if err != nil {
				return err
			}
			points[i] = point
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "trends fan-out")
	}

	var avg models.TrendAverages
	for _, p := range points {
		avg.Checkins += float64(p.Checkins)
		avg.WorkHours += p.WorkHours
		avg.LateArrivals += float64(p.LateArrivals)
		avg.EarlyDepartures += float64(p.EarlyDepartures)
		avg.AttendanceRate += p.AttendanceRate
	}
	n := float64(days)
	avg.Checkins /= n
	avg.WorkHours /= n
	avg.LateArrivals /= n
	avg.EarlyDepartures /= n
	avg.AttendanceRate /= n

	return &models.Trends{Days: days, Points: points, Averages: avg}, nil
}

func (s *Service) trendPoint(ctx context.Context, day time.Time, activeCount int) (models.TrendPoint, error) {
	end := day.AddDate(0, 0, 1)
	checkins, err := s.events.CountByDirection(ctx, attmodels.DirectionIn, day, end)
	if err != nil {
		return models.TrendPoint{}, err
	}
	checkouts, err := s.events.CountByDirection(ctx, attmodels.DirectionOut, day, end)
	if err != nil {
		return models.TrendPoint{}, err
	}
	minutes, err := s.events.SumWorkMinutes(ctx, day, end)
	if err != nil {
		return models.TrendPoint{}, err
	}
	lateCount, err := s.events.CountLate(ctx, day, end)
	if err != nil {
		return models.TrendPoint{}, err
	}
	earlyCount, err := s.events.CountEarlyDepartures(ctx, day, end)
	if err != nil {
		return models.TrendPoint{}, err
	}
	present, err := s.events.DistinctSubjects(ctx, attmodels.DirectionIn, day, end)
	if err != nil {
		return models.TrendPoint{}, err
	}
	return models.TrendPoint{
		Date:            day.Format("2006-01-02"),
		Checkins:        checkins,
		Checkouts:       checkouts,
		WorkHours:       float64(minutes) / 60,
		LateArrivals:    lateCount,
		EarlyDepartures: earlyCount,
		AttendanceRate:  rate(len(present), activeCount),
	}, nil
}

// Anomalies gathers the capped review lists for the current week plus the
// subjects silent for the trailing seven days.
func (s *Service) Anomalies(ctx context.Context) (*models.Anomalies, error) {
	now := requestcontext.Now(ctx)
	week := weekStart(now)
	weekEnd := week.AddDate(0, 0, 7)

	flagged, err := s.events.ListFlagged(ctx, week, weekEnd, anomalyListCap)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anomalies flagged")
	}
	unpaired, err := s.events.ListUnpairedIn(ctx, week, weekEnd, anomalyListCap)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anomalies unpaired")
	}
	lateArrivals, err := s.events.ListLateArrivals(ctx, week, weekEnd, anomalyListCap)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anomalies late")
	}

	active, err := s.subjects.ActiveSubjectIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anomalies subjects")
	}
	recent, err := s.events.SubjectsWithEventsSince(ctx, now.Add(-silentWindow))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anomalies recent subjects")
	}
	recentSet := make(map[int64]struct{}, len(recent))
	for _, id := range recent {
		recentSet[id] = struct{}{}
	}
	silent := make([]int64, 0)
	for _, id := range active {
		if _, ok := recentSet[id]; ok {
			continue
		}
		silent = append(silent, id)
		if len(silent) == anomalyListCap {
			break
		}
	}

	return &models.Anomalies{
		FlaggedEvents:    flagged,
		UnpairedCheckins: unpaired,
		LateArrivals:     lateArrivals,
		SilentSubjects:   silent,
	}, nil
}

func (s *Service) countOverviewRead(outcome string) {
	if s.metrics != nil {
		s.metrics.OverviewReads.WithLabelValues(outcome).Inc()
	}
}

func rate(present, active int) float64 {
	if active == 0 {
		return 0
	}
	return float64(present) / float64(active)
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
