package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timeclock/internal/summary/models"
)

// PostgresStore persists summaries in PostgreSQL. The unique index on
// (subject_id, period_type, period_start) makes Put an idempotent upsert, so
// racing recomputes resolve last-writer-wins.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const summaryColumns = `subject_id, period_type, period_start, period_end,
	total_minutes, regular_minutes, overtime_minutes, days_worked, days_absent,
	late_arrivals, early_departures, missing_checkins, missing_checkouts,
	calculated_at, is_dirty, source_hash`

func (s *PostgresStore) Get(ctx context.Context, subjectID int64, periodType models.PeriodType, periodStart time.Time) (*models.WorkSummary, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+summaryColumns+` FROM work_summaries
		WHERE subject_id = $1 AND period_type = $2 AND period_start = $3`,
		subjectID, periodType, periodStart,
	)
	sum, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) Put(ctx context.Context, summary *models.WorkSummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO work_summaries (`+summaryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (subject_id, period_type, period_start) DO UPDATE SET
			period_end = EXCLUDED.period_end,
			total_minutes = EXCLUDED.total_minutes,
			regular_minutes = EXCLUDED.regular_minutes,
			overtime_minutes = EXCLUDED.overtime_minutes,
			days_worked = EXCLUDED.days_worked,
			days_absent = EXCLUDED.days_absent,
			late_arrivals = EXCLUDED.late_arrivals,
			early_departures = EXCLUDED.early_departures,
			missing_checkins = EXCLUDED.missing_checkins,
			missing_checkouts = EXCLUDED.missing_checkouts,
			calculated_at = EXCLUDED.calculated_at,
			is_dirty = EXCLUDED.is_dirty,
			source_hash = EXCLUDED.source_hash`,
		summary.SubjectID, summary.PeriodType, summary.PeriodStart, summary.PeriodEnd,
		summary.TotalMinutes, summary.RegularMinutes, summary.OvertimeMinutes,
		summary.DaysWorked, summary.DaysAbsent, summary.LateArrivals,
		summary.EarlyDepartures, summary.MissingCheckins, summary.MissingCheckouts,
		summary.CalculatedAt, summary.IsDirty, nullableHash(summary.SourceHash),
	)
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkDirtyOverlapping(ctx context.Context, subjectID int64, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE work_summaries SET is_dirty = TRUE
		WHERE subject_id = $1 AND period_start <= $2 AND period_end > $2
		  AND NOT is_dirty`,
		subjectID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("mark dirty: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteBySubject(ctx context.Context, subjectID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM work_summaries WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete summaries: %w", err)
	}
	return nil
}

func scanSummary(row pgx.Row) (*models.WorkSummary, error) {
	var sum models.WorkSummary
	var sourceHash *string
	err := row.Scan(
		&sum.SubjectID, &sum.PeriodType, &sum.PeriodStart, &sum.PeriodEnd,
		&sum.TotalMinutes, &sum.RegularMinutes, &sum.OvertimeMinutes,
		&sum.DaysWorked, &sum.DaysAbsent, &sum.LateArrivals,
		&sum.EarlyDepartures, &sum.MissingCheckins, &sum.MissingCheckouts,
		&sum.CalculatedAt, &sum.IsDirty, &sourceHash,
	)
	if err != nil {
		return nil, err
	}
	if sourceHash != nil {
		sum.SourceHash = *sourceHash
	}
	return &sum, nil
}

func nullableHash(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
