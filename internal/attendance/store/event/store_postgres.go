package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"timeclock/internal/attendance/models"
)

// PostgresStore persists attendance events in PostgreSQL. The unique index
// on the identity column is the atomic de-duplication boundary for racing
// inserts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const eventColumns = `id, subject_id, actor_id, kiosk_id, direction, device_time,
	device_timezone, sync_time, sync_status, flagged, flag_reason, latitude,
	longitude, paired_event_id, work_minutes, is_late, is_early_departure,
	is_overtime, overtime_minutes`

func (s *PostgresStore) Insert(ctx context.Context, e *models.AttendanceEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		e.ID, e.SubjectID, e.ActorID, e.KioskID, e.Direction, e.DeviceTime,
		e.DeviceTimezone, e.SyncTime, e.SyncStatus, e.Flagged, nullableString(e.FlagReason),
		e.Latitude, e.Longitude, e.PairedEventID, e.WorkMinutes, e.IsLate,
		e.IsEarlyDeparture, e.IsOvertime, e.OvertimeMinutes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.AttendanceEvent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM attendance_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) LatestBefore(ctx context.Context, subjectID int64, t time.Time, window time.Duration) (*models.AttendanceEvent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE subject_id = $1 AND device_time < $2 AND device_time >= $3
		ORDER BY device_time DESC LIMIT 1`,
		subjectID, t, t.Add(-window),
	)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest before: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) LatestUnpairedIn(ctx context.Context, subjectID int64, t time.Time, window time.Duration) (*models.AttendanceEvent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE subject_id = $1 AND direction = 'in' AND paired_event_id IS NULL
		  AND device_time < $2 AND device_time >= $3
		ORDER BY device_time DESC LIMIT 1`,
		subjectID, t, t.Add(-window),
	)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest unpaired in: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) SetPaired(ctx context.Context, inID, outID string, workMinutes int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attendance_events
		SET paired_event_id = $2, work_minutes = $3
		WHERE id = $1`,
		inID, outID, workMinutes,
	)
	if err != nil {
		return fmt.Errorf("set paired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HasSameDirectionWithin(ctx context.Context, subjectID int64, direction models.Direction, t time.Time, window time.Duration) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_events
			WHERE subject_id = $1 AND direction = $2
			  AND device_time BETWEEN $3 AND $4
		)`,
		subjectID, direction, t.Add(-window), t.Add(window),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("same direction within: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListForRange(ctx context.Context, subjectID int64, from, to time.Time) ([]*models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE subject_id = $1 AND device_time >= $2 AND device_time < $3
		ORDER BY device_time ASC`,
		subjectID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list for range: %w", err)
	}
	return scanEvents(rows)
}

func (s *PostgresStore) ListFlagged(ctx context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE flagged AND device_time >= $1 AND device_time < $2
		ORDER BY device_time DESC LIMIT $3`,
		from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list flagged: %w", err)
	}
	return scanEvents(rows)
}

func (s *PostgresStore) ListUnpairedIn(ctx context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE direction = 'in' AND paired_event_id IS NULL
		  AND device_time >= $1 AND device_time < $2
		ORDER BY device_time DESC LIMIT $3`,
		from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unpaired in: %w", err)
	}
	return scanEvents(rows)
}

func (s *PostgresStore) ListLateArrivals(ctx context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE is_late AND device_time >= $1 AND device_time < $2
		ORDER BY device_time DESC LIMIT $3`,
		from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list late arrivals: %w", err)
	}
	return scanEvents(rows)
}

func (s *PostgresStore) CountByDirection(ctx context.Context, direction models.Direction, from, to time.Time) (int, error) {
	return s.countWhere(ctx, `direction = $3`, from, to, direction)
}

func (s *PostgresStore) CountLate(ctx context.Context, from, to time.Time) (int, error) {
	return s.countWhere(ctx, `is_late`, from, to)
}

func (s *PostgresStore) CountEarlyDepartures(ctx context.Context, from, to time.Time) (int, error) {
	return s.countWhere(ctx, `is_early_departure`, from, to)
}

func (s *PostgresStore) CountFlagged(ctx context.Context, from, to time.Time) (int, error) {
	return s.countWhere(ctx, `flagged`, from, to)
}

func (s *PostgresStore) countWhere(ctx context.Context, cond string, from, to time.Time, args ...any) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM attendance_events WHERE device_time >= $1 AND device_time < $2 AND ` + cond
	err := s.pool.QueryRow(ctx, query, append([]any{from, to}, args...)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SumWorkMinutes(ctx context.Context, from, to time.Time) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(work_minutes), 0) FROM attendance_events
		WHERE direction = 'out' AND work_minutes IS NOT NULL
		  AND device_time >= $1 AND device_time < $2`,
		from, to,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum work minutes: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) DistinctSubjects(ctx context.Context, direction models.Direction, from, to time.Time) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT subject_id FROM attendance_events
		WHERE direction = $1 AND device_time >= $2 AND device_time < $3
		ORDER BY subject_id`,
		direction, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("distinct subjects: %w", err)
	}
	return scanInt64s(rows)
}

func (s *PostgresStore) SubjectsWithEventsSince(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT subject_id FROM attendance_events
		WHERE device_time >= $1
		ORDER BY subject_id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("subjects with events since: %w", err)
	}
	return scanInt64s(rows)
}

func (s *PostgresStore) DeleteBySubject(ctx context.Context, subjectID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM attendance_events WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete by subject: %w", err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.AttendanceEvent, error) {
	var e models.AttendanceEvent
	var flagReason *string
	err := row.Scan(
		&e.ID, &e.SubjectID, &e.ActorID, &e.KioskID, &e.Direction, &e.DeviceTime,
		&e.DeviceTimezone, &e.SyncTime, &e.SyncStatus, &e.Flagged, &flagReason,
		&e.Latitude, &e.Longitude, &e.PairedEventID, &e.WorkMinutes, &e.IsLate,
		&e.IsEarlyDeparture, &e.IsOvertime, &e.OvertimeMinutes,
	)
	if err != nil {
		return nil, err
	}
	if flagReason != nil {
		e.FlagReason = *flagReason
	}
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*models.AttendanceEvent, error) {
	defer rows.Close()
	var out []*models.AttendanceEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanInt64s(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
