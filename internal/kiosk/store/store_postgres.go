package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timeclock/internal/kiosk/models"
)

// PostgresStore persists kiosks in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*models.Kiosk, error) {
	var k models.Kiosk
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, secret_token, status, last_heartbeat_at
		FROM kiosks WHERE code = $1`,
		code,
	).Scan(&k.ID, &k.Code, &k.SecretToken, &k.Status, &k.LastHeartbeatAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get kiosk: %w", err)
	}
	return &k, nil
}

func (s *PostgresStore) TouchHeartbeat(ctx context.Context, code string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE kiosks SET last_heartbeat_at = $2 WHERE code = $1`,
		code, at,
	)
	if err != nil {
		return fmt.Errorf("touch heartbeat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
