// Package store persists kiosks. CRUD beyond lookup and heartbeat lives in
// the external admin service.
package store

import (
	"context"
	"errors"
	"time"

	"timeclock/internal/kiosk/models"
)

// ErrNotFound signals an unknown kiosk code.
var ErrNotFound = errors.New("kiosk not found")

// Store is the kiosk persistence contract.
type Store interface {
	// GetByCode returns the kiosk or ErrNotFound.
	GetByCode(ctx context.Context, code string) (*models.Kiosk, error)

	// TouchHeartbeat records kiosk liveness.
	TouchHeartbeat(ctx context.Context, code string, at time.Time) error
}
