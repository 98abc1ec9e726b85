// Package service resolves kiosks for the ingestion channels and serves the
// rotating code a kiosk screen displays.
package service

import (
	"context"
	"errors"
	"log/slog"

	"timeclock/internal/kiosk/models"
	"timeclock/internal/kiosk/store"
	"timeclock/internal/rotcode"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/requestcontext"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("kiosk store is required")
	}
	svc := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ResolveActive returns the kiosk for code, rejecting unknown or non-active
// kiosks with a bad-request class error so ingestion can surface the
// distinct status the contract requires.
func (s *Service) ResolveActive(ctx context.Context, code string) (*models.Kiosk, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "kiosk code is required")
	}
	k, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown kiosk")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve kiosk")
	}
	if k.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeBadRequest, "kiosk is not active")
	}
	return k, nil
}

// Resolve returns the kiosk regardless of status. Offline sync uses it: a
// kiosk taken down for maintenance since the scan must still verify codes it
// displayed while it was up.
func (s *Service) Resolve(ctx context.Context, code string) (*models.Kiosk, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "kiosk code is required")
	}
	k, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown kiosk")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve kiosk")
	}
	return k, nil
}

// DisplayCode produces the rotating code the kiosk screen shows, and counts
// the fetch as a heartbeat.
func (s *Service) DisplayCode(ctx context.Context, code string) (rotcode.Code, error) {
	k, err := s.ResolveActive(ctx, code)
	if err != nil {
		return rotcode.Code{}, err
	}
	now := requestcontext.Now(ctx)
	if err := s.store.TouchHeartbeat(ctx, k.Code, now); err != nil {
		// Heartbeat bookkeeping must not block code display.
		s.logger.WarnContext(ctx, "kiosk heartbeat update failed",
			"kiosk", k.Code, "error", err)
	}
	return rotcode.Generate(k.SecretToken, now)
}

// Heartbeat records kiosk liveness.
func (s *Service) Heartbeat(ctx context.Context, code string) error {
	k, err := s.Resolve(ctx, code)
	if err != nil {
		return err
	}
	if err := s.store.TouchHeartbeat(ctx, k.Code, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record heartbeat")
	}
	return nil
}
