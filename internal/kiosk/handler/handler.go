// Package handler exposes the kiosk device endpoints. Kiosk screens are not
// JWT principals; they identify themselves by kiosk code alone, and the only
// thing they can obtain is the rotating code they are about to display.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"timeclock/internal/platform/middleware"
	"timeclock/internal/rotcode"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/httputil"
	"timeclock/pkg/requestcontext"
)

// Service defines the kiosk device operations.
type Service interface {
	DisplayCode(ctx context.Context, code string) (rotcode.Code, error)
	Heartbeat(ctx context.Context, code string) error
}

// Handler handles kiosk device endpoints.
type Handler struct {
	kiosks Service
	logger *slog.Logger
}

// New creates a new kiosk Handler.
func New(kiosks Service, logger *slog.Logger) *Handler {
	return &Handler{kiosks: kiosks, logger: logger}
}

// Register registers the kiosk routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(10 * time.Second))
	router.Get("/{code}/code", h.handleDisplayCode)
	router.Post("/{code}/heartbeat", h.handleHeartbeat)

	r.Mount("/kiosks", router)
}

func (h *Handler) handleDisplayCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := h.kiosks.DisplayCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		h.writeFailure(ctx, w, "display code failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, code)
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.kiosks.Heartbeat(ctx, chi.URLParam(r, "code")); err != nil {
		h.writeFailure(ctx, w, "heartbeat failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
		return
	}
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
