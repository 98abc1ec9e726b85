// Package handler exposes the analytics rollups over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"timeclock/internal/analytics/models"
	"timeclock/internal/platform/middleware"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/httputil"
	"timeclock/pkg/requestcontext"
)

// Service defines the analytics read operations.
type Service interface {
	Overview(ctx context.Context) (*models.Overview, error)
	Trends(ctx context.Context, days int) (*models.Trends, error)
	Anomalies(ctx context.Context) (*models.Anomalies, error)
}

// Handler handles analytics endpoints.
type Handler struct {
	analytics    Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

// New creates a new analytics Handler.
func New(analytics Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{analytics: analytics, logger: logger, jwtValidator: jwtValidator}
}

// Register registers the analytics routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Get("/overview", h.handleOverview)
	router.Get("/trends", h.handleTrends)
	router.Get("/anomalies", h.handleAnomalies)

	r.Mount("/analytics", router)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ov, err := h.analytics.Overview(ctx)
	if err != nil {
		h.writeFailure(ctx, w, "overview failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ov)
}

// handleTrends reads the window from the days query parameter; the service
// clamps it, so out-of-range values are served rather than rejected.
func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid days parameter"))
			return
		}
		days = parsed
	}

	trends, err := h.analytics.Trends(ctx, days)
	if err != nil {
		h.writeFailure(ctx, w, "trends failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trends)
}

func (h *Handler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	anomalies, err := h.analytics.Anomalies(ctx)
	if err != nil {
		h.writeFailure(ctx, w, "anomalies failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, anomalies)
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
