// Package handler exposes summary reads over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"timeclock/internal/platform/middleware"
	"timeclock/internal/summary/models"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/httputil"
	"timeclock/pkg/requestcontext"
)

// Service defines the summary read operations.
type Service interface {
	ForPeriod(ctx context.Context, subjectID int64, periodType models.PeriodType, date time.Time) (*models.WorkSummary, error)
}

// Handler handles summary endpoints.
type Handler struct {
	summaries    Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

// New creates a new summary Handler.
func New(summaries Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{summaries: summaries, logger: logger, jwtValidator: jwtValidator}
}

// Register registers the summary routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Get("/{subject}/{period}", h.handleGetSummary)

	r.Mount("/summaries", router)
}

// handleGetSummary serves the rollup for a subject and period, anchored on
// the date query parameter (today when absent). Workers may only read their
// own summaries.
func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := strconv.ParseInt(chi.URLParam(r, "subject"), 10, 64)
	if err != nil || subjectID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid subject id"))
		return
	}
	periodType := models.PeriodType(chi.URLParam(r, "period"))
	if !periodType.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid period type"))
		return
	}

	date := requestcontext.Now(ctx)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid date, want YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	if requestcontext.Role(ctx) == "worker" && requestcontext.SubjectID(ctx) != subjectID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "workers may only read their own summaries"))
		return
	}

	sum, err := h.summaries.ForPeriod(ctx, subjectID, periodType, date)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "summary read failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "summary read failed"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}
