// Package handler exposes the ingestion channels over HTTP. Handlers stay
// thin: decode, delegate, encode; status mapping lives in pkg/errors.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	attmodels "timeclock/internal/attendance/models"
	"timeclock/internal/platform/middleware"
	"timeclock/internal/rotcode"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/httputil"
	"timeclock/pkg/requestcontext"
)

// Service defines the ingestion operations.
type Service interface {
	SelfCheck(ctx context.Context, req attmodels.SelfCheckRequest) (*attmodels.SelfCheckResult, error)
	RepresentativeSync(ctx context.Context, actorID int64, items []attmodels.RepresentativeSyncItem) (*attmodels.SyncResult, error)
	OfflineKioskSync(ctx context.Context, subjectID int64, items []attmodels.OfflineSyncItem) (*attmodels.SyncResult, error)
}

// CodeProvider serves the rotating code for a kiosk so a worker device can
// display what to scan against.
type CodeProvider interface {
	DisplayCode(ctx context.Context, kioskCode string) (rotcode.Code, error)
}

// Handler handles attendance ingestion endpoints.
type Handler struct {
	attendance   Service
	codes        CodeProvider
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

// New creates a new attendance Handler.
func New(attendance Service, codes CodeProvider, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		attendance:   attendance,
		codes:        codes,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Post("/check", h.handleSelfCheck)
	router.Post("/sync", h.handleRepresentativeSync)
	router.Post("/kiosk-sync", h.handleOfflineSync)
	router.Get("/code", h.handleDisplayCode)

	r.Mount("/attendance", router)
}

type syncRequest[T any] struct {
	Logs []T `json:"logs"`
}

func (h *Handler) handleSelfCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req attmodels.SelfCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid self-check request", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.attendance.SelfCheck(ctx, req)
	if err != nil {
		h.writeFailure(ctx, w, "self-check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRepresentativeSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncRequest[attmodels.RepresentativeSyncItem]
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid representative sync request", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.attendance.RepresentativeSync(ctx, requestcontext.SubjectID(ctx), req.Logs)
	if err != nil {
		h.writeFailure(ctx, w, "representative sync failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleOfflineSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncRequest[attmodels.OfflineSyncItem]
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid offline sync request", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.attendance.OfflineKioskSync(ctx, requestcontext.SubjectID(ctx), req.Logs)
	if err != nil {
		h.writeFailure(ctx, w, "offline sync failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleDisplayCode returns the rotating code for the kiosk named in the
// query, so a worker app can render the code stream a kiosk would show.
func (h *Handler) handleDisplayCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kioskCode := r.URL.Query().Get("kiosk")
	if kioskCode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "kiosk query parameter is required"))
		return
	}

	code, err := h.codes.DisplayCode(ctx, kioskCode)
	if err != nil {
		h.writeFailure(ctx, w, "display code failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, code)
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
	h.warn(ctx, msg, err)
	httputil.WriteError(w, err)
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
