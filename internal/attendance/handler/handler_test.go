package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attmodels "timeclock/internal/attendance/models"
	"timeclock/internal/jwttoken"
	"timeclock/internal/rotcode"
	dErrors "timeclock/pkg/errors"
)

type stubService struct {
	selfCheckResult *attmodels.SelfCheckResult
	selfCheckErr    error
	syncResult      *attmodels.SyncResult
	syncErr         error

	gotActorID   int64
	gotSubjectID int64
	gotRepItems  []attmodels.RepresentativeSyncItem
	gotOffItems  []attmodels.OfflineSyncItem
}

func (s *stubService) SelfCheck(_ context.Context, _ attmodels.SelfCheckRequest) (*attmodels.SelfCheckResult, error) {
	return s.selfCheckResult, s.selfCheckErr
}

func (s *stubService) RepresentativeSync(_ context.Context, actorID int64, items []attmodels.RepresentativeSyncItem) (*attmodels.SyncResult, error) {
	s.gotActorID = actorID
	s.gotRepItems = items
	return s.syncResult, s.syncErr
}

func (s *stubService) OfflineKioskSync(_ context.Context, subjectID int64, items []attmodels.OfflineSyncItem) (*attmodels.SyncResult, error) {
	s.gotSubjectID = subjectID
	s.gotOffItems = items
	return s.syncResult, s.syncErr
}

type stubCodes struct {
	code rotcode.Code
	err  error
}

func (s *stubCodes) DisplayCode(_ context.Context, _ string) (rotcode.Code, error) {
	return s.code, s.err
}

type stubValidator struct {
	subjectID int64
	role      string
	err       error
}

func (v *stubValidator) ValidateToken(string) (*jwttoken.Claims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &jwttoken.Claims{SubjectID: v.subjectID, Role: v.role}, nil
}

func newServer(svc *stubService, codes *stubCodes, validator *stubValidator) *httptest.Server {
	h := New(svc, codes, slog.New(slog.NewTextHandler(io.Discard, nil)), validator)
	r := chi.NewRouter()
	h.Register(r)
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestSelfCheckEndpoint(t *testing.T) {
	direction := attmodels.DirectionIn
	minutes := 330

	t.Run("success", func(t *testing.T) {
		svc := &stubService{selfCheckResult: &attmodels.SelfCheckResult{
			EventID:     "abc",
			Direction:   direction,
			WorkMinutes: &minutes,
		}}
		srv := newServer(svc, &stubCodes{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := doJSON(t, http.MethodPost, srv.URL+"/attendance/check",
			`{"deviceTime":"2026-01-28T09:30:00Z","kioskCode":"lobby-1","code":"123456"}`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result attmodels.SelfCheckResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "abc", result.EventID)
		assert.Equal(t, direction, result.Direction)
		require.NotNil(t, result.WorkMinutes)
		assert.Equal(t, 330, *result.WorkMinutes)
	})

	t.Run("domain errors map onto status codes", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{"duplicate", dErrors.New(dErrors.CodeConflict, "event already recorded"), http.StatusConflict},
			{"bad code", dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code"), http.StatusUnauthorized},
			{"disabled", dErrors.New(dErrors.CodeForbidden, "self-check is disabled"), http.StatusForbidden},
			{"unknown kiosk", dErrors.New(dErrors.CodeBadRequest, "unknown kiosk"), http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &stubService{selfCheckErr: tt.err}
				srv := newServer(svc, &stubCodes{}, &stubValidator{subjectID: 7, role: "worker"})
				defer srv.Close()

				resp := doJSON(t, http.MethodPost, srv.URL+"/attendance/check",
					`{"deviceTime":"2026-01-28T09:30:00Z","kioskCode":"lobby-1","code":"123456"}`)
				defer resp.Body.Close()
				assert.Equal(t, tt.want, resp.StatusCode)
			})
		}
	})

	t.Run("missing bearer token", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubCodes{}, &stubValidator{})
		defer srv.Close()

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/attendance/check", strings.NewReader(`{}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubCodes{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := doJSON(t, http.MethodPost, srv.URL+"/attendance/check", `{not json`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSyncEndpoints(t *testing.T) {
	result := &attmodels.SyncResult{
		SyncedCount: 1,
		Synced: []attmodels.SyncedItem{
			{EventID: "e1", SubjectID: 100, Direction: attmodels.DirectionIn},
		},
		Duplicates: []string{},
		Errors:     []attmodels.SyncError{},
	}

	t.Run("representative batch passes token principal as actor", func(t *testing.T) {
		svc := &stubService{syncResult: result}
		srv := newServer(svc, &stubCodes{}, &stubValidator{subjectID: 42, role: "representative"})
		defer srv.Close()

		resp := doJSON(t, http.MethodPost, srv.URL+"/attendance/sync",
			`{"logs":[{"subjectId":100,"deviceTime":"2026-01-28 09:00:00","deviceTimezone":"Asia/Almaty"}]}`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, int64(42), svc.gotActorID)
		require.Len(t, svc.gotRepItems, 1)
		assert.Equal(t, int64(100), svc.gotRepItems[0].SubjectID)

		var got attmodels.SyncResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, 1, got.SyncedCount)
	})

	t.Run("offline batch passes token principal as subject", func(t *testing.T) {
		svc := &stubService{syncResult: result}
		srv := newServer(svc, &stubCodes{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := doJSON(t, http.MethodPost, srv.URL+"/attendance/kiosk-sync",
			`{"logs":[{"kioskCode":"lobby-1","deviceTime":"2026-01-28T09:00:00Z","scannedCode":"123456"}]}`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, int64(7), svc.gotSubjectID)
		require.Len(t, svc.gotOffItems, 1)
		assert.Equal(t, "lobby-1", svc.gotOffItems[0].KioskCode)
	})
}

func TestDisplayCodeEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		codes := &stubCodes{code: rotcode.Code{
			Code:             "123456",
			ExpiresAt:        time.Date(2026, 1, 28, 9, 0, 30, 0, time.UTC),
			RemainingSeconds: 18,
			RefreshSeconds:   30,
		}}
		srv := newServer(&stubService{}, codes, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := doJSON(t, http.MethodGet, srv.URL+"/attendance/code?kiosk=lobby-1", "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var code rotcode.Code
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&code))
		assert.Equal(t, "123456", code.Code)
		assert.Equal(t, 30, code.RefreshSeconds)
	})

	t.Run("missing kiosk parameter", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubCodes{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := doJSON(t, http.MethodGet, srv.URL+"/attendance/code", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
