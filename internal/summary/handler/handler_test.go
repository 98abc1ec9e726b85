package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/jwttoken"
	"timeclock/internal/summary/models"
)

type stubService struct {
	gotSubject int64
	gotPeriod  models.PeriodType
	gotDate    time.Time
}

func (s *stubService) ForPeriod(_ context.Context, subjectID int64, periodType models.PeriodType, date time.Time) (*models.WorkSummary, error) {
	s.gotSubject = subjectID
	s.gotPeriod = periodType
	s.gotDate = date
	return &models.WorkSummary{
		SubjectID:    subjectID,
		PeriodType:   periodType,
		TotalMinutes: 330,
	}, nil
}

type stubValidator struct {
	subjectID int64
	role      string
}

func (v *stubValidator) ValidateToken(string) (*jwttoken.Claims, error) {
	return &jwttoken.Claims{SubjectID: v.subjectID, Role: v.role}, nil
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func newServer(svc *stubService, validator *stubValidator) *httptest.Server {
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), validator)
	r := chi.NewRouter()
	h.Register(r)
	return httptest.NewServer(r)
}

func TestGetSummary(t *testing.T) {
	t.Run("worker reads own summary", func(t *testing.T) {
		svc := &stubService{}
		srv := newServer(svc, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := get(t, srv.URL+"/summaries/7/daily?date=2026-01-28")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var sum models.WorkSummary
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
		assert.Equal(t, 330, sum.TotalMinutes)
		assert.Equal(t, int64(7), svc.gotSubject)
		assert.Equal(t, models.PeriodDaily, svc.gotPeriod)
		assert.Equal(t, time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC), svc.gotDate)
	})

	t.Run("worker cannot read another subject", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := get(t, srv.URL+"/summaries/8/daily")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("manager reads any subject", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubValidator{subjectID: 1, role: "manager"})
		defer srv.Close()

		resp := get(t, srv.URL+"/summaries/8/weekly")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid period type", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := get(t, srv.URL+"/summaries/7/hourly")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid subject id", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := get(t, srv.URL+"/summaries/zero/daily")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid date", func(t *testing.T) {
		srv := newServer(&stubService{}, &stubValidator{subjectID: 7, role: "worker"})
		defer srv.Close()

		resp := get(t, srv.URL+"/summaries/7/daily?date=28-01-2026")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
