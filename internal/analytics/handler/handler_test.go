package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/analytics/models"
	"timeclock/internal/jwttoken"
	dErrors "timeclock/pkg/errors"
)

type stubService struct {
	gotDays     int
	overviewErr error
}

func (s *stubService) Overview(context.Context) (*models.Overview, error) {
	if s.overviewErr != nil {
		return nil, s.overviewErr
	}
	return &models.Overview{Date: "2026-01-28", CheckinsToday: 3, CurrentlyWorking: 2}, nil
}

func (s *stubService) Trends(_ context.Context, days int) (*models.Trends, error) {
	s.gotDays = days
	return &models.Trends{Days: days}, nil
}

func (s *stubService) Anomalies(context.Context) (*models.Anomalies, error) {
	return &models.Anomalies{SilentSubjects: []int64{3}}, nil
}

type stubValidator struct{}

func (stubValidator) ValidateToken(string) (*jwttoken.Claims, error) {
	return &jwttoken.Claims{SubjectID: 1, Role: "manager"}, nil
}

func newServer(svc *stubService) *httptest.Server {
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), stubValidator{})
	r := chi.NewRouter()
	h.Register(r)
	return httptest.NewServer(r)
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

func TestOverviewEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newServer(&stubService{})
		defer srv.Close()

		resp := get(t, srv.URL+"/analytics/overview")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ov models.Overview
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ov))
		assert.Equal(t, "2026-01-28", ov.Date)
		assert.Equal(t, 2, ov.CurrentlyWorking)
	})

	t.Run("internal error is masked", func(t *testing.T) {
		srv := newServer(&stubService{overviewErr: dErrors.New(dErrors.CodeInternal, "pool exhausted")})
		defer srv.Close()

		resp := get(t, srv.URL+"/analytics/overview")
		defer resp.Body.Close()
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "pool exhausted")
	})

	t.Run("missing bearer token", func(t *testing.T) {
		srv := newServer(&stubService{})
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/analytics/overview")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTrendsEndpoint(t *testing.T) {
	t.Run("default window", func(t *testing.T) {
		svc := &stubService{}
		srv := newServer(svc)
		defer srv.Close()

		resp := get(t, srv.URL+"/analytics/trends")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 30, svc.gotDays)
	})

	t.Run("explicit days passed through", func(t *testing.T) {
		svc := &stubService{}
		srv := newServer(svc)
		defer srv.Close()

		resp := get(t, srv.URL+"/analytics/trends?days=14")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 14, svc.gotDays)
	})

	t.Run("non-numeric days rejected", func(t *testing.T) {
		srv := newServer(&stubService{})
		defer srv.Close()

		resp := get(t, srv.URL+"/analytics/trends?days=week")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAnomaliesEndpoint(t *testing.T) {
	srv := newServer(&stubService{})
	defer srv.Close()

	resp := get(t, srv.URL+"/analytics/anomalies")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var an models.Anomalies
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&an))
	assert.Equal(t, []int64{3}, an.SilentSubjects)
}
