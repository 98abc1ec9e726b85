package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/kiosk/models"
	"timeclock/internal/kiosk/store"
	"timeclock/internal/rotcode"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/requestcontext"
)

func newService(t *testing.T) (*Service, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemory()
	st.Seed(&models.Kiosk{ID: 1, Code: "lobby-1", SecretToken: "secret", Status: models.StatusActive})
	st.Seed(&models.Kiosk{ID: 2, Code: "basement", SecretToken: "secret2", Status: models.StatusMaintenance})
	svc, err := New(st)
	require.NoError(t, err)
	return svc, st
}

func TestResolveActive(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	k, err := svc.ResolveActive(ctx, "lobby-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), k.ID)

	_, err = svc.ResolveActive(ctx, "basement")
	require.Error(t, err)
	assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest), "non-active kiosk is rejected")

	_, err = svc.ResolveActive(ctx, "missing")
	require.Error(t, err)
	assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest))

	// Resolve without the status gate still finds the maintenance kiosk.
	k, err = svc.Resolve(ctx, "basement")
	require.NoError(t, err)
	assert.Equal(t, int64(2), k.ID)
}

func TestDisplayCode(t *testing.T) {
	svc, st := newService(t)
	now := time.Date(2026, 1, 28, 9, 0, 12, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	code, err := svc.DisplayCode(ctx, "lobby-1")
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)
	assert.True(t, rotcode.Verify("secret", code.Code, now))
	assert.Equal(t, 18, code.RemainingSeconds)

	// Fetching the code counts as a heartbeat.
	k, err := st.GetByCode(ctx, "lobby-1")
	require.NoError(t, err)
	require.NotNil(t, k.LastHeartbeatAt)
	assert.True(t, k.LastHeartbeatAt.Equal(now))

	_, err = svc.DisplayCode(ctx, "basement")
	require.Error(t, err, "non-active kiosks must not display codes")
}

func TestHeartbeat(t *testing.T) {
	svc, st := newService(t)
	now := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	require.NoError(t, svc.Heartbeat(ctx, "basement"), "maintenance kiosks still report liveness")
	k, err := st.GetByCode(ctx, "basement")
	require.NoError(t, err)
	require.NotNil(t, k.LastHeartbeatAt)

	require.Error(t, svc.Heartbeat(ctx, "missing"))
}
