package workhours

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"timeclock/internal/settings"
)

type fakeDepartments struct {
	cfg Config
	ok  bool
	err error
}

func (f *fakeDepartments) ActiveDepartmentConfig(context.Context, int64) (Config, bool, error) {
	return f.cfg, f.ok, f.err
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("department config wins when subject has an active department", func(t *testing.T) {
		dept := Default()
		dept.WorkStart = "07:30"
		r := NewResolver(&fakeDepartments{cfg: dept, ok: true}, settings.Static{
			KeyWorkStart: settings.String("10:00"),
		})
		assert.Equal(t, "07:30", r.Resolve(ctx, 1).WorkStart)
	})

	t.Run("global settings apply without a department", func(t *testing.T) {
		r := NewResolver(&fakeDepartments{}, settings.Static{
			KeyWorkStart:          settings.String("08:00"),
			KeyLateThreshold:      settings.Int(10),
			KeyRegularWorkMinutes: settings.Int(420),
			KeyWorkingDays:        settings.String("mon,tue,wed,thu,fri,sat"),
		})
		cfg := r.Resolve(ctx, 1)
		assert.Equal(t, "08:00", cfg.WorkStart)
		assert.Equal(t, 10, cfg.LateThresholdMinutes)
		assert.Equal(t, 420, cfg.RegularWorkMinutes)
		assert.Len(t, cfg.WorkingDays, 6)
		// Untouched keys keep defaults.
		assert.Equal(t, "18:00", cfg.WorkEnd)
	})

	t.Run("department lookup failure falls through to global", func(t *testing.T) {
		r := NewResolver(&fakeDepartments{err: errors.New("db down")}, settings.Static{
			KeyWorkEnd: settings.String("17:00"),
		})
		assert.Equal(t, "17:00", r.Resolve(ctx, 1).WorkEnd)
	})

	t.Run("mistyped setting value keeps the default", func(t *testing.T) {
		r := NewResolver(nil, settings.Static{
			KeyLateThreshold: settings.String("fifteen"),
		})
		assert.Equal(t, 15, r.Resolve(ctx, 1).LateThresholdMinutes)
	})

	t.Run("nil resolver degrades to defaults", func(t *testing.T) {
		var r *Resolver
		assert.Equal(t, Default(), r.Resolve(ctx, 1))
	})
}

func TestConfig_Anchors(t *testing.T) {
	cfg := Default()
	day := time.Date(2026, 1, 28, 14, 22, 0, 0, time.UTC)

	start, err := cfg.WorkStartOn(day)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), start)

	end, err := cfg.WorkEndOn(day)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 28, 18, 0, 0, 0, time.UTC), end)
}

func TestConfig_IsWorkingDay(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsWorkingDay(time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)))  // Wednesday
	assert.False(t, cfg.IsWorkingDay(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))) // Saturday
}
