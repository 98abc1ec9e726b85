// Package workhours resolves the per-subject work-hours configuration that
// pairing and aggregation classify against.
package workhours

import (
	"context"
	"fmt"
	"time"

	"timeclock/internal/settings"
)

// Config is the resolved work-hours value for one subject at one call.
type Config struct {
	WorkStart                      string // "HH:MM"
	WorkEnd                        string // "HH:MM"
	LateThresholdMinutes           int
	EarlyDepartureThresholdMinutes int
	RegularWorkMinutes             int
	WorkingDays                    []time.Weekday
	DuplicateScanWindowMinutes     int
}

// Default returns the safest fallback configuration. Aggregation uses it
// whenever resolution fails so reads never error on missing settings.
func Default() Config {
	return Config{
		WorkStart:                      "09:00",
		WorkEnd:                        "18:00",
		LateThresholdMinutes:           15,
		EarlyDepartureThresholdMinutes: 15,
		RegularWorkMinutes:             480,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		DuplicateScanWindowMinutes: 60,
	}
}

// IsWorkingDay reports whether d falls on a configured working day.
func (c Config) IsWorkingDay(d time.Time) bool {
	for _, wd := range c.WorkingDays {
		if d.Weekday() == wd {
			return true
		}
	}
	return false
}

// WorkStartOn anchors WorkStart on the calendar day of t, in t's location.
func (c Config) WorkStartOn(t time.Time) (time.Time, error) {
	return clockOn(t, c.WorkStart)
}

// WorkEndOn anchors WorkEnd on the calendar day of t, in t's location.
func (c Config) WorkEndOn(t time.Time) (time.Time, error) {
	return clockOn(t, c.WorkEnd)
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}

// DepartmentSource supplies a subject's active-department configuration.
// Department membership and CRUD live outside the core.
type DepartmentSource interface {
	// ActiveDepartmentConfig returns (config, true) when the subject belongs
	// to an active department that defines work hours.
	ActiveDepartmentConfig(ctx context.Context, subjectID int64) (Config, bool, error)
}

// Settings keys consulted for the global fallback configuration.
const (
	KeyWorkStart           = "work_hours.start"
	KeyWorkEnd             = "work_hours.end"
	KeyLateThreshold       = "work_hours.late_threshold_minutes"
	KeyEarlyThreshold      = "work_hours.early_departure_threshold_minutes"
	KeyRegularWorkMinutes  = "work_hours.regular_work_minutes"
	KeyWorkingDays         = "work_hours.working_days"
	KeyDuplicateScanWindow = "attendance.duplicate_scan_window_minutes"
)

// Resolver resolves the effective configuration per subject, per call.
// Resolution order: active department config, then global settings, then
// defaults. Nothing is cached on the subject.
type Resolver struct {
	departments DepartmentSource
	global      settings.Provider
}

func NewResolver(departments DepartmentSource, global settings.Provider) *Resolver {
	return &Resolver{departments: departments, global: global}
}

// Resolve returns the effective configuration for the subject. It never
// fails: any resolution error degrades to the default configuration.
func (r *Resolver) Resolve(ctx context.Context, subjectID int64) Config {
	if r == nil {
		return Default()
	}
	if r.departments != nil {
		cfg, ok, err := r.departments.ActiveDepartmentConfig(ctx, subjectID)
		if err == nil && ok {
			return cfg
		}
	}
	return r.fromGlobal(ctx)
}

func (r *Resolver) fromGlobal(ctx context.Context) Config {
	cfg := Default()
	if r.global == nil {
		return cfg
	}
	if v, ok := r.global.Get(ctx, KeyWorkStart); ok {
		cfg.WorkStart = v.StringOr(cfg.WorkStart)
	}
	if v, ok := r.global.Get(ctx, KeyWorkEnd); ok {
		cfg.WorkEnd = v.StringOr(cfg.WorkEnd)
	}
	if v, ok := r.global.Get(ctx, KeyLateThreshold); ok {
		cfg.LateThresholdMinutes = v.IntOr(cfg.LateThresholdMinutes)
	}
	if v, ok := r.global.Get(ctx, KeyEarlyThreshold); ok {
		cfg.EarlyDepartureThresholdMinutes = v.IntOr(cfg.EarlyDepartureThresholdMinutes)
	}
	if v, ok := r.global.Get(ctx, KeyRegularWorkMinutes); ok {
		cfg.RegularWorkMinutes = v.IntOr(cfg.RegularWorkMinutes)
	}
	if v, ok := r.global.Get(ctx, KeyWorkingDays); ok {
		if days, err := parseWorkingDays(v.StringOr("")); err == nil && len(days) > 0 {
			cfg.WorkingDays = days
		}
	}
	if v, ok := r.global.Get(ctx, KeyDuplicateScanWindow); ok {
		cfg.DuplicateScanWindowMinutes = v.IntOr(cfg.DuplicateScanWindowMinutes)
	}
	return cfg
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// parseWorkingDays parses a comma-separated day list like "mon,tue,wed".
func parseWorkingDays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			name := s[start:i]
			start = i + 1
			if name == "" {
				continue
			}
			day, ok := weekdayNames[name]
			if !ok {
				return nil, fmt.Errorf("unknown weekday %q", name)
			}
			days = append(days, day)
		}
	}
	return days, nil
}
