// Package models defines the derived analytics payloads. Nothing here is
// persisted; every value is recomputed (or briefly cached) from events.
package models

import (
	"time"

	attmodels "timeclock/internal/attendance/models"
)

// Overview is the at-a-glance dashboard rollup for one day.
type Overview struct {
	Date              string    `json:"date"` // YYYY-MM-DD
	CheckinsToday     int       `json:"checkinsToday"`
	CheckoutsToday    int       `json:"checkoutsToday"`
	CurrentlyWorking  int       `json:"currentlyWorking"`
	ActiveSubjects    int       `json:"activeSubjects"`
	AttendanceRate    float64   `json:"attendanceRate"`
	WeekTotalMinutes  int       `json:"weekTotalMinutes"`
	MonthTotalMinutes int       `json:"monthTotalMinutes"`
	FlaggedToday      int       `json:"flaggedToday"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// TrendPoint is one day of the trends series.
type TrendPoint struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	Checkins         int     `json:"checkins"`
	Checkouts        int     `json:"checkouts"`
	WorkHours        float64 `json:"workHours"`
	LateArrivals     int     `json:"lateArrivals"`
	EarlyDepartures  int     `json:"earlyDepartures"`
	AttendanceRate  float64 `json:"attendanceRate"`
}

// TrendAverages are per-day means over the requested window.
type TrendAverages struct {
	Checkins        float64 `json:"checkins"`
	WorkHours       float64 `json:"workHours"`
	LateArrivals    float64 `json:"lateArrivals"`
	EarlyDepartures float64 `json:"earlyDepartures"`
	AttendanceRate  float64 `json:"attendanceRate"`
}

// Trends is the per-day series over a clamped window.
type Trends struct {
	Days     int           `json:"days"`
	Points   []TrendPoint  `json:"points"`
	Averages TrendAverages `json:"averages"`
}

// Anomalies gathers capped review lists.
type Anomalies struct {
	FlaggedEvents    []*attmodels.AttendanceEvent `json:"flaggedEvents"`
	UnpairedCheckins []*attmodels.AttendanceEvent `json:"unpairedCheckins"`
	LateArrivals     []*attmodels.AttendanceEvent `json:"lateArrivals"`
	SilentSubjects   []int64                      `json:"silentSubjects"`
}
