// Package models defines the persisted work-summary rollups.
package models

import "time"

// PeriodType is the rollup granularity.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodYearly  PeriodType = "yearly"
)

func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// WorkSummary is one memoized rollup row, unique per
// (SubjectID, PeriodType, PeriodStart). Reads serve the cached row unless
// IsDirty; ingestion marks overlapping rows dirty instead of recomputing
// inline.
type WorkSummary struct {
	SubjectID   int64      `json:"subjectId"`
	PeriodType  PeriodType `json:"periodType"`
	PeriodStart time.Time  `json:"periodStart"`
	PeriodEnd   time.Time  `json:"periodEnd"` // exclusive

	TotalMinutes     int `json:"totalMinutes"`
	RegularMinutes   int `json:"regularMinutes"`
	OvertimeMinutes  int `json:"overtimeMinutes"`
	DaysWorked       int `json:"daysWorked"`
	DaysAbsent       int `json:"daysAbsent"`
	LateArrivals     int `json:"lateArrivals"`
	EarlyDepartures  int `json:"earlyDepartures"`
	MissingCheckins  int `json:"missingCheckins"`
	MissingCheckouts int `json:"missingCheckouts"`

	CalculatedAt time.Time `json:"calculatedAt"`
	IsDirty      bool      `json:"-"`
	// SourceHash fingerprints the contributing rows of a yearly rollup so a
	// cached year can be validated without rereading twelve months.
	SourceHash string `json:"-"`
}

// Clone returns a copy so stores can hand out values without aliasing.
func (s *WorkSummary) Clone() *WorkSummary {
	c := *s
	return &c
}

// Accumulate folds a finer-grained summary into s.
func (s *WorkSummary) Accumulate(part *WorkSummary) {
	s.TotalMinutes += part.TotalMinutes
	s.RegularMinutes += part.RegularMinutes
	s.OvertimeMinutes += part.OvertimeMinutes
	s.DaysWorked += part.DaysWorked
	s.DaysAbsent += part.DaysAbsent
	s.LateArrivals += part.LateArrivals
	s.EarlyDepartures += part.EarlyDepartures
	s.MissingCheckins += part.MissingCheckins
	s.MissingCheckouts += part.MissingCheckouts
}
