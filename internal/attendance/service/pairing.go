package service

import (
	"context"
	"time"

	"timeclock/internal/attendance/models"
	"timeclock/internal/workhours"
)

// toggleWindow bounds how far back toggle detection and pairing look. An
// open check-in older than this is considered abandoned: the next scan
// starts a fresh cycle instead of closing a day-old interval.
const toggleWindow = 24 * time.Hour

// classifyIn sets the lateness flag on a check-in. Lateness compares the
// event's local wall time against workStart plus the threshold on the same
// calendar day; arrival exactly at the threshold is on time.
func classifyIn(e *models.AttendanceEvent, local time.Time, cfg workhours.Config) {
	start, err := cfg.WorkStartOn(local)
	if err != nil {
		return
	}
	late := local.After(start.Add(time.Duration(cfg.LateThresholdMinutes) * time.Minute))
	e.IsLate = &late
}

// pairOut matches a check-out against the subject's most recent open
// check-in and derives the interval facts on the check-out side. The caller
// links the check-in after the check-out is persisted. Returns the matched
// check-in, or nil when the check-out stays unpaired.
func (s *Service) pairOut(ctx context.Context, e *models.AttendanceEvent, local time.Time, cfg workhours.Config) (*models.AttendanceEvent, error) {
	in, err := s.events.LatestUnpairedIn(ctx, e.SubjectID, e.DeviceTime, toggleWindow)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}

	minutes := int(e.DeviceTime.Sub(in.DeviceTime).Minutes())
	e.WorkMinutes = &minutes
	paired := in.ID
	e.PairedEventID = &paired

	overtime := minutes > cfg.RegularWorkMinutes
	e.IsOvertime = &overtime
	if overtime {
		extra := minutes - cfg.RegularWorkMinutes
		e.OvertimeMinutes = &extra
	}

	if end, err := cfg.WorkEndOn(local); err == nil {
		early := local.Before(end.Add(-time.Duration(cfg.EarlyDepartureThresholdMinutes) * time.Minute))
		e.IsEarlyDeparture = &early
	}

	return in, nil
}

// applyAnomalyFlags runs the advisory checks shared by all channels. Flags
// mark the event for review; they never stop it from being stored.
func (s *Service) applyAnomalyFlags(ctx context.Context, e *models.AttendanceEvent, now time.Time, cfg workhours.Config) error {
	if e.DeviceTime.After(now) {
		e.AddFlag(models.FlagFutureTimestamp)
	}

	window := time.Duration(cfg.DuplicateScanWindowMinutes) * time.Minute
	if window > 0 {
		near, err := s.events.HasSameDirectionWithin(ctx, e.SubjectID, e.Direction, e.DeviceTime, window)
		if err != nil {
			return err
		}
		if near {
			e.AddFlag(models.FlagDuplicateWindow)
		}
	}
	return nil
}
