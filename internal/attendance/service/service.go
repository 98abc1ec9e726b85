// Package service implements attendance ingestion: three delivery channels
// of differing trust funnel into one normalize-toggle-dedup-pair-persist
// core.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timeclock/internal/attendance/identity"
	"timeclock/internal/attendance/metrics"
	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/store/event"
	"timeclock/internal/directory"
	kioskmodels "timeclock/internal/kiosk/models"
	"timeclock/internal/rotcode"
	"timeclock/internal/workhours"
	"timeclock/pkg/audit"
	dErrors "timeclock/pkg/errors"
	"timeclock/pkg/requestcontext"
)

// RoleWorker is the principal role allowed to self-check.
const RoleWorker = "worker"

// KioskResolver supplies kiosks to the ingestion channels.
type KioskResolver interface {
	// ResolveActive rejects unknown or non-active kiosks.
	ResolveActive(ctx context.Context, code string) (*kioskmodels.Kiosk, error)
	// Resolve returns the kiosk regardless of status, for offline sync.
	Resolve(ctx context.Context, code string) (*kioskmodels.Kiosk, error)
}

// WorkHoursResolver resolves the per-subject configuration per call.
type WorkHoursResolver interface {
	Resolve(ctx context.Context, subjectID int64) workhours.Config
}

// SummaryInvalidator marks cached summaries stale when an event lands
// inside their period, and drops them entirely when the subject is purged.
type SummaryInvalidator interface {
	MarkDirty(ctx context.Context, subjectID int64, at time.Time) error
	DeleteBySubject(ctx context.Context, subjectID int64) error
}

// AuditPublisher forwards review-relevant actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	events    event.Store
	kiosks    KioskResolver
	hours     WorkHoursResolver
	subjects  directory.SubjectDirectory
	summaries SummaryInvalidator
	audit     AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	locks     *subjectLocks

	selfCheckEnabled bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithSummaryInvalidator(inv SummaryInvalidator) Option {
	return func(s *Service) { s.summaries = inv }
}

func WithSubjectDirectory(dir directory.SubjectDirectory) Option {
	return func(s *Service) { s.subjects = dir }
}

func WithSelfCheckEnabled(enabled bool) Option {
	return func(s *Service) { s.selfCheckEnabled = enabled }
}

func New(events event.Store, kiosks KioskResolver, hours WorkHoursResolver, opts ...Option) (*Service, error) {
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if kiosks == nil {
		return nil, fmt.Errorf("kiosk resolver is required")
	}
	if hours == nil {
		return nil, fmt.Errorf("work hours resolver is required")
	}
	svc := &Service{
		events:           events,
		kiosks:           kiosks,
		hours:            hours,
		logger:           slog.Default(),
		locks:            newSubjectLocks(),
		selfCheckEnabled: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SelfCheck handles a worker-device scan of a kiosk-displayed code. The
// rotating code verifies against current server time; the claimed device
// time only situates the event on the timeline.
func (s *Service) SelfCheck(ctx context.Context, req models.SelfCheckRequest) (*models.SelfCheckResult, error) {
	if !s.selfCheckEnabled {
		s.reject(models.SyncOnline)
		return nil, dErrors.New(dErrors.CodeForbidden, "self-check is disabled")
	}
	if requestcontext.Role(ctx) != RoleWorker {
		s.reject(models.SyncOnline)
		return nil, dErrors.New(dErrors.CodeForbidden, "role not permitted to self-check")
	}
	subjectID := requestcontext.SubjectID(ctx)
	if subjectID == 0 {
		s.reject(models.SyncOnline)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated subject required")
	}

	kiosk, err := s.kiosks.ResolveActive(ctx, req.KioskCode)
	if err != nil {
		s.reject(models.SyncOnline)
		return nil, err
	}
	if !rotcode.Verify(kiosk.SecretToken, req.Code, requestcontext.Now(ctx)) {
		s.reject(models.SyncOnline)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
	}

	deviceTime, local, err := parseDeviceTime(req.DeviceTime, req.DeviceTimezone)
	if err != nil {
		s.reject(models.SyncOnline)
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid device time")
	}

	out, err := s.ingest(ctx, ingestRequest{
		subjectID:  subjectID,
		actorID:    models.SentinelActorID,
		kioskID:    &kiosk.ID,
		deviceTime: deviceTime,
		localTime:  local,
		timezone:   req.DeviceTimezone,
		status:     models.SyncOnline,
		latitude:   req.Latitude,
		longitude:  req.Longitude,
	})
	if err != nil {
		return nil, err
	}
	if out.duplicate {
		return nil, dErrors.New(dErrors.CodeConflict, "event already recorded")
	}

	e := out.event
	return &models.SelfCheckResult{
		EventID:          e.ID,
		Direction:        e.Direction,
		WorkMinutes:      e.WorkMinutes,
		IsLate:           e.IsLate,
		IsEarlyDeparture: e.IsEarlyDeparture,
	}, nil
}

// RepresentativeSync ingests a batch of events a representative captured
// while observing workers. The representative is the actor; no code
// verification applies. Items fail independently.
func (s *Service) RepresentativeSync(ctx context.Context, actorID int64, items []models.RepresentativeSyncItem) (*models.SyncResult, error) {
	if actorID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated representative required")
	}
	res := newSyncResult()
	for _, item := range items {
		if item.SubjectID <= 0 {
			s.batchError(res, models.SyncRepresentative, models.SyncError{Reason: "subject is required"})
			continue
		}
		if ok, err := s.subjectExists(ctx, item.SubjectID); err != nil {
			// A directory outage fails the item, not the batch: the items
			// already processed keep their outcomes and the rest still run.
			s.logger.WarnContext(ctx, "subject lookup failed",
				"subject_id", item.SubjectID, "error", err)
			s.batchError(res, models.SyncRepresentative, models.SyncError{SubjectID: item.SubjectID, Reason: "subject lookup failed"})
			continue
		} else if !ok {
			s.batchError(res, models.SyncRepresentative, models.SyncError{SubjectID: item.SubjectID, Reason: "unknown subject"})
			continue
		}
		if item.Direction != nil && !item.Direction.IsValid() {
			s.batchError(res, models.SyncRepresentative, models.SyncError{SubjectID: item.SubjectID, Reason: "invalid direction"})
			continue
		}
		deviceTime, local, err := parseDeviceTime(item.DeviceTime, item.DeviceTimezone)
		if err != nil {
			s.batchError(res, models.SyncRepresentative, models.SyncError{SubjectID: item.SubjectID, Reason: "invalid device time"})
			continue
		}

		out, err := s.ingest(ctx, ingestRequest{
			subjectID:  item.SubjectID,
			actorID:    actorID,
			direction:  item.Direction,
			deviceTime: deviceTime,
			localTime:  local,
			timezone:   item.DeviceTimezone,
			status:     models.SyncRepresentative,
		})
		if err != nil {
			s.batchError(res, models.SyncRepresentative, models.SyncError{SubjectID: item.SubjectID, Reason: "storage failure"})
			continue
		}
		s.accumulate(res, out, item.SubjectID)
	}
	return res, nil
}

// OfflineKioskSync ingests kiosk scans the worker's device queued during an
// outage. Each scanned code verifies against the kiosk secret at the claimed
// device time; verification failures flag the event instead of rejecting it,
// because offline data must not be lost even when untrustworthy.
func (s *Service) OfflineKioskSync(ctx context.Context, subjectID int64, items []models.OfflineSyncItem) (*models.SyncResult, error) {
	if subjectID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated subject required")
	}
	res := newSyncResult()
	for _, item := range items {
		kiosk, err := s.kiosks.Resolve(ctx, item.KioskCode)
		if err != nil {
			s.batchError(res, models.SyncOffline, models.SyncError{
				SubjectID: subjectID, ClientEventID: item.EventID, Reason: "unknown kiosk",
			})
			continue
		}
		deviceTime, local, err := parseDeviceTime(item.DeviceTime, item.DeviceTimezone)
		if err != nil {
			s.batchError(res, models.SyncOffline, models.SyncError{
				SubjectID: subjectID, ClientEventID: item.EventID, Reason: "invalid device time",
			})
			continue
		}

		var channelFlags []string
		switch {
		case item.ScannedCode == "":
			channelFlags = append(channelFlags, models.FlagMissingAuth)
		case !rotcode.Verify(kiosk.SecretToken, item.ScannedCode, deviceTime):
			channelFlags = append(channelFlags, models.FlagAuthMismatch)
		}

		out, err := s.ingest(ctx, ingestRequest{
			subjectID:    subjectID,
			actorID:      models.SentinelActorID,
			kioskID:      &kiosk.ID,
			deviceTime:   deviceTime,
			localTime:    local,
			timezone:     item.DeviceTimezone,
			status:       models.SyncOffline,
			latitude:     item.Latitude,
			longitude:    item.Longitude,
			channelFlags: channelFlags,
		})
		if err != nil {
			s.batchError(res, models.SyncOffline, models.SyncError{
				SubjectID: subjectID, ClientEventID: item.EventID, Reason: "storage failure",
			})
			continue
		}
		s.accumulate(res, out, subjectID)
	}
	return res, nil
}

// PurgeSubject removes a subject's events and cached summaries. Subject
// lifecycle lives in the external directory; this is the cascade it calls
// after deleting the subject there.
func (s *Service) PurgeSubject(ctx context.Context, subjectID int64) error {
	if subjectID <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "invalid subject id")
	}

	unlock := s.locks.lock(subjectID)
	defer unlock()

	if err := s.events.DeleteBySubject(ctx, subjectID); err != nil {
		return dErrors.New(dErrors.CodeInternal, "delete events failed")
	}
	if s.summaries != nil {
		if err := s.summaries.DeleteBySubject(ctx, subjectID); err != nil {
			return dErrors.New(dErrors.CodeInternal, "delete summaries failed")
		}
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionSubjectPurged,
		SubjectID: subjectID,
	})
	s.logger.InfoContext(ctx, "subject purged", "subject_id", subjectID)
	return nil
}

// ingestRequest is the channel-normalized input to the shared funnel.
type ingestRequest struct {
	subjectID    int64
	actorID      int64
	kioskID      *int64
	direction    *models.Direction
	deviceTime   time.Time // instant
	localTime    time.Time // wall time in the claimed zone
	timezone     string
	status       models.SyncStatus
	latitude     *float64
	longitude    *float64
	channelFlags []string
}

type ingestOutcome struct {
	event       *models.AttendanceEvent
	duplicate   bool
	duplicateID string
}

// ingest runs the shared core under the subject's lock: toggle detection,
// identity, dedup, anomaly flags, pairing, persistence, invalidation.
func (s *Service) ingest(ctx context.Context, req ingestRequest) (ingestOutcome, error) {
	unlock := s.locks.lock(req.subjectID)
	defer unlock()

	now := requestcontext.Now(ctx)

	dir, err := s.resolveDirection(ctx, req)
	if err != nil {
		return ingestOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "toggle detection failed")
	}

	id := identity.EventID(req.subjectID, req.actorID, req.deviceTime, dir)
	if _, err := s.events.GetByID(ctx, id); err == nil {
		s.duplicate(ctx, req, id)
		return ingestOutcome{duplicate: true, duplicateID: id}, nil
	} else if !errors.Is(err, event.ErrNotFound) {
		return ingestOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
	}

	cfg := s.hours.Resolve(ctx, req.subjectID)

	e := &models.AttendanceEvent{
		ID:             id,
		SubjectID:      req.subjectID,
		ActorID:        req.actorID,
		KioskID:        req.kioskID,
		Direction:      dir,
		DeviceTime:     req.deviceTime.UTC(),
		DeviceTimezone: req.timezone,
		SyncTime:       now,
		SyncStatus:     req.status,
		Latitude:       req.latitude,
		Longitude:      req.longitude,
	}
	for _, flag := range req.channelFlags {
		e.AddFlag(flag)
	}
	if err := s.applyAnomalyFlags(ctx, e, now, cfg); err != nil {
		return ingestOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "anomaly check failed")
	}

	var pairedIn *models.AttendanceEvent
	switch dir {
	case models.DirectionIn:
		classifyIn(e, req.localTime, cfg)
	case models.DirectionOut:
		pairedIn, err = s.pairOut(ctx, e, req.localTime, cfg)
		if err != nil {
			return ingestOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "pairing lookup failed")
		}
	}

	if err := s.events.Insert(ctx, e); err != nil {
		if errors.Is(err, event.ErrDuplicate) {
			// Lost an insert race with another instance; same outcome as the
			// fast duplicate path.
			s.duplicate(ctx, req, id)
			return ingestOutcome{duplicate: true, duplicateID: id}, nil
		}
		return ingestOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist event failed")
	}

	if pairedIn != nil {
		if err := s.events.SetPaired(ctx, pairedIn.ID, e.ID, *e.WorkMinutes); err != nil {
			s.logger.ErrorContext(ctx, "pairing link failed",
				"in_event", pairedIn.ID, "out_event", e.ID, "error", err)
		} else if s.metrics != nil {
			s.metrics.PairingsTotal.Inc()
		}
	} else if dir == models.DirectionOut {
		if s.metrics != nil {
			s.metrics.UnpairedOuts.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Action:    audit.ActionCheckoutUnpaired,
			SubjectID: e.SubjectID,
			EventID:   e.ID,
			Channel:   string(e.SyncStatus),
		})
	}

	s.afterPersist(ctx, e)
	return ingestOutcome{event: e}, nil
}

// resolveDirection applies toggle detection when the channel did not supply
// a direction: no event (or an out) in the trailing window means in, an in
// means out. The system self-corrects without clients tracking state.
func (s *Service) resolveDirection(ctx context.Context, req ingestRequest) (models.Direction, error) {
	if req.direction != nil {
		return *req.direction, nil
	}
	prev, err := s.events.LatestBefore(ctx, req.subjectID, req.deviceTime, toggleWindow)
	if err != nil {
		return "", err
	}
	if prev == nil || prev.Direction == models.DirectionOut {
		return models.DirectionIn, nil
	}
	return models.DirectionOut, nil
}

func (s *Service) afterPersist(ctx context.Context, e *models.AttendanceEvent) {
	if s.metrics != nil {
		s.metrics.EventsIngested.WithLabelValues(string(e.SyncStatus)).Inc()
		if e.Flagged {
			s.metrics.EventsFlagged.WithLabelValues(string(e.SyncStatus)).Inc()
		}
	}
	if e.Flagged {
		s.emitAudit(ctx, audit.Event{
			Action:    audit.ActionEventFlagged,
			SubjectID: e.SubjectID,
			ActorID:   e.ActorID,
			EventID:   e.ID,
			Channel:   string(e.SyncStatus),
			Reason:    e.FlagReason,
		})
	}
	if s.summaries != nil {
		if err := s.summaries.MarkDirty(ctx, e.SubjectID, e.DeviceTime); err != nil {
			s.logger.WarnContext(ctx, "summary invalidation failed",
				"subject", e.SubjectID, "error", err)
		}
	}
}

func (s *Service) duplicate(ctx context.Context, req ingestRequest, id string) {
	if s.metrics != nil {
		s.metrics.EventsDuplicate.WithLabelValues(string(req.status)).Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionEventDuplicate,
		SubjectID: req.subjectID,
		ActorID:   req.actorID,
		EventID:   id,
		Channel:   string(req.status),
	})
}

func (s *Service) emitAudit(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", e.Action, "error", err)
	}
}

func (s *Service) subjectExists(ctx context.Context, subjectID int64) (bool, error) {
	if s.subjects == nil {
		return true, nil
	}
	return s.subjects.Exists(ctx, subjectID)
}

func (s *Service) reject(status models.SyncStatus) {
	if s.metrics != nil {
		s.metrics.EventsRejected.WithLabelValues(string(status)).Inc()
	}
}

func (s *Service) batchError(res *models.SyncResult, status models.SyncStatus, e models.SyncError) {
	s.reject(status)
	res.ErrorCount++
	res.Errors = append(res.Errors, e)
}

func (s *Service) accumulate(res *models.SyncResult, out ingestOutcome, subjectID int64) {
	if out.duplicate {
		res.DuplicateCount++
		res.Duplicates = append(res.Duplicates, out.duplicateID)
		return
	}
	res.SyncedCount++
	res.Synced = append(res.Synced, models.SyncedItem{
		EventID:   out.event.ID,
		SubjectID: subjectID,
		Direction: out.event.Direction,
		Flagged:   out.event.Flagged,
	})
}

func newSyncResult() *models.SyncResult {
	return &models.SyncResult{
		Synced:     []models.SyncedItem{},
		Duplicates: []string{},
		Errors:     []models.SyncError{},
	}
}

// parseDeviceTime normalizes a claimed timestamp. RFC3339 carries its own
// offset; the bare "YYYY-MM-DD HH:MM:SS" form is interpreted in the claimed
// timezone. Returns the instant and the wall time classification anchors on.
func parseDeviceTime(raw, tz string) (time.Time, time.Time, error) {
	if raw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("device time is required")
	}
	loc := time.UTC
	if tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("unknown timezone %q", tz)
		}
		loc = parsed
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		local := t
		if tz != "" {
			local = t.In(loc)
		}
		return t, local, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", raw, loc); err == nil {
		return t, t, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unparseable device time %q", raw)
}
