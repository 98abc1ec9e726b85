package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"timeclock/internal/attendance/models"
)

// InMemoryStore keeps events in process memory. It backs unit tests and
// single-node development; production uses the Postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*models.AttendanceEvent
	events []*models.AttendanceEvent // insertion order
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]*models.AttendanceEvent)}
}

func (s *InMemoryStore) Insert(_ context.Context, e *models.AttendanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.ID]; exists {
		return ErrDuplicate
	}
	stored := e.Clone()
	s.byID[e.ID] = stored
	s.events = append(s.events, stored)
	return nil
}

// List returns every stored event in insertion order. Test helper.
func (s *InMemoryStore) List() []*models.AttendanceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AttendanceEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Clone())
	}
	return out
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*models.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *InMemoryStore) LatestBefore(_ context.Context, subjectID int64, t time.Time, window time.Duration) (*models.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestMatch(subjectID, t, window, func(*models.AttendanceEvent) bool { return true }), nil
}

func (s *InMemoryStore) LatestUnpairedIn(_ context.Context, subjectID int64, t time.Time, window time.Duration) (*models.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestMatch(subjectID, t, window, func(e *models.AttendanceEvent) bool {
		return e.Direction == models.DirectionIn && e.PairedEventID == nil
	}), nil
}

// latestMatch scans for the subject's most recent event strictly before t
// within the trailing window, honoring an extra predicate. Caller holds mu.
func (s *InMemoryStore) latestMatch(subjectID int64, t time.Time, window time.Duration, match func(*models.AttendanceEvent) bool) *models.AttendanceEvent {
	cutoff := t.Add(-window)
	var best *models.AttendanceEvent
	for _, e := range s.events {
		if e.SubjectID != subjectID || !match(e) {
			continue
		}
		if !e.DeviceTime.Before(t) || e.DeviceTime.Before(cutoff) {
			continue
		}
		if best == nil || e.DeviceTime.After(best.DeviceTime) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}

func (s *InMemoryStore) SetPaired(_ context.Context, inID, outID string, workMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[inID]
	if !ok {
		return ErrNotFound
	}
	paired := outID
	minutes := workMinutes
	e.PairedEventID = &paired
	e.WorkMinutes = &minutes
	return nil
}

func (s *InMemoryStore) HasSameDirectionWithin(_ context.Context, subjectID int64, direction models.Direction, t time.Time, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi := t.Add(-window), t.Add(window)
	for _, e := range s.events {
		if e.SubjectID != subjectID || e.Direction != direction {
			continue
		}
		if !e.DeviceTime.Before(lo) && !e.DeviceTime.After(hi) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListForRange(_ context.Context, subjectID int64, from, to time.Time) ([]*models.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AttendanceEvent
	for _, e := range s.events {
		if e.SubjectID == subjectID && inRange(e.DeviceTime, from, to) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceTime.Before(out[j].DeviceTime) })
	return out, nil
}

func (s *InMemoryStore) ListFlagged(_ context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error) {
	return s.listNewest(from, to, limit, func(e *models.AttendanceEvent) bool { return e.Flagged })
}

func (s *InMemoryStore) ListUnpairedIn(_ context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error) {
	return s.listNewest(from, to, limit, func(e *models.AttendanceEvent) bool {
		return e.Direction == models.DirectionIn && e.PairedEventID == nil
	})
}

func (s *InMemoryStore) ListLateArrivals(_ context.Context, from, to time.Time, limit int) ([]*models.AttendanceEvent, error) {
	return s.listNewest(from, to, limit, func(e *models.AttendanceEvent) bool {
		return e.IsLate != nil && *e.IsLate
	})
}

func (s *InMemoryStore) listNewest(from, to time.Time, limit int, match func(*models.AttendanceEvent) bool) ([]*models.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AttendanceEvent
	for _, e := range s.events {
		if inRange(e.DeviceTime, from, to) && match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceTime.After(out[j].DeviceTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountByDirection(_ context.Context, direction models.Direction, from, to time.Time) (int, error) {
	return s.count(from, to, func(e *models.AttendanceEvent) bool { return e.Direction == direction })
}

func (s *InMemoryStore) CountLate(_ context.Context, from, to time.Time) (int, error) {
	return s.count(from, to, func(e *models.AttendanceEvent) bool { return e.IsLate != nil && *e.IsLate })
}

func (s *InMemoryStore) CountEarlyDepartures(_ context.Context, from, to time.Time) (int, error) {
	return s.count(from, to, func(e *models.AttendanceEvent) bool {
		return e.IsEarlyDeparture != nil && *e.IsEarlyDeparture
	})
}

func (s *InMemoryStore) CountFlagged(_ context.Context, from, to time.Time) (int, error) {
	return s.count(from, to, func(e *models.AttendanceEvent) bool { return e.Flagged })
}

func (s *InMemoryStore) count(from, to time.Time, match func(*models.AttendanceEvent) bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events {
		if inRange(e.DeviceTime, from, to) && match(e) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) SumWorkMinutes(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, e := range s.events {
		if e.Direction == models.DirectionOut && e.WorkMinutes != nil && inRange(e.DeviceTime, from, to) {
			total += *e.WorkMinutes
		}
	}
	return total, nil
}

func (s *InMemoryStore) DistinctSubjects(_ context.Context, direction models.Direction, from, to time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, e := range s.events {
		if e.Direction == direction && inRange(e.DeviceTime, from, to) {
			seen[e.SubjectID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryStore) SubjectsWithEventsSince(_ context.Context, since time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, e := range s.events {
		if !e.DeviceTime.Before(since) {
			seen[e.SubjectID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, e := range s.events {
		if e.SubjectID == subjectID {
			delete(s.byID, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return nil
}

// inRange reports from <= t < to.
func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
