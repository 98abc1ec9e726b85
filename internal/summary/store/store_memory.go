package store

import (
	"context"
	"sync"
	"time"

	"timeclock/internal/summary/models"
)

// InMemoryStore keeps summaries in process memory for unit tests and
// single-node development.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[memoryKey]*models.WorkSummary
}

type memoryKey struct {
	subjectID   int64
	periodType  models.PeriodType
	periodStart int64 // unix seconds, UTC
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[memoryKey]*models.WorkSummary)}
}

func keyOf(subjectID int64, periodType models.PeriodType, periodStart time.Time) memoryKey {
	return memoryKey{subjectID: subjectID, periodType: periodType, periodStart: periodStart.UTC().Unix()}
}

func (s *InMemoryStore) Get(_ context.Context, subjectID int64, periodType models.PeriodType, periodStart time.Time) (*models.WorkSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[keyOf(subjectID, periodType, periodStart)]
	if !ok {
		return nil, ErrNotFound
	}
	return row.Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, summary *models.WorkSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[keyOf(summary.SubjectID, summary.PeriodType, summary.PeriodStart)] = summary.Clone()
	return nil
}

func (s *InMemoryStore) MarkDirtyOverlapping(_ context.Context, subjectID int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	for _, row := range s.rows {
		if row.SubjectID != subjectID {
			continue
		}
		if at.Before(row.PeriodStart) || !at.Before(row.PeriodEnd) {
			continue
		}
		if !row.IsDirty {
			row.IsDirty = true
			marked++
		}
	}
	return marked, nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, row := range s.rows {
		if row.SubjectID == subjectID {
			delete(s.rows, k)
		}
	}
	return nil
}

// Len reports the number of cached rows. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
