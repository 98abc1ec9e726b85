package service

import "sync"

// subjectLocks serializes ingestion per subject. Toggle detection and
// pairing are read-then-write sequences on one subject's timeline; without
// the lock two concurrent check-outs could both pair against the same open
// check-in. Different subjects never contend.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[int64]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[int64]*subjectLock)}
}

// lock acquires the subject's mutex and returns the unlock func. Entries are
// reference counted so the map does not grow with the subject population.
func (s *subjectLocks) lock(subjectID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[subjectID]
	if !ok {
		l = &subjectLock{}
		s.locks[subjectID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, subjectID)
		}
		s.mu.Unlock()
	}
}
