// Package directory exposes the external user service to the core as a
// read-only subject directory. User CRUD, roles, and invites stay outside.
package directory

import (
	"context"
	"sort"
	"sync"
)

// SubjectDirectory answers the two questions the core asks about subjects:
// does one exist, and who is active.
type SubjectDirectory interface {
	Exists(ctx context.Context, subjectID int64) (bool, error)
	ActiveSubjectIDs(ctx context.Context) ([]int64, error)
}

// InMemory is a static directory for tests and development wiring.
type InMemory struct {
	mu       sync.RWMutex
	subjects map[int64]bool // id -> active
}

func NewInMemory() *InMemory {
	return &InMemory{subjects: make(map[int64]bool)}
}

// Add registers a subject.
func (d *InMemory) Add(subjectID int64, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[subjectID] = active
}

func (d *InMemory) Exists(_ context.Context, subjectID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.subjects[subjectID]
	return ok, nil
}

func (d *InMemory) ActiveSubjectIDs(_ context.Context) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []int64
	for id, active := range d.subjects {
		if active {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
