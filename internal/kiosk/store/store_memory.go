package store

import (
	"context"
	"sync"
	"time"

	"timeclock/internal/kiosk/models"
)

// InMemoryStore keeps kiosks in process memory for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	byCode map[string]*models.Kiosk
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byCode: make(map[string]*models.Kiosk)}
}

// Seed registers a kiosk. Test/development helper; production kiosks are
// provisioned by the external admin service.
func (s *InMemoryStore) Seed(k *models.Kiosk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *k
	s.byCode[k.Code] = &copied
}

func (s *InMemoryStore) GetByCode(_ context.Context, code string) (*models.Kiosk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *k
	return &copied, nil
}

func (s *InMemoryStore) TouchHeartbeat(_ context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byCode[code]
	if !ok {
		return ErrNotFound
	}
	k.LastHeartbeatAt = &at
	return nil
}
