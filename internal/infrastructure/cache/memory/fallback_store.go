package memory

import (
	"context"
	"sync"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

// FallbackStore keeps the last usable snapshot in process memory.
type FallbackStore struct {
	mu       sync.RWMutex
	snapshot *entity.CacheSnapshot
}

func NewFallbackStore() *FallbackStore {
	return &FallbackStore{}
}

func (s *FallbackStore) Save(_ context.Context, snapshot *entity.CacheSnapshot) error {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return nil
}

func (s *FallbackStore) Load(_ context.Context) (*entity.CacheSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, port.ErrNotFound
	}
	return s.snapshot, nil
}
