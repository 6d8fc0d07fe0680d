package repository

import (
	"sync"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
)

type memorySyncStatusStore struct {
	mu   sync.RWMutex
	last *entity.SyncRunSummary
}

func NewSyncStatusStore() repository.SyncStatusStore {
	return &memorySyncStatusStore{}
}

func (s *memorySyncStatusStore) Last() *entity.SyncRunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

func (s *memorySyncStatusStore) Put(summary *entity.SyncRunSummary) {
	if summary == nil {
		return
	}
	cp := *summary
	s.mu.Lock()
	s.last = &cp
	s.mu.Unlock()
}
