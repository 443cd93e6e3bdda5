package profile

import (
	"context"
	"sync"

	"culturascape/api/docstore"
)

// Service hands out one Manager per profile key, initializing it on first
// use. Handlers go through here so concurrent requests for the same key
// share a manager.
type Service struct {
	local *LocalStore
	rec   *Reconciler

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewService(local *LocalStore, store docstore.Store) *Service {
	return &Service{
		local:    local,
		rec:      NewReconciler(store),
		managers: make(map[string]*Manager),
	}
}

// Manager returns the manager for key, creating and initializing it if
// this is the key's first appearance since startup.
func (s *Service) Manager(ctx context.Context, key string) (*Manager, error) {
	s.mu.Lock()
	if m, ok := s.managers[key]; ok {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	m := NewManager(key, s.local, s.rec)
	if err := m.Init(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.managers[key]; ok {
		return existing, nil
	}
	s.managers[key] = m
	return m, nil
}

func (s *Service) Close() error {
	return s.local.Close()
}
