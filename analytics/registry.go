package analytics

import (
	"context"
	"log"
	"sync"
	"time"

	"culturascape/api/models"
	"culturascape/api/utils"
)

const (
	// idleTTL is how long a session may go untouched before the janitor
	// ends it. Browsers that vanish without a beacon land here.
	idleTTL = 30 * time.Minute

	janitorInterval = 5 * time.Minute
)

// Registry maps live session ids to their managers. Binding to the store
// can take a while (bounded retries), so Initialize runs in the
// background and the manager buffers until it settles. A janitor ends
// sessions that have gone idle.
type Registry struct {
	mu       sync.Mutex
	managers map[string]*Manager
	seen     map[string]time.Time
	factory  func(id string, meta models.StartSessionRequest) *Manager
	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry builds a registry whose managers share one store handle and
// one set of options, and starts its idle janitor.
func NewRegistry(factory func(id string, meta models.StartSessionRequest) *Manager) *Registry {
	r := &Registry{
		managers: make(map[string]*Manager),
		seen:     make(map[string]time.Time),
		factory:  factory,
		done:     make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Start returns the manager for meta.SessionID, creating and binding one
// if needed. An empty id gets a fresh session identity.
func (r *Registry) Start(meta models.StartSessionRequest) *Manager {
	id := meta.SessionID
	if id == "" {
		id = utils.NewSessionID()
		meta.SessionID = id
	}

	r.mu.Lock()
	r.seen[id] = time.Now()
	if m, ok := r.managers[id]; ok {
		r.mu.Unlock()
		return m
	}
	m := r.factory(id, meta)
	r.managers[id] = m
	r.mu.Unlock()

	go func() {
		if err := m.Initialize(context.Background()); err != nil {
			log.Printf("analytics: initialize %s: %v", id, err)
		}
	}()
	return m
}

// Lookup finds an existing manager without creating one.
func (r *Registry) Lookup(id string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[id]
	if ok {
		r.seen[id] = time.Now()
	}
	return m, ok
}

// End closes out one session and forgets it.
func (r *Registry) End(ctx context.Context, id string) error {
	r.mu.Lock()
	m, ok := r.managers[id]
	delete(r.managers, id)
	delete(r.seen, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	err := m.EndSession(ctx)
	m.Cleanup()
	return err
}

// janitor periodically ends sessions nothing has touched within idleTTL.
func (r *Registry) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-idleTTL)
			r.mu.Lock()
			var stale []string
			for id, last := range r.seen {
				if last.Before(cutoff) {
					stale = append(stale, id)
				}
			}
			r.mu.Unlock()
			for _, id := range stale {
				ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
				if err := r.End(ctx, id); err != nil {
					log.Printf("analytics: janitor end %s: %v", id, err)
				}
				cancel()
			}
		case <-r.done:
			return
		}
	}
}

// CloseAll stops the janitor and tears down every live session, used at
// server shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.managers = make(map[string]*Manager)
	r.seen = make(map[string]time.Time)
	r.mu.Unlock()

	for _, m := range managers {
		if err := m.EndSession(ctx); err != nil {
			log.Printf("analytics: end session %s: %v", m.SessionID(), err)
		}
		m.Cleanup()
	}
}
