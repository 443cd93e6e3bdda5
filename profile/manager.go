package profile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"culturascape/api/models"
)

// maxConsultationHistory caps the per-profile history, most recent first.
const maxConsultationHistory = 10

// DefaultPreferences are the preferences of a profile that has never been
// touched.
func DefaultPreferences() models.Preferences {
	return models.Preferences{
		Theme:         "light",
		Notifications: true,
		Newsletter:    false,
		Performance: models.PerformancePrefs{
			EnableParticles:  true,
			EnableCursor:     true,
			EnableAnimations: true,
		},
	}
}

// Listener receives the effective preferences after every apply; this is
// the presentation-hook boundary (theme classes, reduced motion, the
// broadcast event).
type Listener func(models.Preferences)

// Manager owns one profile key: the local slot, the remote mirror, and
// the listeners that react to preference changes.
type Manager struct {
	key   string
	local *LocalStore
	rec   *Reconciler
	now   func() time.Time

	mu        sync.Mutex
	profile   models.Profile
	listeners []Listener
}

// NewManager builds a manager for key. Call Init before use.
func NewManager(key string, local *LocalStore, rec *Reconciler) *Manager {
	return &Manager{
		key:   key,
		local: local,
		rec:   rec,
		now:   time.Now,
		profile: models.Profile{
			Preferences: DefaultPreferences(),
		},
	}
}

// Init loads the local slot (defaults fill whatever the stored blob
// lacks), then reconciles against the remote mirror. A sync failure is
// logged, never fatal: the local copy keeps the site working.
func (m *Manager) Init(ctx context.Context) error {
	stored, err := m.local.Load(ctx, m.key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if stored != nil {
		m.profile = *stored
		// Re-overlay onto defaults so keys absent from older blobs keep
		// their default values.
		prefs := DefaultPreferences()
		if err := decodeInto(toDocument(stored.Preferences), &prefs); err == nil {
			m.profile.Preferences = prefs
		}
	}
	m.mu.Unlock()

	outcome, err := m.rec.Merge(ctx, m.key, &m.profile)
	if err != nil {
		log.Printf("profile: sync %s: %v", m.key, err)
		return nil
	}
	if outcome == OutcomePulledRemote {
		if err := m.saveLocal(ctx); err != nil {
			log.Printf("profile: persist pulled %s: %v", m.key, err)
		}
		m.broadcast()
	}
	return nil
}

// Preferences returns a snapshot of the effective preferences.
func (m *Manager) Preferences() models.Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.Preferences
}

// User returns a snapshot of the identity block, nil when unset.
func (m *Manager) User() *models.UserInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile.User == nil {
		return nil
	}
	user := *m.profile.User
	return &user
}

// UpdatePreferences applies a partial patch, persists both homes, and
// notifies listeners.
func (m *Manager) UpdatePreferences(ctx context.Context, patch models.PreferencesUpdate) (models.Preferences, error) {
	m.mu.Lock()
	p := &m.profile.Preferences
	setString(&p.Theme, patch.Theme)
	setBool(&p.Notifications, patch.Notifications)
	setBool(&p.Newsletter, patch.Newsletter)
	setBool(&p.Accessibility.HighContrast, patch.HighContrast)
	setBool(&p.Accessibility.LargeText, patch.LargeText)
	setBool(&p.Accessibility.ScreenReader, patch.ScreenReader)
	setBool(&p.Accessibility.ReducedMotion, patch.ReducedMotion)
	setBool(&p.Performance.EnableParticles, patch.EnableParticles)
	setBool(&p.Performance.EnableCursor, patch.EnableCursor)
	setBool(&p.Performance.EnableAnimations, patch.EnableAnimations)
	m.profile.LastUpdated = m.now().UnixMilli()
	snapshot := *p
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		return snapshot, err
	}
	m.broadcast()
	return snapshot, nil
}

// SetUserInfo overlays identity fields and persists.
func (m *Manager) SetUserInfo(ctx context.Context, user models.UserInfo) error {
	m.mu.Lock()
	if m.profile.User == nil {
		m.profile.User = &models.UserInfo{}
	}
	if user.FirstName != "" {
		m.profile.User.FirstName = user.FirstName
	}
	if user.LastName != "" {
		m.profile.User.LastName = user.LastName
	}
	if user.Email != "" {
		m.profile.User.Email = user.Email
	}
	if user.Phone != "" {
		m.profile.User.Phone = user.Phone
	}
	m.profile.LastUpdated = m.now().UnixMilli()
	m.mu.Unlock()
	return m.persist(ctx)
}

// AddConsultation prepends one history entry and trims to the ten most
// recent.
func (m *Manager) AddConsultation(ctx context.Context, entry models.ConsultationSummary) error {
	if entry.Date.IsZero() {
		entry.Date = m.now()
	}
	m.mu.Lock()
	if m.profile.User == nil {
		m.profile.User = &models.UserInfo{}
	}
	history := append([]models.ConsultationSummary{entry}, m.profile.User.ConsultationHistory...)
	if len(history) > maxConsultationHistory {
		history = history[:maxConsultationHistory]
	}
	m.profile.User.ConsultationHistory = history
	m.profile.LastUpdated = m.now().UnixMilli()
	m.mu.Unlock()
	return m.persist(ctx)
}

// ConsultationHistory returns the bounded history, most recent first.
func (m *Manager) ConsultationHistory() []models.ConsultationSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile.User == nil {
		return nil
	}
	out := make([]models.ConsultationSummary, len(m.profile.User.ConsultationHistory))
	copy(out, m.profile.User.ConsultationHistory)
	return out
}

// Export returns a portable snapshot of the whole profile.
func (m *Manager) Export() models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.profile
	if m.profile.User != nil {
		user := *m.profile.User
		snapshot.User = &user
	}
	return snapshot
}

// OnPreferences registers a listener for future applies.
func (m *Manager) OnPreferences(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// persist writes the local slot, then pushes remote. The push is
// best-effort: local durability is what keeps the site working offline.
func (m *Manager) persist(ctx context.Context) error {
	if err := m.saveLocal(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	snapshot := m.profile
	m.mu.Unlock()
	if _, err := m.rec.Merge(ctx, m.key, &snapshot); err != nil {
		log.Printf("profile: push %s: %v", m.key, err)
	}
	return nil
}

func (m *Manager) saveLocal(ctx context.Context) error {
	m.mu.Lock()
	snapshot := m.profile
	m.mu.Unlock()
	if err := m.local.Save(ctx, m.key, &snapshot); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	return nil
}

func (m *Manager) broadcast() {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	prefs := m.profile.Preferences
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(prefs)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
