// Package analytics is the session-scoped tracking pipeline: a buffered
// event queue flushed by time, size, or criticality into the remote
// document store, with lead capture and graceful degradation when the
// store never comes up.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"culturascape/api/docstore"
	"culturascape/api/leads"
	"culturascape/api/models"
)

// Remote collections owned by this package.
const (
	CollectionSessions      = "user_sessions"
	CollectionConsultations = "consultations"
	CollectionNewsletter    = "newsletter_subscribers"
)

var (
	// ErrStoreUnavailable surfaces only on user-initiated writes; passive
	// tracking degrades silently instead.
	ErrStoreUnavailable = errors.New("analytics: remote store unavailable")
	// ErrFlushFailed marks a batched update the store rejected. The batch
	// is already restored for retry when this is returned.
	ErrFlushFailed = errors.New("analytics: flush rejected by store")
	// ErrSessionEnded rejects writes against an ended session.
	ErrSessionEnded = errors.New("analytics: session already ended")
)

// Manager states. A manager is constructed in StateBinding, and settles
// into StateReady or StateDegraded after Initialize.
type State int

const (
	StateBinding State = iota
	StateReady
	StateDegraded
)

// Archiver receives every successfully flushed batch, best effort. The
// ClickHouse store implements it; nil disables archiving.
type Archiver interface {
	ArchiveEvents(ctx context.Context, sessionID string, events []models.Event) error
}

// Options tune one manager. Zero values select the production defaults.
type Options struct {
	BufferThreshold int
	FlushInterval   time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	Now             func() time.Time
	Archive         Archiver
}

const (
	defaultFlushInterval = 10 * time.Second
	defaultRetryAttempts = 15
	defaultRetryDelay    = 2 * time.Second
	flushTimeout         = 5 * time.Second
)

// Manager orchestrates one visitor session: identity, the event buffer,
// the lead scorer, and the session's remote documents.
type Manager struct {
	sessionID string
	meta      models.StartSessionRequest
	store     docstore.Store
	archive   Archiver
	buffer    *Buffer

	retryAttempts int
	retryDelay    time.Duration
	flushInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	state     State
	status    string
	startedAt time.Time

	flushMu  sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
	ticking  bool
}

// NewManager builds a manager bound to sessionID. It does not touch the
// store; call Initialize to bind.
func NewManager(sessionID string, store docstore.Store, meta models.StartSessionRequest, opts Options) *Manager {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{
		sessionID:     sessionID,
		meta:          meta,
		store:         store,
		archive:       opts.Archive,
		buffer:        NewBuffer(opts.BufferThreshold),
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		flushInterval: opts.FlushInterval,
		now:           opts.Now,
		status:        models.SessionActive,
		done:          make(chan struct{}),
	}
	m.startedAt = m.now()
	return m
}

func (m *Manager) SessionID() string { return m.sessionID }

// State reports the binding outcome.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Initialize binds to the remote store with bounded retry and creates the
// session document with zeroed counters. On exhaustion the manager stays
// usable in degraded local-only mode; the returned error is for logging,
// never fatal.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.store == nil {
		m.setState(StateDegraded)
		return ErrStoreUnavailable
	}
	if err := docstore.WaitReady(ctx, m.store, m.retryAttempts, m.retryDelay); err != nil {
		m.setState(StateDegraded)
		return fmt.Errorf("session %s degraded: %w", m.sessionID, err)
	}

	referrer := m.meta.Referrer
	if referrer == "" {
		referrer = "direct"
	}
	doc := docstore.Document{
		"sessionId":    m.sessionID,
		"startTime":    docstore.ServerTimestamp(),
		"lastActivity": docstore.ServerTimestamp(),
		"userAgent":    m.meta.UserAgent,
		"referrer":     referrer,
		"page":         m.meta.Page,
		"viewport":     m.meta.Viewport,
		"interactions": docstore.Document{
			"clicks":             int64(0),
			"serviceViews":       int64(0),
			"scrolls":            int64(0),
			"serviceHovers":      int64(0),
			"portfolioViews":     int64(0),
			"formEngagement":     int64(0),
			"testimonialViews":   int64(0),
			"callToActionClicks": int64(0),
		},
		"engagement": docstore.Document{
			"timeOnPage":   int64(0),
			"scrollDepth":  int64(0),
			"qualityScore": int64(0),
			"bounced":      false,
		},
		"performance": docstore.Document{},
		"status":      models.SessionActive,
	}
	if err := m.store.Create(ctx, CollectionSessions, m.sessionID, doc); err != nil {
		m.setState(StateDegraded)
		return fmt.Errorf("session %s degraded: %w", m.sessionID, err)
	}
	m.setState(StateReady)
	m.startTicker()
	return nil
}

// startTicker runs the periodic flush until Cleanup.
func (m *Manager) startTicker() {
	m.mu.Lock()
	if m.ticking {
		m.mu.Unlock()
		return
	}
	m.ticking = true
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.buffer.Len() == 0 {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
				if err := m.Flush(ctx, false); err != nil {
					log.Printf("analytics: periodic flush for %s: %v", m.sessionID, err)
				}
				cancel()
			case <-m.done:
				return
			}
		}
	}()
}

// TrackEvent appends to the buffer and never blocks the caller. Critical
// events and a full buffer trigger a fire-and-forget flush.
func (m *Manager) TrackEvent(action string, details map[string]any, page string) {
	now := m.now()
	full := m.buffer.Add(models.Event{
		Action:    action,
		Details:   details,
		Page:      page,
		Timestamp: now,
		Offset:    now.Sub(m.startedAt),
	})
	if full || IsCritical(action) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := m.Flush(ctx, false); err != nil {
				log.Printf("analytics: triggered flush for %s: %v", m.sessionID, err)
			}
		}()
	}
}

// Flush drains the buffer, aggregates it into one increment update, and
// archives the raw batch. A rejected update restores the batch at the
// head of the buffer: at-least-once, never dropped. With isUnload the
// write is fire-and-forget and nothing is awaited.
func (m *Manager) Flush(ctx context.Context, isUnload bool) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	switch m.State() {
	case StateBinding:
		// Keep buffering until the store is bound.
		return nil
	case StateDegraded:
		if n := len(m.buffer.Drain()); n > 0 {
			log.Printf("analytics: degraded mode, dropped %d events for %s", n, m.sessionID)
		}
		return nil
	}

	batch := m.buffer.Drain()
	if len(batch) == 0 {
		return nil
	}
	fields := Aggregate(batch).UpdateFields()
	fields["lastActivity"] = docstore.ServerTimestamp()

	if isUnload {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := m.store.UpdateFields(ctx, CollectionSessions, m.sessionID, fields); err != nil {
				log.Printf("analytics: unload flush for %s: %v", m.sessionID, err)
			}
			m.archiveBatch(ctx, batch)
		}()
		return nil
	}

	if err := m.store.UpdateFields(ctx, CollectionSessions, m.sessionID, fields); err != nil {
		m.buffer.Restore(batch)
		return fmt.Errorf("%w: %v", ErrFlushFailed, err)
	}
	m.archiveBatch(ctx, batch)
	return nil
}

func (m *Manager) archiveBatch(ctx context.Context, batch []models.Event) {
	if m.archive == nil {
		return
	}
	if err := m.archive.ArchiveEvents(ctx, m.sessionID, batch); err != nil {
		log.Printf("analytics: archive for %s: %v", m.sessionID, err)
	}
}

// SubmitForm validates nothing beyond what the transport already did,
// scores the lead, and writes one consultation document keyed by the
// session id, so a resubmission overwrites instead of duplicating. The
// session converts in the same call. Priority on the stored document
// comes from leads.LeadPriorityPolicy; the quality pair comes from
// leads.EngagementQualityPolicy.
func (m *Manager) SubmitForm(ctx context.Context, req models.ConsultationRequest) (string, error) {
	m.mu.Lock()
	ended := m.status == models.SessionEnded
	m.mu.Unlock()
	if ended {
		return "", ErrSessionEnded
	}
	if m.State() != StateReady {
		return "", ErrStoreUnavailable
	}

	lead := leads.Evaluate(req, m.now())
	doc := docstore.Document{
		"sessionId":   m.sessionID,
		"submittedAt": docstore.ServerTimestamp(),
		"source":      "luxury_website",
		"contact": docstore.Document{
			"firstName": req.FirstName,
			"lastName":  req.LastName,
			"email":     req.Email,
			"phone":     req.Phone,
		},
		"project": docstore.Document{
			"serviceType":        req.ServiceType,
			"budget":             req.Budget,
			"propertySize":       req.PropertySize,
			"projectDescription": req.ProjectDescription,
			"preferredDate":      req.PreferredDate,
		},
		"marketing": docstore.Document{
			"referrer":  req.Referrer,
			"userAgent": req.UserAgent,
		},
		"leadData": docstore.Document{
			"score":          lead.Score,
			"priority":       lead.Priority,
			"qualityScore":   lead.QualityScore,
			"qualityTier":    lead.QualityTier,
			"estimatedValue": lead.EstimatedValue,
			"urgency":        lead.Urgency,
			"luxuryTier":     lead.LuxuryTier,
		},
		"status": docstore.Document{
			"new":       true,
			"contacted": false,
			"qualified": false,
			"converted": false,
			"stage":     models.StageNew,
		},
		"preferences": docstore.Document{
			"newsletter": req.Newsletter,
		},
	}
	if err := m.store.Create(ctx, CollectionConsultations, m.sessionID, doc); err != nil {
		return "", fmt.Errorf("submit consultation for %s: %w", m.sessionID, err)
	}

	conversion := docstore.Document{
		"status": models.SessionConverted,
		"conversion": docstore.Document{
			"consultationId": m.sessionID,
			"serviceType":    req.ServiceType,
			"budget":         req.Budget,
			"leadScore":      lead.Score,
		},
		"conversionAt": docstore.ServerTimestamp(),
		"lastActivity": docstore.ServerTimestamp(),
	}
	if err := m.store.UpdateFields(ctx, CollectionSessions, m.sessionID, conversion); err != nil {
		// The consultation is stored; losing the status flip is recoverable.
		log.Printf("analytics: conversion mark for %s: %v", m.sessionID, err)
	}
	m.mu.Lock()
	m.status = models.SessionConverted
	m.mu.Unlock()

	if req.Newsletter {
		if err := m.SubscribeNewsletter(ctx, req.Email); err != nil {
			log.Printf("analytics: newsletter opt-in for %s: %v", m.sessionID, err)
		}
	}
	return m.sessionID, nil
}

// SubscribeNewsletter dedups by email: an existing subscriber is
// refreshed, never duplicated.
func (m *Manager) SubscribeNewsletter(ctx context.Context, email string) error {
	if m.State() != StateReady {
		return ErrStoreUnavailable
	}
	existing, err := m.store.QueryByField(ctx, CollectionNewsletter, "email", email, 1)
	if err != nil {
		return fmt.Errorf("newsletter lookup: %w", err)
	}
	if len(existing) == 0 {
		doc := docstore.Document{
			"email":        email,
			"sessionId":    m.sessionID,
			"subscribedAt": docstore.ServerTimestamp(),
			"source":       "luxury_booking_form",
			"status":       "active",
		}
		if err := m.store.Create(ctx, CollectionNewsletter, uuid.NewString(), doc); err != nil {
			return fmt.Errorf("newsletter create: %w", err)
		}
		return nil
	}
	id, _ := existing[0]["_id"].(string)
	refresh := docstore.Document{
		"lastSubscription": docstore.ServerTimestamp(),
		"sessionId":        m.sessionID,
		"status":           "active",
	}
	if err := m.store.UpdateFields(ctx, CollectionNewsletter, id, refresh); err != nil {
		return fmt.Errorf("newsletter refresh: %w", err)
	}
	return nil
}

// TrackPerformance records the page load timing block once per session.
func (m *Manager) TrackPerformance(ctx context.Context, perf models.PerformanceMetrics) error {
	if m.State() != StateReady {
		return nil
	}
	connection := perf.ConnectionType
	if connection == "" {
		connection = "unknown"
	}
	fields := docstore.Document{
		"performance": docstore.Document{
			"loadTime":         perf.LoadTime,
			"domContentLoaded": perf.DOMContentLoaded,
			"timeToFirstByte":  perf.TimeToFirstByte,
			"connectionType":   connection,
		},
		"performanceAt": docstore.ServerTimestamp(),
	}
	return m.store.UpdateFields(ctx, CollectionSessions, m.sessionID, fields)
}

// UpdateEngagement writes the derived engagement metrics. Scroll depth is
// monotonic; a visit under 30 engaged seconds counts as bounced.
func (m *Manager) UpdateEngagement(ctx context.Context, metrics models.EngagementMetrics) error {
	if m.State() != StateReady {
		return nil
	}
	m.mu.Lock()
	converted := m.status == models.SessionConverted
	m.mu.Unlock()
	fields := docstore.Document{
		"engagement.timeOnPage":   metrics.TimeEngaged,
		"engagement.scrollDepth":  docstore.Max(metrics.MaxScrollDepth),
		"engagement.bounced":      metrics.TimeEngaged < 30,
		"engagement.qualityScore": engagementQuality(metrics.TimeEngaged, metrics.MaxScrollDepth, converted),
		"lastActivity":            docstore.ServerTimestamp(),
	}
	return m.store.UpdateFields(ctx, CollectionSessions, m.sessionID, fields)
}

// engagementQuality is a 0-100 blend: up to 40 points for engaged time
// (saturating at ten minutes), up to 40 for scroll depth, 20 for a
// conversion.
func engagementQuality(timeEngaged, scrollDepth int64, converted bool) int64 {
	q := timeEngaged / 15
	if q > 40 {
		q = 40
	}
	s := scrollDepth * 2 / 5
	if s > 40 {
		s = 40
	}
	q += s
	if converted {
		q += 20
	}
	if q > 100 {
		q = 100
	}
	return q
}

// EndSession flushes what's left and marks the session ended. Ended is
// terminal.
func (m *Manager) EndSession(ctx context.Context) error {
	m.mu.Lock()
	if m.status == models.SessionEnded {
		m.mu.Unlock()
		return nil
	}
	m.status = models.SessionEnded
	m.mu.Unlock()

	if err := m.Flush(ctx, false); err != nil {
		log.Printf("analytics: final flush for %s: %v", m.sessionID, err)
	}
	if m.State() != StateReady {
		return nil
	}
	fields := docstore.Document{
		"status":  models.SessionEnded,
		"endTime": docstore.ServerTimestamp(),
	}
	return m.store.UpdateFields(ctx, CollectionSessions, m.sessionID, fields)
}

// Cleanup stops the flush ticker and fires a last best-effort flush. Safe
// to call more than once.
func (m *Manager) Cleanup() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	if err := m.Flush(context.Background(), true); err != nil {
		log.Printf("analytics: cleanup flush for %s: %v", m.sessionID, err)
	}
}
