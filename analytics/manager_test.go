package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"culturascape/api/docstore"
	"culturascape/api/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		BufferThreshold: 100,
		FlushInterval:   time.Hour,
		RetryAttempts:   2,
		RetryDelay:      time.Millisecond,
		Now:             func() time.Time { return testNow },
	}
}

func readyManager(t *testing.T) (*Manager, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	m := NewManager("session_test", store, models.StartSessionRequest{
		SessionID: "session_test",
		UserAgent: "test-agent",
		Page:      "/",
	}, testOptions())
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(m.Cleanup)
	return m, store
}

func counter(t *testing.T, store *docstore.MemoryStore, path string) int64 {
	t.Helper()
	doc, err := store.Get(context.Background(), CollectionSessions, "session_test")
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(docstore.Document)
		if !ok {
			t.Fatalf("path %s not found in session doc", path)
		}
		cur = m[part]
	}
	n, ok := cur.(int64)
	if !ok {
		t.Fatalf("path %s is %T, want int64", path, cur)
	}
	return n
}

func TestInitializeCreatesZeroedSession(t *testing.T) {
	m, store := readyManager(t)
	if m.State() != StateReady {
		t.Fatalf("State = %v, want StateReady", m.State())
	}

	doc, err := store.Get(context.Background(), CollectionSessions, "session_test")
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if doc["status"] != models.SessionActive {
		t.Errorf("status = %v, want active", doc["status"])
	}
	if doc["referrer"] != "direct" {
		t.Errorf("referrer = %v, want direct for absent referrer", doc["referrer"])
	}
	if got := counter(t, store, "interactions.clicks"); got != 0 {
		t.Errorf("clicks = %d, want 0", got)
	}
	if got := counter(t, store, "engagement.scrollDepth"); got != 0 {
		t.Errorf("scrollDepth = %d, want 0", got)
	}
}

func TestFlushAppliesAggregatedIncrements(t *testing.T) {
	m, store := readyManager(t)
	m.TrackEvent(models.EventClick, nil, "/")
	m.TrackEvent(models.EventClick, nil, "/")
	m.TrackEvent(models.EventServiceInterest, nil, "/services")

	if err := m.Flush(context.Background(), false); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := counter(t, store, "interactions.clicks"); got != 2 {
		t.Errorf("clicks = %d, want 2", got)
	}
	if got := counter(t, store, "interactions.serviceViews"); got != 1 {
		t.Errorf("serviceViews = %d, want 1", got)
	}
	if m.buffer.Len() != 0 {
		t.Errorf("buffer not drained after flush: %d events left", m.buffer.Len())
	}
}

func TestFlushFailureRestoresAndRetryAppliesOnce(t *testing.T) {
	m, store := readyManager(t)
	m.TrackEvent(models.EventClick, nil, "/")
	m.TrackEvent(models.EventClick, nil, "/")

	store.FailNext(1, errors.New("store down"))
	err := m.Flush(context.Background(), false)
	if !errors.Is(err, ErrFlushFailed) {
		t.Fatalf("Flush error = %v, want ErrFlushFailed", err)
	}
	if got := counter(t, store, "interactions.clicks"); got != 0 {
		t.Fatalf("clicks after failed flush = %d, want 0", got)
	}
	if m.buffer.Len() != 2 {
		t.Fatalf("buffer after failed flush = %d events, want 2 restored", m.buffer.Len())
	}

	if err := m.Flush(context.Background(), false); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if got := counter(t, store, "interactions.clicks"); got != 2 {
		t.Errorf("clicks after retry = %d, want exactly 2", got)
	}
}

func TestFlushWhileBindingKeepsBuffering(t *testing.T) {
	store := docstore.NewMemoryStore()
	m := NewManager("session_test", store, models.StartSessionRequest{SessionID: "session_test"}, testOptions())
	m.TrackEvent(models.EventClick, nil, "/")

	if err := m.Flush(context.Background(), false); err != nil {
		t.Fatalf("Flush while binding: %v", err)
	}
	if m.buffer.Len() != 1 {
		t.Errorf("buffer = %d events, want 1 kept while binding", m.buffer.Len())
	}
}

func TestDegradedManagerDropsQuietly(t *testing.T) {
	m := NewManager("session_test", nil, models.StartSessionRequest{SessionID: "session_test"}, testOptions())
	if err := m.Initialize(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Initialize error = %v, want ErrStoreUnavailable", err)
	}
	if m.State() != StateDegraded {
		t.Fatalf("State = %v, want StateDegraded", m.State())
	}

	m.TrackEvent(models.EventClick, nil, "/")
	if err := m.Flush(context.Background(), false); err != nil {
		t.Fatalf("degraded Flush: %v", err)
	}
	if m.buffer.Len() != 0 {
		t.Errorf("degraded buffer = %d events, want drained", m.buffer.Len())
	}

	if _, err := m.SubmitForm(context.Background(), models.ConsultationRequest{SessionID: "session_test"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("SubmitForm error = %v, want ErrStoreUnavailable", err)
	}
	if err := m.SubscribeNewsletter(context.Background(), "a@b.com"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("SubscribeNewsletter error = %v, want ErrStoreUnavailable", err)
	}
}

func TestInitializeDegradesWhenStoreNeverAnswers(t *testing.T) {
	store := docstore.NewMemoryStore()
	store.FailNext(10, errors.New("unreachable"))
	m := NewManager("session_test", store, models.StartSessionRequest{SessionID: "session_test"}, testOptions())

	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("Initialize succeeded against an unreachable store")
	}
	if m.State() != StateDegraded {
		t.Errorf("State = %v, want StateDegraded", m.State())
	}
}

func TestSubmitFormStoresScoredConsultation(t *testing.T) {
	m, store := readyManager(t)
	req := models.ConsultationRequest{
		SessionID:    "session_test",
		FirstName:    "Ava",
		LastName:     "Sterling",
		Email:        "ava@example.com",
		ServiceType:  "comprehensive-estate",
		Budget:       "over-1m",
		PropertySize: "6 acres",
	}

	id, err := m.SubmitForm(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	if id != "session_test" {
		t.Errorf("consultation id = %q, want the session id", id)
	}

	doc, err := store.Get(context.Background(), CollectionConsultations, "session_test")
	if err != nil {
		t.Fatalf("Get consultation: %v", err)
	}
	lead, ok := doc["leadData"].(docstore.Document)
	if !ok {
		t.Fatalf("leadData is %T", doc["leadData"])
	}
	if lead["score"] != 100 {
		t.Errorf("lead score = %v, want 100", lead["score"])
	}
	if lead["priority"] != "premium" {
		t.Errorf("lead priority = %v, want premium", lead["priority"])
	}

	session, err := store.Get(context.Background(), CollectionSessions, "session_test")
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if session["status"] != models.SessionConverted {
		t.Errorf("session status = %v, want converted", session["status"])
	}
}

func TestSubmitFormResubmissionOverwrites(t *testing.T) {
	m, store := readyManager(t)
	base := models.ConsultationRequest{
		SessionID: "session_test",
		FirstName: "Ava",
		LastName:  "Sterling",
		Email:     "ava@example.com",
		Budget:    "50k-100k",
	}
	if _, err := m.SubmitForm(context.Background(), base); err != nil {
		t.Fatalf("first SubmitForm: %v", err)
	}

	base.Budget = "over-1m"
	if _, err := m.SubmitForm(context.Background(), base); err != nil {
		t.Fatalf("second SubmitForm: %v", err)
	}

	docs, err := store.QueryByField(context.Background(), CollectionConsultations, "sessionId", "session_test", 0)
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("consultations = %d docs, want 1 after resubmission", len(docs))
	}
	project := docs[0]["project"].(docstore.Document)
	if project["budget"] != "over-1m" {
		t.Errorf("budget = %v, want the resubmitted value", project["budget"])
	}
}

func TestSubmitFormNewsletterOptIn(t *testing.T) {
	m, store := readyManager(t)
	req := models.ConsultationRequest{
		SessionID:  "session_test",
		FirstName:  "Ava",
		LastName:   "Sterling",
		Email:      "ava@example.com",
		Newsletter: true,
	}
	if _, err := m.SubmitForm(context.Background(), req); err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	subs, err := store.QueryByField(context.Background(), CollectionNewsletter, "email", "ava@example.com", 0)
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("subscribers = %d, want 1", len(subs))
	}
}

func TestSubscribeNewsletterDedupsByEmail(t *testing.T) {
	m, store := readyManager(t)
	if err := m.SubscribeNewsletter(context.Background(), "ava@example.com"); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if err := m.SubscribeNewsletter(context.Background(), "ava@example.com"); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	subs, err := store.QueryByField(context.Background(), CollectionNewsletter, "email", "ava@example.com", 0)
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("subscribers = %d, want 1 after repeat signup", len(subs))
	}
	if subs[0]["status"] != "active" {
		t.Errorf("subscriber status = %v, want active", subs[0]["status"])
	}
}

func TestUpdateEngagementMonotonicScrollDepth(t *testing.T) {
	m, store := readyManager(t)
	if err := m.UpdateEngagement(context.Background(), models.EngagementMetrics{
		SessionID:      "session_test",
		TimeEngaged:    300,
		MaxScrollDepth: 80,
	}); err != nil {
		t.Fatalf("UpdateEngagement: %v", err)
	}
	if got := counter(t, store, "engagement.scrollDepth"); got != 80 {
		t.Fatalf("scrollDepth = %d, want 80", got)
	}
	// 300s engaged gives 20 time points, 80% scroll gives 32.
	if got := counter(t, store, "engagement.qualityScore"); got != 52 {
		t.Errorf("qualityScore = %d, want 52", got)
	}

	// A later, shallower report must not shrink the recorded depth.
	if err := m.UpdateEngagement(context.Background(), models.EngagementMetrics{
		SessionID:      "session_test",
		TimeEngaged:    20,
		MaxScrollDepth: 50,
	}); err != nil {
		t.Fatalf("UpdateEngagement: %v", err)
	}
	if got := counter(t, store, "engagement.scrollDepth"); got != 80 {
		t.Errorf("scrollDepth shrank to %d, want 80 kept", got)
	}

	doc, _ := store.Get(context.Background(), CollectionSessions, "session_test")
	engagement := doc["engagement"].(docstore.Document)
	if engagement["bounced"] != true {
		t.Errorf("bounced = %v, want true for a 20s visit", engagement["bounced"])
	}
}

func TestEngagementQuality(t *testing.T) {
	tests := []struct {
		timeEngaged int64
		scrollDepth int64
		converted   bool
		want        int64
	}{
		{0, 0, false, 0},
		{600, 100, false, 80},
		{600, 100, true, 100},
		{900, 100, true, 100}, // clamped
		{150, 50, false, 30},
		{30, 0, true, 22},
	}
	for _, tt := range tests {
		if got := engagementQuality(tt.timeEngaged, tt.scrollDepth, tt.converted); got != tt.want {
			t.Errorf("engagementQuality(%d, %d, %v) = %d, want %d",
				tt.timeEngaged, tt.scrollDepth, tt.converted, got, tt.want)
		}
	}
}

func TestTrackPerformance(t *testing.T) {
	m, store := readyManager(t)
	if err := m.TrackPerformance(context.Background(), models.PerformanceMetrics{
		SessionID: "session_test",
		LoadTime:  1200,
	}); err != nil {
		t.Fatalf("TrackPerformance: %v", err)
	}
	doc, _ := store.Get(context.Background(), CollectionSessions, "session_test")
	perf := doc["performance"].(docstore.Document)
	if perf["loadTime"] != int64(1200) {
		t.Errorf("loadTime = %v, want 1200", perf["loadTime"])
	}
	if perf["connectionType"] != "unknown" {
		t.Errorf("connectionType = %v, want unknown default", perf["connectionType"])
	}
}

func TestEndSessionIsTerminal(t *testing.T) {
	m, store := readyManager(t)
	m.TrackEvent(models.EventClick, nil, "/")

	if err := m.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	doc, _ := store.Get(context.Background(), CollectionSessions, "session_test")
	if doc["status"] != models.SessionEnded {
		t.Errorf("status = %v, want ended", doc["status"])
	}
	if got := counter(t, store, "interactions.clicks"); got != 1 {
		t.Errorf("clicks = %d, want 1 from the final flush", got)
	}

	if err := m.EndSession(context.Background()); err != nil {
		t.Errorf("repeated EndSession: %v", err)
	}
	if _, err := m.SubmitForm(context.Background(), models.ConsultationRequest{SessionID: "session_test"}); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("SubmitForm after end = %v, want ErrSessionEnded", err)
	}
}
