package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"culturascape/api/analytics"
	"culturascape/api/docstore"
	"culturascape/api/models"
)

func trackRouter(store docstore.Store) (*gin.Engine, *analytics.Registry) {
	gin.SetMode(gin.TestMode)
	registry := analytics.NewRegistry(func(id string, meta models.StartSessionRequest) *analytics.Manager {
		return analytics.NewManager(id, store, meta, analytics.Options{
			FlushInterval: time.Hour,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
		})
	})

	h := NewTrackHandlers(registry, store)
	r := gin.New()
	r.POST("/api/sessions", h.StartSession)
	r.POST("/api/sessions/:id/end", h.EndSession)
	r.POST("/api/events", h.TrackEvent)
	r.POST("/api/track", h.Beacon)
	return r, registry
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartSessionAssignsIdentity(t *testing.T) {
	r, _ := trackRouter(docstore.NewMemoryStore())

	w := postJSON(t, r, "/api/sessions", `{"page":"/"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sessionId":"session_`) {
		t.Errorf("body = %s, want a generated session id", w.Body.String())
	}
}

func TestStartSessionReusesProvidedId(t *testing.T) {
	r, registry := trackRouter(docstore.NewMemoryStore())

	w := postJSON(t, r, "/api/sessions", `{"sessionId":"session_reuse"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sessionId":"session_reuse"`) {
		t.Errorf("body = %s, want the provided id echoed", w.Body.String())
	}
	if _, ok := registry.Lookup("session_reuse"); !ok {
		t.Error("session not registered under the provided id")
	}
}

func TestTrackEventAutoStartsUnknownSession(t *testing.T) {
	r, registry := trackRouter(docstore.NewMemoryStore())

	w := postJSON(t, r, "/api/events", `{"sessionId":"session_new","action":"click","page":"/"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if _, ok := registry.Lookup("session_new"); !ok {
		t.Error("unknown session was not auto-started")
	}
}

func TestTrackEventRejectsMissingAction(t *testing.T) {
	r, _ := trackRouter(docstore.NewMemoryStore())
	w := postJSON(t, r, "/api/events", `{"sessionId":"session_x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBeaconAppliesClientAggregatedCounters(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	err := store.Create(ctx, analytics.CollectionSessions, "session_beacon", docstore.Document{
		"interactions": docstore.Document{"clicks": int64(3)},
	})
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}
	r, _ := trackRouter(store)

	w := postJSON(t, r, "/api/track",
		`{"sessionId":"session_beacon","interactions":{"clicks":5,"scrolls":2,"bogus":-3}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	doc, err := store.Get(ctx, analytics.CollectionSessions, "session_beacon")
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	interactions := doc["interactions"].(docstore.Document)
	if interactions["clicks"] != int64(8) {
		t.Errorf("clicks = %v, want 8", interactions["clicks"])
	}
	if interactions["scrolls"] != int64(2) {
		t.Errorf("scrolls = %v, want 2", interactions["scrolls"])
	}
	if _, present := interactions["bogus"]; present {
		t.Error("non-positive delta applied")
	}
}

func TestBeaconNeverFailsTowardTheClient(t *testing.T) {
	r, _ := trackRouter(docstore.NewMemoryStore())

	// Unknown session, malformed body, degraded store: all 204.
	if w := postJSON(t, r, "/api/track", `{"sessionId":"session_unknown","interactions":{"clicks":1}}`); w.Code != http.StatusNoContent {
		t.Errorf("unknown session status = %d, want 204", w.Code)
	}
	if w := postJSON(t, r, "/api/track", `not json`); w.Code != http.StatusNoContent {
		t.Errorf("malformed body status = %d, want 204", w.Code)
	}

	degraded, _ := trackRouter(nil)
	if w := postJSON(t, degraded, "/api/track", `{"sessionId":"s","interactions":{"clicks":1}}`); w.Code != http.StatusNoContent {
		t.Errorf("degraded status = %d, want 204", w.Code)
	}
}

func TestEndSessionForgetsManager(t *testing.T) {
	r, registry := trackRouter(docstore.NewMemoryStore())

	postJSON(t, r, "/api/sessions", `{"sessionId":"session_end"}`)
	w := postJSON(t, r, "/api/sessions/session_end/end", ``)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if _, ok := registry.Lookup("session_end"); ok {
		t.Error("ended session still registered")
	}
}
