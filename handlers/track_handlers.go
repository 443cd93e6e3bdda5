package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"culturascape/api/analytics"
	"culturascape/api/docstore"
	"culturascape/api/models"
)

// TrackHandlers is the public tracking surface the site's UI talks to.
type TrackHandlers struct {
	Registry *analytics.Registry
	Store    docstore.Store // nil when running degraded
}

func NewTrackHandlers(registry *analytics.Registry, store docstore.Store) *TrackHandlers {
	return &TrackHandlers{Registry: registry, Store: store}
}

// StartSession creates (or rejoins) a session and returns its id.
func (h *TrackHandlers) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}
	m := h.Registry.Start(req)
	c.JSON(http.StatusOK, gin.H{"sessionId": m.SessionID()})
}

// TrackEvent buffers one interaction. Always 202: tracking never fails
// loudly toward the page.
func (h *TrackHandlers) TrackEvent(c *gin.Context) {
	var req models.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	m, ok := h.Registry.Lookup(req.SessionID)
	if !ok {
		m = h.Registry.Start(models.StartSessionRequest{
			SessionID: req.SessionID,
			UserAgent: c.Request.UserAgent(),
			Page:      req.Page,
		})
	}
	m.TrackEvent(req.Action, req.Details, req.Page)
	c.Status(http.StatusAccepted)
}

// Beacon is the unload sink: the client aggregated its remaining buffer
// itself, so the counters are applied directly as increments. The sender
// never reads the response, so this answers 204 no matter what.
func (h *TrackHandlers) Beacon(c *gin.Context) {
	var payload models.BeaconPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	if h.Store == nil || len(payload.Interactions) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	fields := docstore.Document{"lastActivity": docstore.ServerTimestamp()}
	for name, delta := range payload.Interactions {
		if delta > 0 {
			fields["interactions."+name] = docstore.Increment(delta)
		}
	}
	if err := h.Store.UpdateFields(c.Request.Context(), analytics.CollectionSessions, payload.SessionID, fields); err != nil {
		log.Printf("Beacon update for %s failed: %v", payload.SessionID, err)
	}
	c.Status(http.StatusNoContent)
}

// TrackPerformance records the load timing block.
func (h *TrackHandlers) TrackPerformance(c *gin.Context) {
	var metrics models.PerformanceMetrics
	if err := c.ShouldBindJSON(&metrics); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	m, ok := h.Registry.Lookup(metrics.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session"})
		return
	}
	if err := m.TrackPerformance(c.Request.Context(), metrics); err != nil {
		log.Printf("Performance update for %s failed: %v", metrics.SessionID, err)
	}
	c.Status(http.StatusAccepted)
}

// UpdateEngagement records the engagement snapshot.
func (h *TrackHandlers) UpdateEngagement(c *gin.Context) {
	var metrics models.EngagementMetrics
	if err := c.ShouldBindJSON(&metrics); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	m, ok := h.Registry.Lookup(metrics.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session"})
		return
	}
	if err := m.UpdateEngagement(c.Request.Context(), metrics); err != nil {
		log.Printf("Engagement update for %s failed: %v", metrics.SessionID, err)
	}
	c.Status(http.StatusAccepted)
}

// EndSession closes a session out. Ended is terminal.
func (h *TrackHandlers) EndSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session id is required"})
		return
	}
	if err := h.Registry.End(c.Request.Context(), sessionID); err != nil {
		log.Printf("End session %s: %v", sessionID, err)
	}
	c.Status(http.StatusNoContent)
}
