package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"culturascape/api/analytics"
	"culturascape/api/models"
	"culturascape/api/profile"
)

// ConsultationHandlers owns form submission and newsletter signup: the
// two user-initiated writes that fail loudly instead of degrading.
type ConsultationHandlers struct {
	Registry *analytics.Registry
	Profiles *profile.Service
}

func NewConsultationHandlers(registry *analytics.Registry, profiles *profile.Service) *ConsultationHandlers {
	return &ConsultationHandlers{Registry: registry, Profiles: profiles}
}

// SubmitConsultation validates the booking form, scores it, and stores
// one consultation per session. Resubmitting overwrites.
func (h *ConsultationHandlers) SubmitConsultation(c *gin.Context) {
	var req models.ConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid consultation request", "details": err.Error()})
		return
	}

	m, ok := h.Registry.Lookup(req.SessionID)
	if !ok {
		m = h.Registry.Start(models.StartSessionRequest{
			SessionID: req.SessionID,
			UserAgent: c.Request.UserAgent(),
		})
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	consultationID, err := m.SubmitForm(c.Request.Context(), req)
	if errors.Is(err, analytics.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Booking service is temporarily unavailable"})
		return
	}
	if errors.Is(err, analytics.ErrSessionEnded) {
		c.JSON(http.StatusConflict, gin.H{"error": "Session has already ended"})
		return
	}
	if err != nil {
		log.Printf("Consultation submission for %s failed: %v", req.SessionID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to record consultation"})
		return
	}

	// Mirror the submission into the visitor's profile history.
	if h.Profiles != nil {
		if pm, perr := h.Profiles.Manager(c.Request.Context(), req.SessionID); perr == nil {
			if herr := pm.AddConsultation(c.Request.Context(), models.ConsultationSummary{
				ID:          consultationID,
				ServiceType: req.ServiceType,
				Budget:      req.Budget,
			}); herr != nil {
				log.Printf("Consultation history for %s: %v", req.SessionID, herr)
			}
		} else {
			log.Printf("Profile load for %s: %v", req.SessionID, perr)
		}
	}

	m.TrackEvent(models.EventConsultationRequest, map[string]any{"serviceType": req.ServiceType}, "")
	c.JSON(http.StatusCreated, gin.H{"consultationId": consultationID})
}

// SubscribeNewsletter dedups by email; repeated signups refresh rather
// than duplicate.
func (h *ConsultationHandlers) SubscribeNewsletter(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid newsletter request"})
		return
	}
	m, ok := h.Registry.Lookup(req.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session"})
		return
	}
	if err := m.SubscribeNewsletter(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, analytics.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Newsletter service is temporarily unavailable"})
			return
		}
		log.Printf("Newsletter signup for %s failed: %v", req.SessionID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to subscribe"})
		return
	}
	m.TrackEvent(models.EventNewsletterSignup, nil, "")
	c.Status(http.StatusCreated)
}
