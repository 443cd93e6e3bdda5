package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"culturascape/api/models"
	"culturascape/api/profile"
)

// ProfileHandlers exposes the dual-homed preference layer. The profile
// key is the session identity the client carries across visits.
type ProfileHandlers struct {
	Profiles *profile.Service
}

func NewProfileHandlers(profiles *profile.Service) *ProfileHandlers {
	return &ProfileHandlers{Profiles: profiles}
}

// GetPreferences returns the effective preferences after local load and
// remote reconciliation.
func (h *ProfileHandlers) GetPreferences(c *gin.Context) {
	key := c.Query("profileKey")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profileKey query parameter is required"})
		return
	}
	m, err := h.Profiles.Manager(c.Request.Context(), key)
	if err != nil {
		log.Printf("Profile load for %s failed: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": m.Preferences()})
}

// UpdatePreferences applies a partial patch and returns the result.
func (h *ProfileHandlers) UpdatePreferences(c *gin.Context) {
	var req struct {
		ProfileKey string                   `json:"profileKey" binding:"required"`
		Patch      models.PreferencesUpdate `json:"preferences"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preferences request"})
		return
	}
	m, err := h.Profiles.Manager(c.Request.Context(), req.ProfileKey)
	if err != nil {
		log.Printf("Profile load for %s failed: %v", req.ProfileKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	prefs, err := m.UpdatePreferences(c.Request.Context(), req.Patch)
	if err != nil {
		log.Printf("Preference update for %s failed: %v", req.ProfileKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// GetProfile exports the whole profile snapshot, history included.
func (h *ProfileHandlers) GetProfile(c *gin.Context) {
	key := c.Query("profileKey")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profileKey query parameter is required"})
		return
	}
	m, err := h.Profiles.Manager(c.Request.Context(), key)
	if err != nil {
		log.Printf("Profile load for %s failed: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, m.Export())
}

// SetUserInfo overlays identity fields onto the profile.
func (h *ProfileHandlers) SetUserInfo(c *gin.Context) {
	var req struct {
		ProfileKey string          `json:"profileKey" binding:"required"`
		User       models.UserInfo `json:"user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user info request"})
		return
	}
	m, err := h.Profiles.Manager(c.Request.Context(), req.ProfileKey)
	if err != nil {
		log.Printf("Profile load for %s failed: %v", req.ProfileKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	if err := m.SetUserInfo(c.Request.Context(), req.User); err != nil {
		log.Printf("User info update for %s failed: %v", req.ProfileKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save user info"})
		return
	}
	c.Status(http.StatusNoContent)
}
