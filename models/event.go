package models

import "time"

// Recognized interaction event names. Anything outside this set is still
// buffered and archived, it just doesn't move a session counter.
const (
	EventClick               = "click"
	EventServiceClick        = "service_click"
	EventPortfolioClick      = "portfolio_click"
	EventServiceInterest     = "service_interest"
	EventScrollDepth         = "scroll_depth"
	EventScrollMilestone     = "scroll_milestone"
	EventServiceHover        = "service_hover"
	EventPortfolioHover      = "portfolio_hover"
	EventPortfolioView       = "portfolio_view"
	EventPortfolioEngagement = "portfolio_engagement"
	EventFormFocus           = "form_focus"
	EventFormInput           = "form_input"
	EventFormValidation      = "form_validation"
	EventFormInteraction     = "form_interaction"
	EventTestimonialView     = "testimonial_view"
	EventTestimonialNav      = "testimonial_navigation"
	EventCTAClick            = "cta_click"

	EventFormSubmit          = "form_submit"
	EventConsultationRequest = "consultation_request"
	EventNewsletterSignup    = "newsletter_signup"
	EventPhoneCallIntent     = "phone_call_intent"
)

// Event is a single recorded interaction. It lives in the buffer until a
// flush succeeds; a failed flush puts it back at the head of the buffer.
type Event struct {
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Page      string         `json:"page,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Offset    time.Duration  `json:"offset"` // relative to session start
}

// TrackEventRequest is the wire form of a UI interaction.
type TrackEventRequest struct {
	SessionID string         `json:"sessionId" binding:"required"`
	Action    string         `json:"action" binding:"required"`
	Details   map[string]any `json:"details"`
	Page      string         `json:"page"`
}

// BeaconPayload is the fire-and-forget unload body: the client has
// already aggregated its remaining buffer into per-counter totals.
type BeaconPayload struct {
	SessionID    string           `json:"sessionId" binding:"required"`
	Interactions map[string]int64 `json:"interactions"`
}

// PerformanceMetrics is the page load timing block reported once.
type PerformanceMetrics struct {
	SessionID        string `json:"sessionId" binding:"required"`
	LoadTime         int64  `json:"loadTime"`
	DOMContentLoaded int64  `json:"domContentLoaded"`
	TimeToFirstByte  int64  `json:"timeToFirstByte"`
	ConnectionType   string `json:"connectionType"`
}

// EngagementMetrics is the periodically reported engagement snapshot.
type EngagementMetrics struct {
	SessionID      string `json:"sessionId" binding:"required"`
	TimeEngaged    int64  `json:"timeEngaged"` // seconds
	MaxScrollDepth int64  `json:"maxScrollDepth"`
}
