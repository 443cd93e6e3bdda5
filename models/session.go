package models

// Session status values. A session converts on form submission and ends
// on explicit teardown; nothing transitions out of ended.
const (
	SessionActive    = "active"
	SessionConverted = "converted"
	SessionEnded     = "ended"
)

// Interactions are the per-session counters. They only ever grow, via
// server-side increments issued at flush time.
type Interactions struct {
	Clicks             int64 `json:"clicks" bson:"clicks"`
	ServiceViews       int64 `json:"serviceViews" bson:"serviceViews"`
	Scrolls            int64 `json:"scrolls" bson:"scrolls"`
	ServiceHovers      int64 `json:"serviceHovers" bson:"serviceHovers"`
	PortfolioViews     int64 `json:"portfolioViews" bson:"portfolioViews"`
	FormEngagement     int64 `json:"formEngagement" bson:"formEngagement"`
	TestimonialViews   int64 `json:"testimonialViews" bson:"testimonialViews"`
	CallToActionClicks int64 `json:"callToActionClicks" bson:"callToActionClicks"`
}

// Engagement holds the derived metrics written alongside the counters.
type Engagement struct {
	TimeOnPage   int64 `json:"timeOnPage" bson:"timeOnPage"` // seconds
	ScrollDepth  int64 `json:"scrollDepth" bson:"scrollDepth"`
	QualityScore int64 `json:"qualityScore" bson:"qualityScore"`
	Bounced      bool  `json:"bounced" bson:"bounced"`
}

// StartSessionRequest lets the client reuse an id it already holds, for
// example after a reload within the same visit.
type StartSessionRequest struct {
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
	Referrer  string `json:"referrer"`
	Page      string `json:"page"`
	Viewport  string `json:"viewport"`
}
