package models

// Consultation pipeline stages.
const (
	StageNew       = "new"
	StageContacted = "contacted"
	StageQualified = "qualified"
	StageConverted = "converted"
)

// ConsultationRequest is the booking form as submitted. Only the contact
// block is required; everything else is coerced to its zero value when
// absent so the scorer always sees a full payload.
type ConsultationRequest struct {
	SessionID string `json:"sessionId" binding:"required"`

	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`

	ServiceType        string `json:"serviceType"`
	Budget             string `json:"budget"`
	PropertySize       string `json:"propertySize"`
	ProjectDescription string `json:"projectDescription"`
	PreferredDate      string `json:"preferredDate"` // YYYY-MM-DD

	Referrer  string `json:"referrer"`
	UserAgent string `json:"userAgent"`
	Newsletter bool  `json:"newsletter"`
}

// LeadData is the scorer's verdict stored on the consultation document.
type LeadData struct {
	Score          int    `json:"score" bson:"score"`
	Priority       string `json:"priority" bson:"priority"`
	QualityScore   int    `json:"qualityScore" bson:"qualityScore"`
	QualityTier    string `json:"qualityTier" bson:"qualityTier"`
	EstimatedValue int64  `json:"estimatedValue" bson:"estimatedValue"`
	Urgency        string `json:"urgency" bson:"urgency"`
	LuxuryTier     string `json:"luxuryTier" bson:"luxuryTier"`
}

// ConsultationStatus mirrors the pipeline booleans plus the current stage.
type ConsultationStatus struct {
	New       bool   `json:"new" bson:"new"`
	Contacted bool   `json:"contacted" bson:"contacted"`
	Qualified bool   `json:"qualified" bson:"qualified"`
	Converted bool   `json:"converted" bson:"converted"`
	Stage     string `json:"stage" bson:"stage"`
}
