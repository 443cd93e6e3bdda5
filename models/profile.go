package models

import "time"

// AccessibilityPrefs are the assistive flags the site applies on load.
type AccessibilityPrefs struct {
	HighContrast  bool `json:"highContrast"`
	LargeText     bool `json:"largeText"`
	ScreenReader  bool `json:"screenReader"`
	ReducedMotion bool `json:"reducedMotion"`
}

// PerformancePrefs gate the heavier visual effects.
type PerformancePrefs struct {
	EnableParticles  bool `json:"enableParticles"`
	EnableCursor     bool `json:"enableCursor"`
	EnableAnimations bool `json:"enableAnimations"`
}

// Preferences is the full preference set, dual-homed local and remote.
type Preferences struct {
	Theme         string             `json:"theme"`
	Notifications bool               `json:"notifications"`
	Newsletter    bool               `json:"newsletter"`
	Accessibility AccessibilityPrefs `json:"accessibility"`
	Performance   PerformancePrefs   `json:"performance"`
}

// PreferencesUpdate is a partial preference patch; nil fields are left as
// they are.
type PreferencesUpdate struct {
	Theme            *string `json:"theme"`
	Notifications    *bool   `json:"notifications"`
	Newsletter       *bool   `json:"newsletter"`
	HighContrast     *bool   `json:"highContrast"`
	LargeText        *bool   `json:"largeText"`
	ScreenReader     *bool   `json:"screenReader"`
	ReducedMotion    *bool   `json:"reducedMotion"`
	EnableParticles  *bool   `json:"enableParticles"`
	EnableCursor     *bool   `json:"enableCursor"`
	EnableAnimations *bool   `json:"enableAnimations"`
}

// ConsultationSummary is one entry of the bounded consultation history.
type ConsultationSummary struct {
	ID          string    `json:"id"`
	ServiceType string    `json:"serviceType"`
	Budget      string    `json:"budget"`
	Score       int       `json:"score"`
	Date        time.Time `json:"date"`
}

// UserInfo is the free-form identity block of a profile.
type UserInfo struct {
	FirstName           string                `json:"firstName,omitempty"`
	LastName            string                `json:"lastName,omitempty"`
	Email               string                `json:"email,omitempty"`
	Phone               string                `json:"phone,omitempty"`
	ConsultationHistory []ConsultationSummary `json:"consultationHistory,omitempty"`
}

// Profile is the durable slot persisted locally and mirrored remotely.
// LastUpdated (unix milliseconds) is the sole merge key between the two.
type Profile struct {
	User        *UserInfo   `json:"user"`
	Preferences Preferences `json:"preferences"`
	LastUpdated int64       `json:"lastUpdated"`
}
