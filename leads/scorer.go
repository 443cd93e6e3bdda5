// Package leads turns a submitted consultation form into a bounded score,
// a priority tier, an estimated project value, and an urgency class.
// Scoring is pure: same payload, same verdict.
package leads

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"culturascape/api/models"
)

// Urgency classes derived from the requested start date.
const (
	UrgencyUrgent   = "urgent"   // within 30 days
	UrgencyModerate = "moderate" // within 90 days
	UrgencyFlexible = "flexible"
	UrgencyUnknown  = "unknown"
)

// Tier is one bucket of a policy's score range.
type Tier struct {
	Min  int
	Name string
}

// AcreBonus awards Points once the parsed property size reaches MinAcres.
type AcreBonus struct {
	MinAcres float64
	Points   int
}

// Policy is one named weighted-sum scoring scheme. Two are defined below;
// they share the arithmetic but not the tables, and call sites must not
// mix their tiers.
type Policy struct {
	Name                 string
	ServiceWeights       map[string]int
	DefaultServiceWeight int
	BudgetWeights        map[string]int
	DefaultBudgetWeight  int
	AcreBonuses          []AcreBonus // descending by MinAcres
	DescriptionMinChars  int
	DescriptionBonus     int
	Tiers                []Tier // descending by Min; last entry is the floor
}

// LeadPriorityPolicy is the scheme the sales pipeline sorts by. Tiers at
// 80/60/40.
var LeadPriorityPolicy = Policy{
	Name: "lead_priority",
	ServiceWeights: map[string]int{
		"bespoke-design":       35,
		"comprehensive-estate": 40,
		"luxury-hardscaping":   30,
		"botanical-curation":   25,
		"master-arboriculture": 20,
		"smart-irrigation":     15,
		"estate-maintenance":   10,
	},
	BudgetWeights: map[string]int{
		"over-1m":   40,
		"500k-1m":   35,
		"250k-500k": 25,
		"100k-250k": 15,
		"50k-100k":  5,
	},
	AcreBonuses: []AcreBonus{
		{MinAcres: 5, Points: 20},
		{MinAcres: 2, Points: 15},
		{MinAcres: 1, Points: 10},
	},
	DescriptionMinChars: 150,
	DescriptionBonus:    15,
	Tiers: []Tier{
		{Min: 80, Name: "premium"},
		{Min: 60, Name: "high"},
		{Min: 40, Name: "medium"},
		{Min: 0, Name: "standard"},
	},
}

// EngagementQualityPolicy is the heavier-weighted quality scheme. Tiers
// at 85/65/45.
var EngagementQualityPolicy = Policy{
	Name: "engagement_quality",
	ServiceWeights: map[string]int{
		"comprehensive-estate": 50,
		"bespoke-design":       45,
		"luxury-hardscaping":   40,
		"botanical-curation":   30,
		"master-arboriculture": 25,
		"smart-irrigation":     20,
		"estate-maintenance":   15,
	},
	DefaultServiceWeight: 5,
	BudgetWeights: map[string]int{
		"over-1m":   50,
		"500k-1m":   40,
		"250k-500k": 30,
		"100k-250k": 20,
		"50k-100k":  10,
	},
	AcreBonuses: []AcreBonus{
		{MinAcres: 5, Points: 25},
		{MinAcres: 2, Points: 15},
		{MinAcres: 1, Points: 10},
	},
	DescriptionMinChars: 150,
	DescriptionBonus:    15,
	Tiers: []Tier{
		{Min: 85, Name: "exceptional"},
		{Min: 65, Name: "strong"},
		{Min: 45, Name: "moderate"},
		{Min: 0, Name: "baseline"},
	},
}

// Score applies the policy's weighted sum and clamps to [0, 100].
func (p Policy) Score(req models.ConsultationRequest) int {
	score := p.DefaultServiceWeight
	if w, ok := p.ServiceWeights[req.ServiceType]; ok {
		score = w
	}
	if w, ok := p.BudgetWeights[req.Budget]; ok {
		score += w
	} else {
		score += p.DefaultBudgetWeight
	}
	if acres, ok := ParseAcres(req.PropertySize); ok {
		for _, bonus := range p.AcreBonuses {
			if acres >= bonus.MinAcres {
				score += bonus.Points
				break
			}
		}
	}
	if len(req.ProjectDescription) > p.DescriptionMinChars {
		score += p.DescriptionBonus
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Tier buckets a score. Buckets are total and monotonic: every score in
// [0, 100] lands in exactly one, and a higher score never drops a tier.
func (p Policy) Tier(score int) string {
	for _, tier := range p.Tiers {
		if score >= tier.Min {
			return tier.Name
		}
	}
	return p.Tiers[len(p.Tiers)-1].Name
}

var budgetValues = map[string]int64{
	"over-1m":   1_500_000,
	"500k-1m":   750_000,
	"250k-500k": 375_000,
	"100k-250k": 175_000,
	"50k-100k":  75_000,
}

// EstimatedValue maps a budget bracket to a representative dollar figure.
func EstimatedValue(budget string) int64 {
	if v, ok := budgetValues[budget]; ok {
		return v
	}
	return 50_000
}

// LuxuryTier is the client-facing service tier implied by the budget.
func LuxuryTier(budget string) string {
	switch budget {
	case "over-1m":
		return "platinum"
	case "500k-1m", "250k-500k":
		return "gold"
	case "100k-250k":
		return "silver"
	default:
		return "bronze"
	}
}

// Urgency classifies the requested start date relative to now. An absent
// or unparsable date is unknown, not flexible.
func Urgency(preferredDate string, now time.Time) string {
	if preferredDate == "" {
		return UrgencyUnknown
	}
	date, err := time.Parse("2006-01-02", preferredDate)
	if err != nil {
		return UrgencyUnknown
	}
	days := date.Sub(now).Hours() / 24
	switch {
	case days <= 30:
		return UrgencyUrgent
	case days <= 90:
		return UrgencyModerate
	default:
		return UrgencyFlexible
	}
}

// ParseAcres pulls a leading acreage figure out of free text like
// "6 acres" or "2.5-acre estate". Text without an acre unit doesn't
// count, matching the form's expectations.
func ParseAcres(propertySize string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(propertySize))
	if !strings.Contains(s, "acre") {
		return 0, false
	}
	end := 0
	for end < len(s) && (unicode.IsDigit(rune(s[end])) || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	acres, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return acres, true
}

// Evaluate runs both policies over one payload. The stored priority comes
// from LeadPriorityPolicy; the quality score and tier come from
// EngagementQualityPolicy.
func Evaluate(req models.ConsultationRequest, now time.Time) models.LeadData {
	score := LeadPriorityPolicy.Score(req)
	quality := EngagementQualityPolicy.Score(req)
	return models.LeadData{
		Score:          score,
		Priority:       LeadPriorityPolicy.Tier(score),
		QualityScore:   quality,
		QualityTier:    EngagementQualityPolicy.Tier(quality),
		EstimatedValue: EstimatedValue(req.Budget),
		Urgency:        Urgency(req.PreferredDate, now),
		LuxuryTier:     LuxuryTier(req.Budget),
	}
}
