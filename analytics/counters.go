package analytics

import (
	"culturascape/api/docstore"
	"culturascape/api/models"
)

// Counters is a flush batch aggregated per session counter. Aggregation
// happens once per flush, not per event, so a batch of 25 clicks becomes
// a single +25 increment.
type Counters struct {
	Clicks             int64
	ServiceViews       int64
	Scrolls            int64
	ServiceHovers      int64
	PortfolioViews     int64
	FormEngagement     int64
	TestimonialViews   int64
	CallToActionClicks int64
	MaxScrollDepth     int64
}

// criticalEvents force an immediate flush when tracked.
var criticalEvents = map[string]bool{
	models.EventFormSubmit:          true,
	models.EventConsultationRequest: true,
	models.EventNewsletterSignup:    true,
	models.EventPhoneCallIntent:     true,
}

// IsCritical reports whether the event name belongs to the critical set.
func IsCritical(action string) bool {
	return criticalEvents[action]
}

// Aggregate folds a drained batch into per-counter totals.
func Aggregate(events []models.Event) Counters {
	var c Counters
	for _, e := range events {
		switch e.Action {
		case models.EventClick, models.EventServiceClick, models.EventPortfolioClick:
			c.Clicks++
		case models.EventServiceInterest:
			c.ServiceViews++
		case models.EventScrollDepth, models.EventScrollMilestone:
			c.Scrolls++
			if depth := eventDepth(e); depth > c.MaxScrollDepth {
				c.MaxScrollDepth = depth
			}
		case models.EventServiceHover:
			c.ServiceHovers++
		case models.EventPortfolioHover, models.EventPortfolioView, models.EventPortfolioEngagement:
			c.PortfolioViews++
		case models.EventFormFocus, models.EventFormInput, models.EventFormValidation, models.EventFormInteraction:
			c.FormEngagement++
		case models.EventTestimonialView, models.EventTestimonialNav:
			c.TestimonialViews++
		case models.EventCTAClick:
			c.CallToActionClicks++
		}
	}
	return c
}

// Total is the number of counted interactions in the batch.
func (c Counters) Total() int64 {
	return c.Clicks + c.ServiceViews + c.Scrolls + c.ServiceHovers +
		c.PortfolioViews + c.FormEngagement + c.TestimonialViews + c.CallToActionClicks
}

// UpdateFields renders the non-zero counters as increment sentinels under
// the session document's interactions block. Max scroll depth is
// overwrite-on-grow, not an increment.
func (c Counters) UpdateFields() docstore.Document {
	fields := docstore.Document{}
	add := func(name string, n int64) {
		if n != 0 {
			fields["interactions."+name] = docstore.Increment(n)
		}
	}
	add("clicks", c.Clicks)
	add("serviceViews", c.ServiceViews)
	add("scrolls", c.Scrolls)
	add("serviceHovers", c.ServiceHovers)
	add("portfolioViews", c.PortfolioViews)
	add("formEngagement", c.FormEngagement)
	add("testimonialViews", c.TestimonialViews)
	add("callToActionClicks", c.CallToActionClicks)
	if c.MaxScrollDepth > 0 {
		fields["engagement.scrollDepth"] = docstore.Max(c.MaxScrollDepth)
	}
	return fields
}

func eventDepth(e models.Event) int64 {
	switch depth := e.Details["depth"].(type) {
	case float64:
		return int64(depth)
	case int64:
		return depth
	case int:
		return int64(depth)
	}
	return 0
}
