package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"culturascape/api/store"
)

// StatsHandlers serves the dashboard's aggregate views over the
// ClickHouse event archive. All routes sit behind JWT auth.
type StatsHandlers struct {
	AnalyticsStore *store.AnalyticsStore
}

func NewStatsHandlers(s *store.AnalyticsStore) *StatsHandlers {
	return &StatsHandlers{AnalyticsStore: s}
}

func contextWithTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

// parseWindow reads optional RFC3339 start/end query params, defaulting
// to the trailing seven days.
func parseWindow(c *gin.Context) (start, end time.Time, ok bool) {
	end = time.Now().UTC()
	start = end.Add(-7 * 24 * time.Hour)

	if param := c.Query("start"); param != "" {
		parsed, err := time.Parse(time.RFC3339, param)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
		start = parsed
	}
	if param := c.Query("end"); param != "" {
		parsed, err := time.Parse(time.RFC3339, param)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
		end = parsed
	}
	return start, end, true
}

func (h *StatsHandlers) GetEventCountsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c)
	defer cancel()

	results, err := h.AnalyticsStore.GetEventCountsOverTime(ctx, interval, start, end, c.Query("action"))
	if err != nil {
		log.Printf("Error getting event counts over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetTopActions(c *gin.Context) {
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if param := c.Query("limit"); param != "" {
		parsed, err := strconv.ParseUint(param, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := contextWithTimeout(c)
	defer cancel()

	results, err := h.AnalyticsStore.GetTopActions(ctx, start, end, limit)
	if err != nil {
		log.Printf("Error getting top actions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top action statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetUniqueSessionsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c)
	defer cancel()

	results, err := h.AnalyticsStore.GetUniqueSessionsOverTime(ctx, interval, start, end)
	if err != nil {
		log.Printf("Error getting unique sessions over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unique session statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}
