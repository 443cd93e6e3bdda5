package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"culturascape/api/database"
	"culturascape/api/models"
	"culturascape/api/utils"
)

// AnalyticsStore archives raw interaction events into ClickHouse and
// answers the dashboard's aggregate queries. The document store holds
// per-session counters; this holds the event-level history.
type AnalyticsStore struct {
	DB *database.ClickHouseClient
}

// ActionCountByTime is one time bucket of the event-count queries.
type ActionCountByTime struct {
	Time   time.Time `json:"time"`
	Action *string   `json:"action,omitempty"`
	Count  uint64    `json:"count"`
}

// TopActionResult is one row of the top-actions ranking.
type TopActionResult struct {
	Action string `json:"action"`
	Count  uint64 `json:"count"`
}

func NewAnalyticsStore(chClient *database.ClickHouseClient) *AnalyticsStore {
	return &AnalyticsStore{DB: chClient}
}

// ArchiveEvents batch-inserts a flushed batch. Implements the tracking
// pipeline's Archiver.
func (s *AnalyticsStore) ArchiveEvents(ctx context.Context, sessionID string, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO interaction_events (
			event_id, session_id, action, page, details, timestamp, offset_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		details := "{}"
		if len(event.Details) > 0 {
			if raw, err := json.Marshal(event.Details); err == nil {
				details = string(raw)
			}
		}
		err := batch.Append(
			uuid.New().String(),
			sessionID,
			event.Action,
			event.Page,
			details,
			event.Timestamp,
			event.Offset.Milliseconds(),
		)
		if err != nil {
			log.Printf("Error appending event to batch (action: %s): %v", event.Action, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// GetEventCountsOverTime buckets archived events by interval, optionally
// filtered to one action.
func (s *AnalyticsStore) GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, actionFilter string) ([]ActionCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []interface{}{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) as time_bucket, count() as total_events", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"
	isFiltering := actionFilter != ""

	if isFiltering {
		selectCols += ", action"
		groupByCols += ", action"
		whereClause += " AND action = ?"
		args = append(args, actionFilter)
		orderByCols += ", action ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM interaction_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []ActionCountByTime
	for rows.Next() {
		var (
			timeBucket time.Time
			count      uint64
			action     string
			result     ActionCountByTime
		)
		if isFiltering {
			if err := rows.Scan(&timeBucket, &count, &action); err != nil {
				log.Printf("Error scanning event counts row: %v", err)
				continue
			}
			result.Action = &action
		} else {
			if err := rows.Scan(&timeBucket, &count); err != nil {
				log.Printf("Error scanning event counts row: %v", err)
				continue
			}
		}
		result.Time = timeBucket
		result.Count = count
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts query: %w", err)
	}
	return results, nil
}

// GetTopActions ranks event names by volume in the window.
func (s *AnalyticsStore) GetTopActions(ctx context.Context, start, end time.Time, limit uint64) ([]TopActionResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT action, count() as action_count
		FROM interaction_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY action
		ORDER BY action_count DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top actions: %w", err)
	}
	defer rows.Close()

	var results []TopActionResult
	for rows.Next() {
		var action string
		var count uint64
		if err := rows.Scan(&action, &count); err != nil {
			log.Printf("Error scanning top actions row: %v", err)
			continue
		}
		results = append(results, TopActionResult{Action: action, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top actions: %w", err)
	}
	return results, nil
}

// GetUniqueSessionsOverTime buckets distinct session ids by interval.
func (s *AnalyticsStore) GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]ActionCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(session_id) AS unique_sessions
		FROM interaction_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique sessions over time: %w", err)
	}
	defer rows.Close()

	var results []ActionCountByTime
	for rows.Next() {
		var timeBucket time.Time
		var uniqueSessions uint64
		if err := rows.Scan(&timeBucket, &uniqueSessions); err != nil {
			log.Printf("Error scanning unique sessions row: %v", err)
			continue
		}
		results = append(results, ActionCountByTime{Time: timeBucket, Count: uniqueSessions})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique sessions: %w", err)
	}
	return results, nil
}
