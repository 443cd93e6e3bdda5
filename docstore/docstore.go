// Package docstore wraps the hosted document database behind a small
// collection/id capability so the tracking pipeline never touches a
// driver type directly.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Get when no document exists under the id.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrNotReady is returned by WaitReady when the attempt budget is spent.
	ErrNotReady = errors.New("docstore: store not reachable")
)

// Document is a single document's fields. Values in an UpdateFields call
// may be the Increment, Max, or ServerTimestamp sentinels; everything
// else is an overwrite.
type Document map[string]any

// IncrementValue asks the store to apply a delta server-side instead of a
// read-modify-write, so concurrent writers never lose counts.
type IncrementValue struct{ Delta int64 }

// MaxValue asks the store to keep the greater of the stored value and
// Candidate. Used for monotonic fields like max scroll depth.
type MaxValue struct{ Candidate int64 }

// TimestampValue is resolved to the store's own clock at write time.
type TimestampValue struct{}

// Increment builds a field-level atomic increment.
func Increment(delta int64) IncrementValue { return IncrementValue{Delta: delta} }

// Max builds an overwrite-on-grow value.
func Max(candidate int64) MaxValue { return MaxValue{Candidate: candidate} }

// ServerTimestamp builds a server-assigned timestamp.
func ServerTimestamp() TimestampValue { return TimestampValue{} }

// Store is the opaque document database the pipeline writes to. Create
// overwrites any existing document under the same id, which is what makes
// consultation submission idempotent per session.
type Store interface {
	Create(ctx context.Context, collection, id string, data Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
	UpdateFields(ctx context.Context, collection, id string, fields Document) error
	QueryByField(ctx context.Context, collection, field string, value any, limit int64) ([]Document, error)
	Ping(ctx context.Context) error
}

// WaitReady pings the store until it answers, up to attempts tries with a
// growing pause between them. It returns the last ping error wrapped in
// ErrNotReady once the budget is spent.
func WaitReady(ctx context.Context, s Store, attempts int, baseDelay time.Duration) error {
	var last error
	for i := 0; i < attempts; i++ {
		if last = s.Ping(ctx); last == nil {
			return nil
		}
		pause := baseDelay + time.Duration(i)*baseDelay/4
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrNotReady, attempts, last)
}

// AsTime normalizes the timestamp representations the store hands back
// (driver time types, unix milliseconds) into a time.Time.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case int64:
		return time.UnixMilli(t), true
	case float64:
		return time.UnixMilli(int64(t)), true
	case interface{ Time() time.Time }: // primitive.DateTime and friends
		return t.Time(), true
	}
	return time.Time{}, false
}
