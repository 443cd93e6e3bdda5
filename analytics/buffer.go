package analytics

import (
	"sync"

	"culturascape/api/models"
)

// DefaultBufferThreshold is the buffered-event count that forces a flush.
const DefaultBufferThreshold = 20

// Buffer is the in-memory event queue. The flush path drains it in one
// atomic swap and operates on the drained copy, so only the mutex here
// guards the slice; a failed flush puts the drained batch back at the
// head, ahead of anything appended meanwhile.
type Buffer struct {
	mu        sync.Mutex
	events    []models.Event
	threshold int
}

func NewBuffer(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultBufferThreshold
	}
	return &Buffer{threshold: threshold}
}

// Add appends an event and reports whether the buffer has reached its
// flush threshold. It never blocks beyond the mutex.
func (b *Buffer) Add(e models.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return len(b.events) >= b.threshold
}

// Drain removes and returns every buffered event in arrival order.
func (b *Buffer) Drain() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.events
	b.events = nil
	return drained
}

// Restore puts a failed batch back in front of whatever arrived since the
// drain, preserving happened-before order for the retry.
func (b *Buffer) Restore(batch []models.Event) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	restored := make([]models.Event, 0, len(batch)+len(b.events))
	restored = append(restored, batch...)
	restored = append(restored, b.events...)
	b.events = restored
}

// Len reports the current queue depth.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
