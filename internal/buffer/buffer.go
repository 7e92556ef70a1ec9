package buffer

import (
	"sync"

	"github.com/xaenox/goodluck-bot/internal/metrics"
	"github.com/xaenox/goodluck-bot/internal/models"
)

// Item is a buffered record plus the number of failed writes it has seen.
type Item struct {
	Record   models.PendingRecord
	Attempts int
}

// Buffer holds records until the next flush. It never blocks on I/O and
// never drops a record on its own.
type Buffer struct {
	mu      sync.Mutex
	pending []Item
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Enqueue(rec models.PendingRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, Item{Record: rec})
	metrics.BufferedRecords.Set(float64(len(b.pending)))
}

// Drain takes everything buffered so far. Records enqueued afterwards go to
// a fresh slice and are left for the next drain.
func (b *Buffer) Drain() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.pending
	b.pending = nil
	metrics.BufferedRecords.Set(0)
	return items
}

// Requeue puts failed items back ahead of anything enqueued since the drain.
func (b *Buffer) Requeue(items []Item) {
	if len(items) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]Item, 0, len(items)+len(b.pending))
	next = append(next, items...)
	next = append(next, b.pending...)
	b.pending = next
	metrics.BufferedRecords.Set(float64(len(b.pending)))
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
