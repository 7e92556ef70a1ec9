package tally

import (
	"sync"
	"time"
)

// Entry is the running match count of one sender.
type Entry struct {
	SenderID int64  `json:"sender_id"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
}

// Table aggregates matches per sender id. The display name is the one seen
// on the sender's first match.
type Table struct {
	mu      sync.Mutex
	entries map[int64]*Entry
	order   []int64
	resetAt time.Time
}

func New() *Table {
	return &Table{
		entries: make(map[int64]*Entry),
		resetAt: time.Now(),
	}
}

// RecordMatch increments the sender's count and returns the new value.
func (t *Table) RecordMatch(senderID int64, name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[senderID]
	if !ok {
		e = &Entry{SenderID: senderID, Name: name}
		t.entries[senderID] = e
		t.order = append(t.order, senderID)
	}
	e.Count++
	return e.Count
}

func (t *Table) Get(senderID int64) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[senderID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns a copy of all entries in first-match order.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.entries[id])
	}
	return out
}

// Reset drops every entry and returns what was dropped.
func (t *Table) Reset() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		dropped = append(dropped, *t.entries[id])
	}
	t.entries = make(map[int64]*Entry)
	t.order = nil
	t.resetAt = time.Now()
	return dropped
}

// Since is the time the current counting window started.
func (t *Table) Since() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetAt
}
