package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept in the ring buffer. Seq increases by one per
// entry written and is never reused, so readers can resume after a seq.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent entries, dropping the oldest when full.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    uint64 // seq of the next entry
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, max(size, 1)), next: 1}
}

// Write stamps entry with the next seq, stores it and returns it.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	entry.Seq = rb.next
	rb.entries[rb.slot(rb.next)] = entry
	rb.next++
	return entry
}

func (rb *RingBuffer) slot(seq uint64) int {
	return int((seq - 1) % uint64(len(rb.entries)))
}

// oldest is the seq of the oldest entry still held. Caller holds mu.
func (rb *RingBuffer) oldest() uint64 {
	if held := uint64(len(rb.entries)); rb.next-1 > held {
		return rb.next - held
	}
	return 1
}

// Since returns the held entries with a seq above seq, oldest first.
func (rb *RingBuffer) Since(seq uint64) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	from := max(seq+1, rb.oldest())
	if from >= rb.next {
		return nil
	}
	out := make([]LogEntry, 0, rb.next-from)
	for s := from; s < rb.next; s++ {
		out = append(out, rb.entries[rb.slot(s)])
	}
	return out
}

// ReadAll returns every held entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Since(0)
}

// Count returns the number of held entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return int(rb.next - rb.oldest())
}

// LastSeq returns the seq of the newest entry, 0 when nothing was written.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.next - 1
}
