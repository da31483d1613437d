package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats summarises a run.
type Stats struct {
	Captured uint64 // frames pushed by the capture stage
	Encoded  uint64 // frames handed to the encoder
	Misses   uint64 // capture timeouts
	Overruns uint64 // iterations that finished after the next deadline
	Skipped  uint64 // slots dropped under PolicyDrop
	Bytes    int64  // bytes written to the sink
	Writes   int    // sink writes
	Peak     int    // deepest frame queue observed
	Elapsed  time.Duration
}

// FPS is the effective encoded frame rate.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Encoded) / s.Elapsed.Seconds()
}

// counters are shared by both stages while a run is live.
type counters struct {
	captured atomic.Uint64
	encoded  atomic.Uint64
	misses   atomic.Uint64
	overruns atomic.Uint64
	skipped  atomic.Uint64
	bytes    atomic.Int64
	writes   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Captured: c.captured.Load(),
		Encoded:  c.encoded.Load(),
		Misses:   c.misses.Load(),
		Overruns: c.overruns.Load(),
		Skipped:  c.skipped.Load(),
		Bytes:    c.bytes.Load(),
		Writes:   int(c.writes.Load()),
	}
}
