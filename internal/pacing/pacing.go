// Package pacing holds a producer to a fixed frame rate by sleeping until
// absolute deadlines measured from a single origin.
package pacing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Policy decides what a producer does with slots it overran.
type Policy int

const (
	// PolicyExtend never skips a slot. A slow tick pushes every later frame
	// back and the run grows longer than frames x interval.
	PolicyExtend Policy = iota
	// PolicyDrop skips slots whose deadline already passed so the run ends
	// near origin + frames x interval, producing fewer frames.
	PolicyDrop
)

func (p Policy) String() string {
	switch p {
	case PolicyExtend:
		return "extend"
	case PolicyDrop:
		return "drop"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "extend" or "drop".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "extend":
		return PolicyExtend, nil
	case "drop":
		return PolicyDrop, nil
	default:
		return PolicyExtend, fmt.Errorf("unknown overrun policy %q", s)
	}
}

// ErrInvalidRate is returned for non-positive rates or intervals.
var ErrInvalidRate = errors.New("invalid frame rate")

// IntervalForRate converts frames per second to a frame interval.
func IntervalForRate(fps float64) (time.Duration, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, fps)
	}
	return time.Duration(float64(time.Second) / fps), nil
}

// Controller computes tick deadlines as origin + k*interval.
// It is used by a single producer goroutine and is not safe for concurrent use.
type Controller struct {
	interval time.Duration
	origin   time.Time
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now as the controller's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller for the given frame interval. The origin is
// set to the current time; call Start to reset it.
func New(interval time.Duration, opts ...Option) (*Controller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval %v", ErrInvalidRate, interval)
	}
	c := &Controller{interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.origin = c.now()
	return c, nil
}

// NewForRate creates a controller for fps frames per second.
func NewForRate(fps float64, opts ...Option) (*Controller, error) {
	interval, err := IntervalForRate(fps)
	if err != nil {
		return nil, err
	}
	return New(interval, opts...)
}

// Start pins tick 0 to origin.
func (c *Controller) Start(origin time.Time) {
	c.origin = origin
}

// Reset pins tick 0 to the current time.
func (c *Controller) Reset() {
	c.origin = c.now()
}

// Now reads the controller's clock.
func (c *Controller) Now() time.Time {
	return c.now()
}

// Origin returns the instant of tick 0.
func (c *Controller) Origin() time.Time {
	return c.origin
}

// Interval returns the fixed frame interval.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Deadline returns the scheduled instant of tick k.
func (c *Controller) Deadline(k uint64) time.Time {
	return c.origin.Add(time.Duration(k) * c.interval)
}

// Slot returns the index of the tick whose interval contains t.
// Instants before the origin map to slot 0.
func (c *Controller) Slot(t time.Time) uint64 {
	elapsed := t.Sub(c.origin)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}

// Wait blocks until the deadline of tick k. If the deadline already passed
// it returns immediately with how late the caller is; it never skips ticks.
func (c *Controller) Wait(ctx context.Context, k uint64) (time.Duration, error) {
	d := c.Deadline(k).Sub(c.now())
	if d <= 0 {
		return -d, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
