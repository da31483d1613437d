// Package channel provides a capacity-bounded FIFO hand-off between two
// goroutines with close and watchdog semantics that Go channels lack.
package channel

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("channel closed")
	// ErrEndOfStream is returned by Pop once the channel is closed and drained.
	ErrEndOfStream = errors.New("end of stream")
	// ErrStall is returned by the timed variants when the peer made no
	// progress within the watchdog timeout.
	ErrStall = errors.New("channel stalled")
)

// Bounded is a blocking FIFO with a fixed capacity.
//
// Push blocks while the queue is full, Pop blocks while it is empty. After
// Close, pending items can still be popped; Push fails with ErrClosed and Pop
// on an empty queue returns ErrEndOfStream.
//
// All fields are protected by mu.
type Bounded[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf   []T // ring buffer, len(buf) == capacity
	head  int
	count int
	peak  int

	closed bool
}

// New creates a channel holding at most capacity items.
func New[T any](capacity int) (*Bounded[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("invalid channel capacity %d", capacity)
	}
	c := &Bounded[T]{buf: make([]T, capacity)}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c, nil
}

// Push appends item, blocking while the channel is full.
func (c *Bounded[T]) Push(item T) error {
	return c.push(item, 0)
}

// PushTimeout is Push with a watchdog. A timeout <= 0 waits forever.
func (c *Bounded[T]) PushTimeout(item T, timeout time.Duration) error {
	return c.push(item, timeout)
}

// Pop removes the head item, blocking while the channel is empty.
func (c *Bounded[T]) Pop() (T, error) {
	return c.pop(0)
}

// PopTimeout is Pop with a watchdog. A timeout <= 0 waits forever.
func (c *Bounded[T]) PopTimeout(timeout time.Duration) (T, error) {
	return c.pop(timeout)
}

// TryPush appends item without blocking. It reports false if the channel is full.
func (c *Bounded[T]) TryPush(item T) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	if c.count == len(c.buf) {
		return false, nil
	}
	c.enqueue(item)
	return true, nil
}

func (c *Bounded[T]) push(item T, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, stop := c.watchdog(c.notFull, timeout)
	defer stop()

	for c.count == len(c.buf) && !c.closed {
		if expired(deadline) {
			return ErrStall
		}
		c.notFull.Wait()
	}
	if c.closed {
		return ErrClosed
	}

	c.enqueue(item)
	return nil
}

func (c *Bounded[T]) pop(timeout time.Duration) (T, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, stop := c.watchdog(c.notEmpty, timeout)
	defer stop()

	for c.count == 0 && !c.closed {
		if expired(deadline) {
			return zero, ErrStall
		}
		c.notEmpty.Wait()
	}
	if c.count == 0 {
		return zero, ErrEndOfStream
	}

	item := c.buf[c.head]
	c.buf[c.head] = zero
	c.head = (c.head + 1) % len(c.buf)
	c.count--
	c.notFull.Signal()
	return item, nil
}

// enqueue must be called with mu held and room available.
func (c *Bounded[T]) enqueue(item T) {
	tail := (c.head + c.count) % len(c.buf)
	c.buf[tail] = item
	c.count++
	if c.count > c.peak {
		c.peak = c.count
	}
	c.notEmpty.Signal()
}

// watchdog arms a timer that wakes waiters on cond once timeout elapses.
// Must be called with mu held.
func (c *Bounded[T]) watchdog(cond *sync.Cond, timeout time.Duration) (time.Time, func()) {
	if timeout <= 0 {
		return time.Time{}, func() {}
	}
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		cond.Broadcast()
		c.mu.Unlock()
	})
	return deadline, func() { timer.Stop() }
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

// Close marks the channel closed and wakes every waiter. Safe to call more than once.
func (c *Bounded[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (c *Bounded[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len returns the number of pending items. The value is advisory.
func (c *Bounded[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cap returns the capacity.
func (c *Bounded[T]) Cap() int {
	return len(c.buf)
}

// Peak returns the highest number of items ever pending at once.
func (c *Bounded[T]) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}
