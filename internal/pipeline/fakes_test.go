package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/sink"
)

var errBoom = errors.New("boom")

// fakeEncoder emits one packet per frame holding the sequence number.
type fakeEncoder struct {
	delay  time.Duration
	failAt int // Submit fails on this seq; negative never

	mu        sync.Mutex
	seqs      []uint64
	finalSeq  int // seq passed to Finalize, -1 for nil, -2 if not called
	finalized int
	shutdowns int
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{failAt: -1, finalSeq: -2}
}

func (e *fakeEncoder) NextInputSlot() ([]byte, error) {
	return make([]byte, frame.FormatI420.BufferSize(8, 4)), nil
}

func (e *fakeEncoder) Submit(f frame.Frame) ([][]byte, error) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failAt >= 0 && f.Seq == uint64(e.failAt) {
		return nil, errBoom
	}
	e.seqs = append(e.seqs, f.Seq)
	return [][]byte{{byte(f.Seq)}}, nil
}

func (e *fakeEncoder) Finalize(f *frame.Frame) ([][]byte, error) {
	if e.delay > 0 && f != nil {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalized++
	if f == nil {
		e.finalSeq = -1
		return nil, nil
	}
	e.finalSeq = int(f.Seq)
	e.seqs = append(e.seqs, f.Seq)
	return [][]byte{{byte(f.Seq)}}, nil
}

func (e *fakeEncoder) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	return nil
}

func (e *fakeEncoder) snapshot() (seqs []uint64, finalSeq, finalized, shutdowns int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.seqs...), e.finalSeq, e.finalized, e.shutdowns
}

// memorySink records every write.
type memorySink struct {
	failWrite bool

	mu     sync.Mutex
	writes [][]byte
	closed int
}

func (s *memorySink) WriteBytes(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errBoom
	}
	s.writes = append(s.writes, append([]byte(nil), b...))
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *memorySink) opener() SinkOpener {
	return func() (sink.Sink, error) { return s, nil }
}

// trackingSource wraps a source, counts Close calls and can fail an acquire.
type trackingSource struct {
	capture.Source
	failAfter int // acquire number that fails; 0 never

	mu       sync.Mutex
	acquires int
	closed   int
}

func (s *trackingSource) AcquireFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error) {
	s.mu.Lock()
	s.acquires++
	n := s.acquires
	s.mu.Unlock()
	if s.failAfter > 0 && n >= s.failAfter {
		return frame.Frame{}, errBoom
	}
	return s.Source.AcquireFrame(ctx, timeout)
}

func (s *trackingSource) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return s.Source.Close()
}

func (s *trackingSource) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
