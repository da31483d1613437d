// Package sink is the append-only destination of the encoded stream.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("sink closed")

// Stdout is the output path that selects standard output.
const Stdout = "-"

const bufferSize = 1 << 20

// Sink receives encoded packets in order.
type Sink interface {
	WriteBytes(b []byte) error
	Close() error
}

// File writes packets to a file through a buffered writer.
type File struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// Create truncates or creates the file at path. Missing parent directories
// are created.
func Create(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &File{path: path, file: f, w: bufio.NewWriterSize(f, bufferSize)}, nil
}

// Open returns a sink for path: stdout for Stdout, a file otherwise.
func Open(path string, stdout io.Writer) (Sink, error) {
	if path == Stdout {
		return NewWriter(stdout), nil
	}
	return Create(path)
}

// WriteBytes appends b. Empty packets are ignored.
func (s *File) WriteBytes(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Close flushes buffered data, syncs and closes the file. It is idempotent.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.w.Flush(), s.file.Sync(), s.file.Close())
}

// Writer buffers packets into an io.Writer it does not own, such as stdout.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

// NewWriter wraps w as a Sink. Close flushes but leaves w open.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, bufferSize)}
}

// WriteBytes appends b.
func (s *Writer) WriteBytes(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close flushes buffered packets. It is idempotent.
func (s *Writer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Flush()
}
