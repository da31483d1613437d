// Package encoder turns converted frames into an encoded byte stream.
//
// An Encoder is driven by a single goroutine. Packets returned by Submit and
// Finalize are only valid until the next call on the same encoder, so callers
// write them out before submitting again.
package encoder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/screenrec/internal/ffmpeg"
	"github.com/smazurov/screenrec/internal/frame"
)

var (
	// ErrEncoder wraps every failure reported by an encoder backend.
	ErrEncoder = errors.New("encoder error")
	// ErrFinalized is returned when frames are submitted after Finalize.
	ErrFinalized = errors.New("encoder already finalized")
)

// Encoder consumes frames in sequence order.
type Encoder interface {
	// NextInputSlot returns a buffer sized for one input frame. Converters
	// write into it so the encoder can take the bytes without copying.
	NextInputSlot() ([]byte, error)
	// Submit encodes one frame and returns the packets ready so far.
	Submit(f frame.Frame) ([][]byte, error)
	// Finalize encodes the last frame, if any, and flushes everything
	// still buffered. No frames may follow.
	Finalize(f *frame.Frame) ([][]byte, error)
	// Shutdown releases the encoder. It is safe to call more than once.
	Shutdown() error
}

// Kind selects an encoder backend.
type Kind string

// Encoder backends.
const (
	KindFFmpeg Kind = "ffmpeg"
	KindY4M    Kind = "y4m"
)

// ParseKind parses "ffmpeg" or "y4m".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindFFmpeg:
		return KindFFmpeg, nil
	case KindY4M:
		return KindY4M, nil
	default:
		return "", fmt.Errorf("unknown encoder %q", s)
	}
}

// Config describes the frames an encoder receives and how to encode them.
type Config struct {
	Width  int
	Height int
	FPS    float64
	Format frame.Format

	// Slots is how many idle input buffers are kept for reuse.
	Slots int

	// ffmpeg backend
	Binary  string
	Codec   string
	Bitrate string
	Preset  string
	GOP     int
	Options []ffmpeg.OptionType

	// StopTimeout bounds each shutdown step of the ffmpeg process: exit
	// after end of input or SIGINT, then exit after kill. 0 keeps the
	// process defaults.
	StopTimeout time.Duration

	// ProgressSocket, when set, is a unix socket path ffmpeg reports its
	// progress to. Figures are published under Recording.
	ProgressSocket string
	Recording      string
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrEncoder, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: invalid frame rate %v", ErrEncoder, c.FPS)
	}
	switch c.Format {
	case frame.FormatI420, frame.FormatYV12, frame.FormatNV12:
		return nil
	default:
		return fmt.Errorf("%w: unsupported input format %s", ErrEncoder, c.Format)
	}
}

func (c Config) pool() *frame.Pool {
	slots := c.Slots
	if slots <= 0 {
		slots = 6
	}
	return frame.NewPoolFor(slots, c.Format, c.Width, c.Height)
}

// New creates an encoder of the given kind.
func New(kind Kind, cfg Config) (Encoder, error) {
	switch kind {
	case KindFFmpeg:
		return NewFFmpeg(cfg)
	case KindY4M:
		return NewY4M(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrEncoder, kind)
	}
}

// checkFrame verifies f matches what the encoder was configured for and
// returns its payload trimmed to one frame.
func checkFrame(cfg Config, f frame.Frame) ([]byte, error) {
	if f.OnDevice() {
		return nil, fmt.Errorf("%w: frame %d is a device surface, read-back required", ErrEncoder, f.Seq)
	}
	if f.Width != cfg.Width || f.Height != cfg.Height || f.Format != cfg.Format {
		return nil, fmt.Errorf("%w: frame %d is %dx%d %s, encoder expects %dx%d %s", ErrEncoder,
			f.Seq, f.Width, f.Height, f.Format, cfg.Width, cfg.Height, cfg.Format)
	}
	size := cfg.Format.BufferSize(cfg.Width, cfg.Height)
	if len(f.Data) < size {
		return nil, fmt.Errorf("%w: frame %d has %d bytes, want %d", ErrEncoder, f.Seq, len(f.Data), size)
	}
	return f.Data[:size], nil
}
