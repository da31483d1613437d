// Package convert turns captured RGB frames into the planar YUV layouts
// encoders expect, either with integer BT.601 math on the CPU or by a single
// full-frame blit on a graphics device.
package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/screenrec/internal/frame"
)

var (
	// ErrDimensionMismatch is a configuration error: source and destination
	// sizes differ. The caller must not continue.
	ErrDimensionMismatch = errors.New("source and destination dimensions differ")
	// ErrUnsupportedFormat is returned for layouts a converter cannot read or write.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	// ErrFatalDevice wraps graphics device failures. The run must abort.
	ErrFatalDevice = errors.New("fatal device error")
)

// Converter transforms a captured frame into the encoder's input format.
type Converter interface {
	Convert(src frame.Frame) (frame.Frame, error)
	Close() error
}

// BufferFunc hands out the destination buffer for the next converted frame.
type BufferFunc func() ([]byte, error)

// Kind selects a conversion strategy.
type Kind string

// Conversion strategies.
const (
	KindCPU  Kind = "cpu"
	KindBlit Kind = "blit"
)

// ParseKind parses "cpu" or "blit".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindCPU:
		return KindCPU, nil
	case KindBlit:
		return KindBlit, nil
	default:
		return "", fmt.Errorf("unknown converter %q", s)
	}
}

func checkDimensions(src frame.Frame, width, height int) error {
	if src.Width != width || src.Height != height {
		return fmt.Errorf("%w: frame %dx%d, converter %dx%d",
			ErrDimensionMismatch, src.Width, src.Height, width, height)
	}
	return nil
}

// output copies the pipeline metadata of src onto a converted frame.
func output(src frame.Frame, format frame.Format, data []byte) frame.Frame {
	return frame.Frame{
		Seq:       src.Seq,
		Width:     src.Width,
		Height:    src.Height,
		Format:    format,
		Data:      data,
		Timestamp: src.Timestamp,
		Duration:  src.Duration,
		Last:      src.Last,
	}
}
