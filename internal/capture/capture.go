// Package capture provides the screen sources the recorder pulls frames from.
//
// A Source hands out one frame per AcquireFrame call. Each successful
// acquire must be paired with exactly one ReleaseFrame before the next
// acquire; the frame's pixel memory belongs to the source until then.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/smazurov/screenrec/internal/frame"
)

var (
	// ErrCaptureTimeout means no new frame arrived within the acquire bound.
	// It is transient: the caller skips the tick and tries again.
	ErrCaptureTimeout = errors.New("capture timeout")
	// ErrNotHeld is returned by ReleaseFrame without a matching acquire.
	ErrNotHeld = errors.New("no frame held")
	// ErrFrameHeld is returned by AcquireFrame while a frame is still held.
	ErrFrameHeld = errors.New("previous frame not released")
	// ErrUnsupported is returned when a source is not available on this platform.
	ErrUnsupported = errors.New("capture source not supported on this platform")
)

// Source is a screen capture backend.
type Source interface {
	// AcquireFrame waits up to timeout for the next frame.
	AcquireFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error)
	// ReleaseFrame returns the last acquired frame to the source.
	ReleaseFrame() error
	// Bounds returns the captured region in desktop coordinates.
	Bounds() image.Rectangle
	Close() error
}

// Kind names a capture backend.
type Kind string

// Capture backends.
const (
	KindScreen    Kind = "screen"
	KindDXGI      Kind = "dxgi"
	KindSynthetic Kind = "synthetic"
)

// ParseKind parses a backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindScreen:
		return KindScreen, nil
	case KindDXGI, KindSynthetic:
		return k, nil
	default:
		return "", fmt.Errorf("unknown capture source %q", s)
	}
}

// Options configures a source.
type Options struct {
	Kind    Kind
	Display int
	// Width and Height select a region anchored at the display origin.
	// Zero means the full display.
	Width  int
	Height int
}

// region resolves the capture rectangle inside display bounds.
func region(bounds image.Rectangle, width, height int) (image.Rectangle, error) {
	if width == 0 {
		width = bounds.Dx()
	}
	if height == 0 {
		height = bounds.Dy()
	}
	if width < 0 || height < 0 || width > bounds.Dx() || height > bounds.Dy() {
		return image.Rectangle{}, fmt.Errorf("region %dx%d does not fit display %dx%d",
			width, height, bounds.Dx(), bounds.Dy())
	}
	return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+width, bounds.Min.Y+height), nil
}

// timeoutChan returns a channel that fires after d, or never when d <= 0.
func timeoutChan(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

// rgbaFrame wraps an RGBA image without copying.
func rgbaFrame(img *image.RGBA, at time.Time) frame.Frame {
	return frame.Frame{
		Width:     img.Rect.Dx(),
		Height:    img.Rect.Dy(),
		Format:    frame.FormatRGBA,
		Stride:    img.Stride,
		Data:      img.Pix,
		Timestamp: at,
	}
}
