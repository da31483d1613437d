package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
)

// Display describes one active monitor.
type Display struct {
	Index  int             `json:"index" doc:"Display index"`
	Bounds image.Rectangle `json:"-"`
	X      int             `json:"x" doc:"Left edge in desktop coordinates"`
	Y      int             `json:"y" doc:"Top edge in desktop coordinates"`
	Width  int             `json:"width" doc:"Width in pixels"`
	Height int             `json:"height" doc:"Height in pixels"`
}

// ListDisplays returns the active displays.
func ListDisplays() []Display {
	n := screenshot.NumActiveDisplays()
	displays := make([]Display, 0, n)
	for i := range n {
		b := screenshot.GetDisplayBounds(i)
		displays = append(displays, Display{
			Index:  i,
			Bounds: b,
			X:      b.Min.X,
			Y:      b.Min.Y,
			Width:  b.Dx(),
			Height: b.Dy(),
		})
	}
	return displays
}

// DisplayBounds returns the bounds of display index.
func DisplayBounds(index int) (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays")
	}
	if index < 0 || index >= n {
		return image.Rectangle{}, fmt.Errorf("display %d out of range, %d active", index, n)
	}
	return screenshot.GetDisplayBounds(index), nil
}

type grabResult struct {
	img *image.RGBA
	at  time.Time
	err error
}

// ScreenSource captures a display region with the platform screenshot API
// (X11/XShm, CoreGraphics, GDI).
//
// A grab runs in its own goroutine so AcquireFrame can honor its timeout.
// A grab that outlives the timeout is kept and handed out by the next call
// instead of starting a second one.
type ScreenSource struct {
	rect    image.Rectangle
	pending chan grabResult
	held    bool
	grab    func(image.Rectangle) (*image.RGBA, error)
	logger  logging.Logger
}

// NewScreenSource opens display opts.Display.
func NewScreenSource(opts Options) (*ScreenSource, error) {
	bounds, err := DisplayBounds(opts.Display)
	if err != nil {
		return nil, err
	}
	rect, err := region(bounds, opts.Width, opts.Height)
	if err != nil {
		return nil, err
	}

	logger := logging.GetLogger("capture")
	logger.Info("Screen source opened", "display", opts.Display, "region", rect.String())
	return &ScreenSource{rect: rect, grab: screenshot.CaptureRect, logger: logger}, nil
}

// AcquireFrame implements Source.
func (s *ScreenSource) AcquireFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error) {
	if s.held {
		return frame.Frame{}, ErrFrameHeld
	}
	if s.pending == nil {
		s.pending = make(chan grabResult, 1)
		go func(out chan<- grabResult) {
			img, err := s.grab(s.rect)
			out <- grabResult{img: img, at: time.Now(), err: err}
		}(s.pending)
	}

	expired, stop := timeoutChan(timeout)
	defer stop()

	select {
	case res := <-s.pending:
		s.pending = nil
		if res.err != nil {
			return frame.Frame{}, fmt.Errorf("capture display region: %w", res.err)
		}
		s.held = true
		return rgbaFrame(res.img, res.at), nil
	case <-expired:
		return frame.Frame{}, ErrCaptureTimeout
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

// ReleaseFrame implements Source. The image is owned by the garbage collector
// so release only clears the held flag.
func (s *ScreenSource) ReleaseFrame() error {
	if !s.held {
		return ErrNotHeld
	}
	s.held = false
	return nil
}

// Bounds implements Source.
func (s *ScreenSource) Bounds() image.Rectangle {
	return s.rect
}

// Close implements Source.
func (s *ScreenSource) Close() error {
	s.logger.Debug("Screen source closed")
	return nil
}
