//go:build windows

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/kirides/go-d3d/d3d11"
	"github.com/kirides/go-d3d/outputduplication"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
)

// defaultDXGITimeout matches the one second bound desktop duplication
// recorders use when no tick timeout is given.
const defaultDXGITimeout = time.Second

// DXGISource captures through DXGI desktop duplication. Frames are copied
// out of the duplicated surface into a reused RGBA image.
type DXGISource struct {
	device    *d3d11.ID3D11Device
	deviceCtx *d3d11.ID3D11DeviceContext
	ddup      *outputduplication.OutputDuplicator
	img       *image.RGBA
	rect      image.Rectangle
	held      bool
	logger    logging.Logger
}

// NewDXGISource opens output opts.Display on the default adapter.
func NewDXGISource(opts Options) (Source, error) {
	display, err := DisplayBounds(opts.Display)
	if err != nil {
		return nil, err
	}
	// Duplicated surfaces are copied from the origin whatever the desktop layout.
	bounds := image.Rect(0, 0, display.Dx(), display.Dy())
	if opts.Width != 0 && opts.Width != bounds.Dx() || opts.Height != 0 && opts.Height != bounds.Dy() {
		return nil, fmt.Errorf("dxgi captures the full output %dx%d, got %dx%d",
			bounds.Dx(), bounds.Dy(), opts.Width, opts.Height)
	}

	device, deviceCtx, err := d3d11.NewD3D11Device()
	if err != nil {
		return nil, fmt.Errorf("create d3d11 device: %w", err)
	}

	ddup, err := outputduplication.NewIDXGIOutputDuplication(device, deviceCtx, uint(opts.Display))
	if err != nil {
		deviceCtx.Release()
		device.Release()
		return nil, fmt.Errorf("duplicate output %d: %w", opts.Display, err)
	}

	logger := logging.GetLogger("capture")
	logger.Info("DXGI source opened", "output", opts.Display, "region", display.String())

	return &DXGISource{
		device:    device,
		deviceCtx: deviceCtx,
		ddup:      ddup,
		img:       image.NewRGBA(bounds),
		rect:      display,
		logger:    logger,
	}, nil
}

// AcquireFrame implements Source.
func (s *DXGISource) AcquireFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error) {
	if s.held {
		return frame.Frame{}, ErrFrameHeld
	}
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if timeout <= 0 {
		timeout = defaultDXGITimeout
	}

	err := s.ddup.GetImage(s.img, uint(timeout.Milliseconds()))
	if errors.Is(err, outputduplication.ErrNoImageYet) {
		return frame.Frame{}, ErrCaptureTimeout
	}
	if err != nil {
		return frame.Frame{}, fmt.Errorf("acquire duplicated frame: %w", err)
	}

	s.held = true
	return rgbaFrame(s.img, time.Now()), nil
}

// ReleaseFrame implements Source. The duplicated frame stays acquired after
// GetImage until it is released here.
func (s *DXGISource) ReleaseFrame() error {
	if !s.held {
		return ErrNotHeld
	}
	s.ddup.ReleaseFrame()
	s.held = false
	return nil
}

// Bounds implements Source.
func (s *DXGISource) Bounds() image.Rectangle {
	return s.rect
}

// Close implements Source.
func (s *DXGISource) Close() error {
	s.ddup.Release()
	s.deviceCtx.Release()
	s.device.Release()
	return nil
}
