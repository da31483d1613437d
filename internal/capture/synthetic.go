package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/frame"
)

// SyntheticOptions configures a SyntheticSource.
type SyntheticOptions struct {
	Width    int
	Height   int
	Format   frame.Format // packed layout, defaults to RGBA
	BottomUp bool

	// Latency is how long each grab takes. A latency beyond the acquire
	// timeout produces ErrCaptureTimeout.
	Latency time.Duration
	// MissEvery makes every n-th acquire time out.
	MissEvery int

	// Device, when set, makes the source deliver device surfaces the way a
	// desktop duplication API does.
	Device convert.Device
}

// bar colours of the test pattern, RGB
var bars = [][3]uint8{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
	{0, 0, 0},
}

// SyntheticSource produces scrolling colour bars. It needs no display and is
// used for dry runs, encoder checks and tests.
type SyntheticSource struct {
	opts     SyntheticOptions
	pool     *frame.Pool
	surface  frame.SurfaceID
	held     []byte
	holding  bool
	acquires int
	produced uint64
}

// NewSyntheticSource creates a test-pattern source.
func NewSyntheticSource(opts SyntheticOptions) (*SyntheticSource, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid synthetic size %dx%d", opts.Width, opts.Height)
	}
	if opts.Format == frame.FormatUnknown {
		opts.Format = frame.FormatRGBA
	}
	if !opts.Format.Packed() {
		return nil, fmt.Errorf("synthetic source cannot produce %v", opts.Format)
	}

	s := &SyntheticSource{
		opts: opts,
		pool: frame.NewPoolFor(2, opts.Format, opts.Width, opts.Height),
	}
	if opts.Device != nil {
		id, err := opts.Device.CreateSurface(opts.Width, opts.Height, opts.Format)
		if err != nil {
			return nil, fmt.Errorf("create capture surface: %w", err)
		}
		s.surface = id
	}
	return s, nil
}

// AcquireFrame implements Source.
func (s *SyntheticSource) AcquireFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error) {
	if s.holding {
		return frame.Frame{}, ErrFrameHeld
	}
	s.acquires++

	miss := s.opts.MissEvery > 0 && s.acquires%s.opts.MissEvery == 0
	wait := s.opts.Latency
	if miss || (timeout > 0 && wait > timeout) {
		wait = timeout
		miss = true
	}
	if wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return frame.Frame{}, ctx.Err()
		}
	}
	if miss {
		return frame.Frame{}, ErrCaptureTimeout
	}

	buf := s.pool.Get()
	s.paint(buf)

	f := frame.Frame{
		Width:     s.opts.Width,
		Height:    s.opts.Height,
		Format:    s.opts.Format,
		BottomUp:  s.opts.BottomUp,
		Timestamp: time.Now(),
	}
	if s.opts.Device != nil {
		if err := s.opts.Device.Upload(s.surface, buf, 0, s.opts.BottomUp); err != nil {
			s.pool.Put(buf)
			return frame.Frame{}, fmt.Errorf("%w: upload capture: %w", convert.ErrFatalDevice, err)
		}
		s.pool.Put(buf)
		f.Surface = s.surface
		f.BottomUp = false
	} else {
		s.held = buf
		f.Data = buf
	}

	s.holding = true
	s.produced++
	return f, nil
}

// paint draws bars shifted by one column per frame.
func (s *SyntheticSource) paint(buf []byte) {
	w, h := s.opts.Width, s.opts.Height
	bpp := s.opts.Format.BytesPerPixel()
	barWidth := max(w/len(bars), 1)
	shift := int(s.produced % uint64(w))

	row := make([]byte, w*bpp)
	for x := range w {
		c := bars[((x+shift)/barWidth)%len(bars)]
		p := x * bpp
		switch s.opts.Format {
		case frame.FormatRGBA:
			row[p], row[p+1], row[p+2], row[p+3] = c[0], c[1], c[2], 0xFF
		case frame.FormatBGRA:
			row[p], row[p+1], row[p+2], row[p+3] = c[2], c[1], c[0], 0xFF
		case frame.FormatBGR24:
			row[p], row[p+1], row[p+2] = c[2], c[1], c[0]
		}
	}
	for y := range h {
		copy(buf[y*len(row):(y+1)*len(row)], row)
	}
}

// ReleaseFrame implements Source.
func (s *SyntheticSource) ReleaseFrame() error {
	if !s.holding {
		return ErrNotHeld
	}
	if s.held != nil {
		s.pool.Put(s.held)
		s.held = nil
	}
	s.holding = false
	return nil
}

// Bounds implements Source.
func (s *SyntheticSource) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.opts.Width, s.opts.Height)
}

// Produced returns the number of frames handed out.
func (s *SyntheticSource) Produced() uint64 {
	return s.produced
}

// Close implements Source.
func (s *SyntheticSource) Close() error {
	if s.opts.Device != nil && s.surface != 0 {
		err := s.opts.Device.ReleaseSurface(s.surface)
		s.surface = 0
		return err
	}
	return nil
}
