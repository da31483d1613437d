package convert

import (
	"errors"
	"fmt"

	"github.com/smazurov/screenrec/internal/frame"
)

// View is a device-side render target bound to one destination surface.
type View interface {
	Release() error
}

// Device is the graphics device used by the blit path. Implementations
// convert between surfaces of equal size in a single operation.
type Device interface {
	CreateSurface(width, height int, format frame.Format) (frame.SurfaceID, error)
	SurfaceDesc(id frame.SurfaceID) (width, height int, format frame.Format, err error)
	ReleaseSurface(id frame.SurfaceID) error

	// Upload copies packed host pixels into a surface.
	Upload(dst frame.SurfaceID, data []byte, stride int, bottomUp bool) error
	// Download copies a surface into a tightly packed host buffer.
	Download(src frame.SurfaceID, dst []byte) error

	CreateOutputView(dst frame.SurfaceID) (View, error)
	Blit(src frame.SurfaceID, dst View) error
}

// BlitOptions configures a Blit converter.
type BlitOptions struct {
	// Format is the destination layout. Defaults to NV12.
	Format frame.Format
	// Targets is the number of destination surfaces cycled through. Defaults to 2.
	Targets int
	// Buffers provides host buffers for read-back. When nil, converted
	// frames stay on the device and carry only a SurfaceID.
	Buffers BufferFunc
}

// Blit converts frames with one device blit per frame. Output views are
// created lazily, once per destination surface, and reused.
type Blit struct {
	device  Device
	width   int
	height  int
	format  frame.Format
	buffers BufferFunc

	targets []frame.SurfaceID
	next    int
	views   map[frame.SurfaceID]View
	staging frame.SurfaceID
}

// NewBlit creates a blit converter for width x height frames.
func NewBlit(device Device, width, height int, opts BlitOptions) (*Blit, error) {
	if device == nil {
		return nil, errors.New("blit converter requires a device")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid converter size %dx%d", width, height)
	}
	if opts.Format == frame.FormatUnknown {
		opts.Format = frame.FormatNV12
	}
	if opts.Targets < 1 {
		opts.Targets = 2
	}

	b := &Blit{
		device:  device,
		width:   width,
		height:  height,
		format:  opts.Format,
		buffers: opts.Buffers,
		views:   make(map[frame.SurfaceID]View),
	}
	for range opts.Targets {
		id, err := device.CreateSurface(width, height, opts.Format)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: create target surface: %w", ErrFatalDevice, err)
		}
		b.targets = append(b.targets, id)
	}
	return b, nil
}

// Convert implements Converter.
func (b *Blit) Convert(src frame.Frame) (frame.Frame, error) {
	if err := checkDimensions(src, b.width, b.height); err != nil {
		return frame.Frame{}, err
	}

	surface, err := b.source(src)
	if err != nil {
		return frame.Frame{}, err
	}

	dst := b.targets[b.next]
	b.next = (b.next + 1) % len(b.targets)

	view, err := b.view(dst)
	if err != nil {
		return frame.Frame{}, err
	}
	if err := b.device.Blit(surface, view); err != nil {
		return frame.Frame{}, fmt.Errorf("%w: blit: %w", ErrFatalDevice, err)
	}

	if b.buffers == nil {
		out := output(src, b.format, nil)
		out.Surface = dst
		return out, nil
	}

	buf, err := b.buffers()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("get output buffer: %w", err)
	}
	if err := b.device.Download(dst, buf); err != nil {
		return frame.Frame{}, fmt.Errorf("%w: read back: %w", ErrFatalDevice, err)
	}
	out := output(src, b.format, buf[:b.format.BufferSize(b.width, b.height)])
	out.Surface = dst
	return out, nil
}

// source returns the surface holding src, uploading host pixels into a
// reused staging surface when needed.
func (b *Blit) source(src frame.Frame) (frame.SurfaceID, error) {
	if src.OnDevice() {
		w, h, _, err := b.device.SurfaceDesc(src.Surface)
		if err != nil {
			return 0, fmt.Errorf("%w: describe source: %w", ErrFatalDevice, err)
		}
		if w != b.width || h != b.height {
			return 0, fmt.Errorf("%w: surface %dx%d, converter %dx%d",
				ErrDimensionMismatch, w, h, b.width, b.height)
		}
		return src.Surface, nil
	}

	if !src.Format.Packed() {
		return 0, fmt.Errorf("%w: source %v", ErrUnsupportedFormat, src.Format)
	}
	if b.staging == 0 {
		id, err := b.device.CreateSurface(b.width, b.height, src.Format)
		if err != nil {
			return 0, fmt.Errorf("%w: create staging surface: %w", ErrFatalDevice, err)
		}
		b.staging = id
	}
	if err := b.device.Upload(b.staging, src.Data, src.RowStride(), src.BottomUp); err != nil {
		return 0, fmt.Errorf("%w: upload: %w", ErrFatalDevice, err)
	}
	return b.staging, nil
}

func (b *Blit) view(dst frame.SurfaceID) (View, error) {
	if v, ok := b.views[dst]; ok {
		return v, nil
	}
	v, err := b.device.CreateOutputView(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: create output view: %w", ErrFatalDevice, err)
	}
	b.views[dst] = v
	return v, nil
}

// Views returns the number of output views created so far.
func (b *Blit) Views() int {
	return len(b.views)
}

// Format returns the destination format.
func (b *Blit) Format() frame.Format {
	return b.format
}

// Close releases every view and surface owned by the converter.
func (b *Blit) Close() error {
	var errs []error
	for id, v := range b.views {
		if err := v.Release(); err != nil {
			errs = append(errs, err)
		}
		delete(b.views, id)
	}
	for _, id := range b.targets {
		if err := b.device.ReleaseSurface(id); err != nil {
			errs = append(errs, err)
		}
	}
	b.targets = nil
	if b.staging != 0 {
		if err := b.device.ReleaseSurface(b.staging); err != nil {
			errs = append(errs, err)
		}
		b.staging = 0
	}
	return errors.Join(errs...)
}
