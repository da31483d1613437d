package convert

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smazurov/screenrec/internal/frame"
)

// ErrUnknownSurface is returned by MemoryDevice for released or foreign IDs.
var ErrUnknownSurface = errors.New("unknown surface")

type memorySurface struct {
	width  int
	height int
	format frame.Format
	data   []byte
}

type memoryView struct {
	dev      *MemoryDevice
	surface  frame.SurfaceID
	released bool
}

func (v *memoryView) Release() error {
	v.dev.mu.Lock()
	defer v.dev.mu.Unlock()
	if v.released {
		return nil
	}
	v.released = true
	v.dev.liveViews--
	return nil
}

// MemoryDevice is a Device backed by host memory. It runs the blit path on
// machines without a usable GPU and behaves like one for surface lifetime
// and view bookkeeping.
type MemoryDevice struct {
	mu        sync.Mutex
	surfaces  map[frame.SurfaceID]*memorySurface
	nextID    frame.SurfaceID
	liveViews int
	blits     int

	// FailBlit, when set, makes every Blit fail. Used to simulate a lost device.
	FailBlit error
}

// NewMemoryDevice creates an empty device.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{surfaces: make(map[frame.SurfaceID]*memorySurface)}
}

// CreateSurface implements Device.
func (d *MemoryDevice) CreateSurface(width, height int, format frame.Format) (frame.SurfaceID, error) {
	size := format.BufferSize(width, height)
	if size == 0 {
		return 0, fmt.Errorf("cannot allocate %v surface of %dx%d", format, width, height)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.surfaces[d.nextID] = &memorySurface{width: width, height: height, format: format, data: make([]byte, size)}
	return d.nextID, nil
}

func (d *MemoryDevice) lookup(id frame.SurfaceID) (*memorySurface, error) {
	s, ok := d.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSurface, id)
	}
	return s, nil
}

// SurfaceDesc implements Device.
func (d *MemoryDevice) SurfaceDesc(id frame.SurfaceID) (int, int, frame.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.lookup(id)
	if err != nil {
		return 0, 0, frame.FormatUnknown, err
	}
	return s.width, s.height, s.format, nil
}

// ReleaseSurface implements Device.
func (d *MemoryDevice) ReleaseSurface(id frame.SurfaceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookup(id); err != nil {
		return err
	}
	delete(d.surfaces, id)
	return nil
}

// Upload implements Device. Rows are stored top-down and tightly packed.
func (d *MemoryDevice) Upload(dst frame.SurfaceID, data []byte, stride int, bottomUp bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.lookup(dst)
	if err != nil {
		return err
	}
	rowLen := s.width * s.format.BytesPerPixel()
	if rowLen == 0 {
		return fmt.Errorf("%w: upload into %v surface", ErrUnsupportedFormat, s.format)
	}
	if stride <= 0 {
		stride = rowLen
	}
	if len(data) < stride*(s.height-1)+rowLen {
		return fmt.Errorf("upload of %d bytes too short for %dx%d", len(data), s.width, s.height)
	}
	for y := 0; y < s.height; y++ {
		row := y
		if bottomUp {
			row = s.height - 1 - y
		}
		copy(s.data[y*rowLen:(y+1)*rowLen], data[row*stride:row*stride+rowLen])
	}
	return nil
}

// Download implements Device.
func (d *MemoryDevice) Download(src frame.SurfaceID, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.lookup(src)
	if err != nil {
		return err
	}
	if len(dst) < len(s.data) {
		return fmt.Errorf("download buffer holds %d bytes, need %d", len(dst), len(s.data))
	}
	copy(dst, s.data)
	return nil
}

// CreateOutputView implements Device.
func (d *MemoryDevice) CreateOutputView(dst frame.SurfaceID) (View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.lookup(dst)
	if err != nil {
		return nil, err
	}
	if s.format.Packed() {
		return nil, fmt.Errorf("%w: output view on %v surface", ErrUnsupportedFormat, s.format)
	}
	d.liveViews++
	return &memoryView{dev: d, surface: dst}, nil
}

// Blit implements Device.
func (d *MemoryDevice) Blit(src frame.SurfaceID, dst View) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailBlit != nil {
		return d.FailBlit
	}

	v, ok := dst.(*memoryView)
	if !ok || v.dev != d || v.released {
		return errors.New("view does not belong to this device")
	}
	in, err := d.lookup(src)
	if err != nil {
		return err
	}
	out, err := d.lookup(v.surface)
	if err != nil {
		return err
	}
	if in.width != out.width || in.height != out.height {
		return fmt.Errorf("%w: blit %dx%d into %dx%d",
			ErrDimensionMismatch, in.width, in.height, out.width, out.height)
	}

	if err := packedToPlanar(out.data, out.format, in.data, in.format, in.width, in.height, 0, false); err != nil {
		return err
	}
	d.blits++
	return nil
}

// LiveViews returns the number of unreleased output views.
func (d *MemoryDevice) LiveViews() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveViews
}

// LiveSurfaces returns the number of allocated surfaces.
func (d *MemoryDevice) LiveSurfaces() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.surfaces)
}

// Blits returns the number of successful blits.
func (d *MemoryDevice) Blits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blits
}
