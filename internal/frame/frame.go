// Package frame defines the unit of exchange between the capture and encode
// stages and the pooled byte buffers that back it.
package frame

import (
	"fmt"
	"strings"
	"time"
)

// Format is a pixel layout.
type Format int

// Supported pixel layouts.
const (
	FormatUnknown Format = iota
	FormatRGBA           // packed, 4 bytes per pixel, R G B A
	FormatBGRA           // packed, 4 bytes per pixel, B G R A (DXGI, GDI 32bpp)
	FormatBGR24          // packed, 3 bytes per pixel, B G R (GDI 24bpp)
	FormatI420           // planar Y, Cb, Cr 4:2:0
	FormatYV12           // planar Y, Cr, Cb 4:2:0
	FormatNV12           // Y plane + interleaved CbCr 4:2:0
)

var formatNames = map[Format]string{
	FormatRGBA:  "rgba",
	FormatBGRA:  "bgra",
	FormatBGR24: "bgr24",
	FormatI420:  "i420",
	FormatYV12:  "yv12",
	FormatNV12:  "nv12",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat parses a format name such as "i420" or "nv12".
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown pixel format %q", s)
}

// Packed reports whether the format stores all components of a pixel together.
func (f Format) Packed() bool {
	return f == FormatRGBA || f == FormatBGRA || f == FormatBGR24
}

// BytesPerPixel returns the pixel size of packed formats, 0 otherwise.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatBGR24:
		return 3
	default:
		return 0
	}
}

// ChromaSize returns the dimensions of a 4:2:0 chroma plane.
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// PlaneSizes returns the byte size of each plane in storage order.
// Packed formats have a single plane.
func (f Format) PlaneSizes(width, height int) []int {
	if width <= 0 || height <= 0 {
		return nil
	}
	if bpp := f.BytesPerPixel(); bpp > 0 {
		return []int{width * height * bpp}
	}
	cw, ch := ChromaSize(width, height)
	switch f {
	case FormatI420, FormatYV12:
		return []int{width * height, cw * ch, cw * ch}
	case FormatNV12:
		return []int{width * height, 2 * cw * ch}
	default:
		return nil
	}
}

// BufferSize returns the number of bytes needed to hold one tightly packed
// frame of the given format.
func (f Format) BufferSize(width, height int) int {
	total := 0
	for _, n := range f.PlaneSizes(width, height) {
		total += n
	}
	return total
}

// SurfaceID identifies a device surface. Frames moving through the blit path
// carry a SurfaceID instead of pixel bytes.
type SurfaceID uint64

// Frame is one captured image moving through the pipeline.
type Frame struct {
	Seq       uint64
	Width     int
	Height    int
	Format    Format
	Stride    int  // bytes per row of packed Data, 0 means tightly packed
	BottomUp  bool // rows stored last-to-first (GDI DIB order)
	Data      []byte
	Surface   SurfaceID
	Timestamp time.Time
	Duration  time.Duration
	Last      bool
}

// RowStride returns the effective stride of Data.
func (f *Frame) RowStride() int {
	if f.Stride > 0 {
		return f.Stride
	}
	return f.Width * f.Format.BytesPerPixel()
}

// OnDevice reports whether the frame lives in a device surface.
func (f *Frame) OnDevice() bool {
	return f.Surface != 0 && f.Data == nil
}

// Planes splits planar Data into its planes in storage order.
// Packed formats have one tightly packed plane.
// Nil is returned when Data is too short for the format.
func (f *Frame) Planes() [][]byte {
	sizes := f.Format.PlaneSizes(f.Width, f.Height)
	if sizes == nil || len(f.Data) < f.Format.BufferSize(f.Width, f.Height) {
		return nil
	}
	planes := make([][]byte, len(sizes))
	off := 0
	for i, n := range sizes {
		planes[i] = f.Data[off : off+n : off+n]
		off += n
	}
	return planes
}
