package convert

import (
	"fmt"

	"github.com/smazurov/screenrec/internal/frame"
)

// clamp limits v to a byte.
func clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

// Luma returns the BT.601 studio-swing Y value of an RGB pixel.
func Luma(r, g, b uint8) uint8 {
	return clamp(((66*int(r) + 129*int(g) + 25*int(b) + 128) >> 8) + 16)
}

// Chroma returns the BT.601 Cb and Cr values of an RGB pixel.
func Chroma(r, g, b uint8) (cb, cr uint8) {
	R, G, B := int(r), int(g), int(b)
	cb = clamp(((-38*R - 74*G + 112*B + 128) >> 8) + 128)
	cr = clamp(((112*R - 94*G - 18*B + 128) >> 8) + 128)
	return cb, cr
}

// RGBToYCbCr converts one pixel.
func RGBToYCbCr(r, g, b uint8) (y, cb, cr uint8) {
	cb, cr = Chroma(r, g, b)
	return Luma(r, g, b), cb, cr
}

// channelOffsets returns the byte offsets of R, G and B in a packed pixel.
func channelOffsets(f frame.Format) (r, g, b int, ok bool) {
	switch f {
	case frame.FormatRGBA:
		return 0, 1, 2, true
	case frame.FormatBGRA, frame.FormatBGR24:
		return 2, 1, 0, true
	default:
		return 0, 0, 0, false
	}
}

// planeLayout returns the offsets of the Cb and Cr samples for chroma index i
// within dst, and the step between consecutive samples.
func planeLayout(f frame.Format, width, height int) (cbBase, crBase, step int, ok bool) {
	ySize := width * height
	cw, ch := frame.ChromaSize(width, height)
	cSize := cw * ch
	switch f {
	case frame.FormatI420:
		return ySize, ySize + cSize, 1, true
	case frame.FormatYV12:
		return ySize + cSize, ySize, 1, true
	case frame.FormatNV12:
		return ySize, ySize + 1, 2, true
	default:
		return 0, 0, 0, false
	}
}

// packedToPlanar converts packed RGB src into planar YUV 4:2:0 dst.
// Chroma is taken from the pixel on every even row and even column.
func packedToPlanar(dst []byte, dstFormat frame.Format, src []byte, srcFormat frame.Format,
	width, height, stride int, bottomUp bool,
) error {
	ro, gro, bo, ok := channelOffsets(srcFormat)
	if !ok {
		return fmt.Errorf("%w: source %v", ErrUnsupportedFormat, srcFormat)
	}
	cbBase, crBase, step, ok := planeLayout(dstFormat, width, height)
	if !ok {
		return fmt.Errorf("%w: destination %v", ErrUnsupportedFormat, dstFormat)
	}

	bpp := srcFormat.BytesPerPixel()
	if stride <= 0 {
		stride = width * bpp
	}
	if stride < width*bpp {
		return fmt.Errorf("stride %d shorter than row of %d pixels", stride, width)
	}
	if need := stride*(height-1) + width*bpp; len(src) < need {
		return fmt.Errorf("source buffer holds %d bytes, need %d", len(src), need)
	}
	if need := dstFormat.BufferSize(width, height); len(dst) < need {
		return fmt.Errorf("destination buffer holds %d bytes, need %d", len(dst), need)
	}

	cw, _ := frame.ChromaSize(width, height)
	for y := 0; y < height; y++ {
		row := y
		if bottomUp {
			row = height - 1 - y
		}
		line := src[row*stride : row*stride+width*bpp]
		luma := dst[y*width : (y+1)*width]
		sampleRow := y%2 == 0
		ci := (y / 2) * cw

		for x := 0; x < width; x++ {
			p := x * bpp
			r, g, b := line[p+ro], line[p+gro], line[p+bo]
			luma[x] = Luma(r, g, b)

			if sampleRow && x%2 == 0 {
				cb, cr := Chroma(r, g, b)
				i := (ci + x/2) * step
				dst[cbBase+i] = cb
				dst[crBase+i] = cr
			}
		}
	}
	return nil
}

// CPU converts packed RGB frames to planar YUV with integer math.
type CPU struct {
	width   int
	height  int
	format  frame.Format
	buffers BufferFunc
}

// NewCPU creates a converter for width x height frames producing dst.
// If buffers is nil every frame gets a freshly allocated buffer.
func NewCPU(width, height int, dst frame.Format, buffers BufferFunc) (*CPU, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid converter size %dx%d", width, height)
	}
	if _, _, _, ok := planeLayout(dst, width, height); !ok {
		return nil, fmt.Errorf("%w: destination %v", ErrUnsupportedFormat, dst)
	}
	if buffers == nil {
		size := dst.BufferSize(width, height)
		buffers = func() ([]byte, error) { return make([]byte, size), nil }
	}
	return &CPU{width: width, height: height, format: dst, buffers: buffers}, nil
}

// Convert implements Converter.
func (c *CPU) Convert(src frame.Frame) (frame.Frame, error) {
	if err := checkDimensions(src, c.width, c.height); err != nil {
		return frame.Frame{}, err
	}
	if src.OnDevice() {
		return frame.Frame{}, fmt.Errorf("%w: device surface given to cpu converter", ErrUnsupportedFormat)
	}

	buf, err := c.buffers()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("get output buffer: %w", err)
	}
	if err := packedToPlanar(buf, c.format, src.Data, src.Format,
		c.width, c.height, src.RowStride(), src.BottomUp); err != nil {
		return frame.Frame{}, err
	}
	return output(src, c.format, buf[:c.format.BufferSize(c.width, c.height)]), nil
}

// Format returns the destination format.
func (c *CPU) Format() frame.Format {
	return c.format
}

// Close implements Converter.
func (c *CPU) Close() error {
	return nil
}
