package encoder

import (
	"fmt"
	"math"

	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
)

const y4mFrameTag = "FRAME\n"

// Y4M writes uncompressed YUV4MPEG2 with 4:2:0 chroma. Input in YV12 or NV12
// order is rearranged into the I420 plane order the format requires.
type Y4M struct {
	cfg       Config
	pool      *frame.Pool
	logger    logging.Logger
	header    []byte
	out       []byte
	wrote     bool
	frames    uint64
	finalized bool
}

// NewY4M creates a Y4M writer for cfg.
func NewY4M(cfg Config) (*Y4M, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	num, den := frameRate(cfg.FPS)
	// Chroma comes from the top-left pixel of each 2x2 block and the BT.601
	// math produces studio swing values.
	header := fmt.Sprintf("YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C420paldv XCOLORRANGE=LIMITED\n", cfg.Width, cfg.Height, num, den)
	return &Y4M{
		cfg:    cfg,
		pool:   cfg.pool(),
		logger: logging.GetLogger("encoder"),
		header: []byte(header),
		out:    make([]byte, 0, len(y4mFrameTag)+cfg.Format.BufferSize(cfg.Width, cfg.Height)),
	}, nil
}

// NextInputSlot returns a pooled frame buffer.
func (e *Y4M) NextInputSlot() ([]byte, error) {
	return e.pool.Get(), nil
}

// Submit returns the stream header on the first call followed by one frame.
func (e *Y4M) Submit(f frame.Frame) ([][]byte, error) {
	if e.finalized {
		return nil, ErrFinalized
	}
	return e.encode(&f)
}

// Finalize writes the last frame. The stream header is emitted even when
// no frame was ever submitted so the output is a valid empty stream.
func (e *Y4M) Finalize(f *frame.Frame) ([][]byte, error) {
	if e.finalized {
		return nil, ErrFinalized
	}
	e.finalized = true
	packets, err := e.encode(f)
	if err == nil {
		e.logger.Debug("Y4M stream finished", "frames", e.frames)
	}
	return packets, err
}

// Shutdown is a no-op; Y4M holds no external resources.
func (e *Y4M) Shutdown() error {
	return nil
}

func (e *Y4M) encode(f *frame.Frame) ([][]byte, error) {
	var packets [][]byte
	if f != nil {
		if _, err := checkFrame(e.cfg, *f); err != nil {
			return nil, err
		}
		e.out = append(e.out[:0], y4mFrameTag...)
		e.out = appendI420(e.out, f)
		e.pool.Put(f.Data)
		e.frames++
		packets = append(packets, e.out)
	}
	if !e.wrote && (f != nil || e.finalized) {
		e.wrote = true
		packets = append([][]byte{e.header}, packets...)
	}
	return packets, nil
}

// appendI420 appends one checked frame in Y, Cb, Cr plane order.
func appendI420(dst []byte, f *frame.Frame) []byte {
	planes := f.Planes()
	dst = append(dst, planes[0]...)
	switch f.Format {
	case frame.FormatI420:
		dst = append(dst, planes[1]...)
		dst = append(dst, planes[2]...)
	case frame.FormatYV12:
		dst = append(dst, planes[2]...)
		dst = append(dst, planes[1]...)
	case frame.FormatNV12:
		uv := planes[1]
		for i := 0; i < len(uv); i += 2 {
			dst = append(dst, uv[i])
		}
		for i := 1; i < len(uv); i += 2 {
			dst = append(dst, uv[i])
		}
	}
	return dst
}

// frameRate expresses fps as the F<num>:<den> ratio of the Y4M header.
// NTSC rates map to their exact /1001 form.
func frameRate(fps float64) (int, int) {
	if fps == math.Trunc(fps) {
		return int(fps), 1
	}
	if ntsc := math.Round(fps * 1.001); math.Abs(ntsc*1000/1001-fps) < 0.005 {
		return int(ntsc) * 1000, 1001
	}
	num, den := int(math.Round(fps*1000)), 1000
	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
