package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/encoder"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/ffmpeg"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/pacing"
	"github.com/smazurov/screenrec/internal/sink"
)

// Settings is everything needed to assemble a recording from its parts.
type Settings struct {
	// Capture
	Source  capture.Kind
	Display int
	Width   int // 0 = display width
	Height  int // 0 = display height

	// Timing
	FPS            float64
	Duration       time.Duration
	Frames         uint64 // overrides Duration when set
	Policy         pacing.Policy
	CaptureTimeout time.Duration
	StallTimeout   time.Duration
	Capacity       int

	// Conversion
	Converter   convert.Kind
	PixelFormat frame.Format

	// Encoding
	Encoder        encoder.Kind
	FFmpegPath     string
	Codec          string
	Bitrate        string
	Preset         string
	GOP            int
	FFmpegOptions  []ffmpeg.OptionType
	ProgressSocket string
	StopTimeout    time.Duration

	Output string
	// Stdout receives the stream when Output is sink.Stdout. Nil means os.Stdout.
	Stdout io.Writer
}

// TotalFrames resolves the frame count from Frames or FPS x Duration.
func (s Settings) TotalFrames() uint64 {
	if s.Frames > 0 {
		return s.Frames
	}
	if s.FPS <= 0 || s.Duration <= 0 {
		return 0
	}
	n := uint64(s.FPS*s.Duration.Seconds() + 0.5)
	return max(n, 1)
}

// Open assembles a driver from s: capture source, converter, encoder and a
// file sink at s.Output. Everything opened is released again on error.
func Open(s Settings, bus *events.Bus) (*Driver, error) {
	frames := s.TotalFrames()
	if frames == 0 {
		return nil, fmt.Errorf("%w: need a frame count or a positive fps and duration", ErrConfig)
	}
	if s.Output == "" {
		return nil, fmt.Errorf("%w: output path is required", ErrConfig)
	}
	if s.Encoder == "" {
		s.Encoder = encoder.KindFFmpeg
	}
	pixFmt := s.PixelFormat
	if pixFmt == frame.FormatUnknown {
		pixFmt = frame.FormatI420
	}

	width, height := s.Width, s.Height
	if s.Encoder != encoder.KindY4M {
		// 4:2:0 codecs reject odd dimensions.
		width, height = width&^1, height&^1
	}
	src, err := capture.Open(capture.Options{
		Kind:    s.Source,
		Display: s.Display,
		Width:   width,
		Height:  height,
	})
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	bounds := src.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	if s.Encoder != encoder.KindY4M && (width%2 != 0 || height%2 != 0) {
		_ = src.Close()
		return nil, fmt.Errorf("%w: %dx%d capture cannot be encoded as 4:2:0, set an even width and height",
			ErrConfig, width, height)
	}

	enc, err := encoder.New(s.Encoder, encoder.Config{
		Width:          width,
		Height:         height,
		FPS:            s.FPS,
		Format:         pixFmt,
		Slots:          max(s.Capacity, DefaultCapacity) + 2,
		Binary:         s.FFmpegPath,
		Codec:          s.Codec,
		Bitrate:        s.Bitrate,
		Preset:         s.Preset,
		GOP:            s.GOP,
		Options:        s.FFmpegOptions,
		ProgressSocket: s.ProgressSocket,
		StopTimeout:    s.StopTimeout,
		Recording:      s.Output,
	})
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	conv, err := newConverter(s.Converter, width, height, pixFmt, enc.NextInputSlot)
	if err != nil {
		_ = enc.Shutdown()
		_ = src.Close()
		return nil, err
	}

	encoderName := string(s.Encoder)
	if s.Encoder == encoder.KindFFmpeg && s.Codec != "" {
		encoderName += "/" + s.Codec
	}

	d, err := New(Config{
		FPS:            s.FPS,
		Frames:         frames,
		Capacity:       s.Capacity,
		Policy:         s.Policy,
		CaptureTimeout: s.CaptureTimeout,
		StallTimeout:   s.StallTimeout,
		Output:         s.Output,
		EncoderName:    encoderName,
		Width:          width,
		Height:         height,
	}, Options{
		Source:    src,
		Converter: conv,
		Encoder:   enc,
		OpenSink: func() (sink.Sink, error) {
			stdout := s.Stdout
			if stdout == nil {
				stdout = os.Stdout
			}
			return sink.Open(s.Output, stdout)
		},
		EventBus: bus,
	})
	if err != nil {
		_ = conv.Close()
		_ = enc.Shutdown()
		_ = src.Close()
		return nil, err
	}
	return d, nil
}

// newConverter writes converted frames straight into the encoder's input
// slots. The blit path runs on the in-memory device and reads back into
// those slots, since the encoders only take host frames.
func newConverter(kind convert.Kind, width, height int, format frame.Format, slots convert.BufferFunc) (convert.Converter, error) {
	switch kind {
	case convert.KindCPU, "":
		return convert.NewCPU(width, height, format, slots)
	case convert.KindBlit:
		return convert.NewBlit(convert.NewMemoryDevice(), width, height, convert.BlitOptions{
			Format:  format,
			Buffers: slots,
		})
	default:
		return nil, fmt.Errorf("%w: unknown converter %q", ErrConfig, kind)
	}
}
