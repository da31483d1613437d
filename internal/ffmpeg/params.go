package ffmpeg

import "github.com/smazurov/screenrec/internal/frame"

// Params represents all parameters needed to generate an encode command that
// reads raw frames on stdin and writes an elementary stream to stdout.
type Params struct {
	// Binary is the ffmpeg executable ("ffmpeg" when empty).
	Binary string
	// LogLevel is passed to -loglevel with the level+ prefix so stderr lines
	// can be parsed by ParseLogLevel ("warning" when empty).
	LogLevel string
	// ProgressURL, when set, is passed to -progress (e.g. unix:///tmp/p.sock).
	ProgressURL string

	// Input Configuration
	Width       int
	Height      int
	FPS         float64
	PixelFormat frame.Format // i420, yv12 or nv12

	// Encoder Configuration
	Encoder string // libx264, h264_nvenc, etc.

	// Rate Control (only set what's needed)
	Bitrate string // 5M, 2500k
	CRF     int    // 0-51 (0 = not set)

	// Encoder Options
	Preset  string // ultrafast, medium, p4
	GOP     int    // Keyframe interval (0 = not set)
	BFrames int    // B-frame count (-1 = not set, 0 = no B-frames)

	VideoFilters string // appended after any filter the input format needs

	// Output
	OutputFormat string // h264, hevc; derived from Encoder when empty

	// Behavior Options
	Options []OptionType
}
