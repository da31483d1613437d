package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/screenrec/internal/frame"
)

// ErrUnsupportedFormat is returned for pixel formats ffmpeg is not fed with.
var ErrUnsupportedFormat = errors.New("unsupported input pixel format")

// DefaultBinary is the executable used when Params.Binary is empty.
const DefaultBinary = "ffmpeg"

// InputPixelFormat maps a frame format to the rawvideo pix_fmt ffmpeg reads
// and the filter, if any, needed to interpret the planes correctly.
func InputPixelFormat(f frame.Format) (pixFmt, filter string, err error) {
	switch f {
	case frame.FormatI420:
		return "yuv420p", "", nil
	case frame.FormatYV12:
		// Same layout as yuv420p with the chroma planes swapped.
		return "yuv420p", "shuffleplanes=0:2:1", nil
	case frame.FormatNV12:
		return "nv12", "", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// BuildArgs builds the ffmpeg argument vector for p, binary first.
func BuildArgs(p *Params) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", p.Width, p.Height)
	}
	if p.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", p.FPS)
	}
	if p.Encoder == "" {
		return nil, fmt.Errorf("encoder is required")
	}
	pixFmt, filter, err := InputPixelFormat(p.PixelFormat)
	if err != nil {
		return nil, err
	}
	if err := ValidateOptions(p.Options); err != nil {
		return nil, err
	}

	binary := p.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = "warning"
	}

	args := []string{binary, "-hide_banner", "-nostats", "-loglevel", "level+" + logLevel}
	if p.ProgressURL != "" {
		args = append(args, "-progress", p.ProgressURL)
	}

	// Input configuration
	args = append(args, inputOptionArgs(p.Options)...)
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", strconv.FormatFloat(p.FPS, 'f', -1, 64),
		"-i", "pipe:0",
	)

	var filters []string
	if filter != "" {
		filters = append(filters, filter)
	}
	if p.VideoFilters != "" {
		filters = append(filters, p.VideoFilters)
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	// Encoder
	args = append(args, "-c:v", p.Encoder)
	if p.Bitrate != "" {
		args = append(args, "-b:v", p.Bitrate)
	}
	if p.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.GOP > 0 {
		args = append(args, "-g", strconv.Itoa(p.GOP))
	}
	if p.BFrames >= 0 {
		args = append(args, "-bf", strconv.Itoa(p.BFrames))
	}
	args = append(args, outputOptionArgs(p.Options, p.Encoder)...)

	// Output configuration
	args = append(args, "-f", outputFormat(p), "pipe:1")
	return args, nil
}

// BuildCommand renders BuildArgs as a single command line for logging.
func BuildCommand(p *Params) (string, error) {
	args, err := BuildArgs(p)
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}

// EncodersListArgs returns the command listing available encoders.
func EncodersListArgs(binary string) []string {
	if binary == "" {
		binary = DefaultBinary
	}
	return []string{binary, "-hide_banner", "-encoders"}
}

func outputFormat(p *Params) string {
	if p.OutputFormat != "" {
		return p.OutputFormat
	}
	return StreamFormat(p.Encoder)
}

// StreamFormat is the elementary stream muxer for an encoder name.
func StreamFormat(encoder string) string {
	if strings.Contains(encoder, "265") || strings.Contains(encoder, "hevc") {
		return "hevc"
	}
	return "h264"
}

// isHardwareEncoder checks if the given codec name represents a hardware encoder
func isHardwareEncoder(codec string) bool {
	hardwareCodecs := []string{
		"nvenc", "amf", "vaapi", "qsv", "videotoolbox", "mf", "v4l2m2m",
	}

	for _, hwCodec := range hardwareCodecs {
		if strings.HasSuffix(codec, "_"+hwCodec) {
			return true
		}
	}
	return false
}
