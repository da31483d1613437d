package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// EncoderType represents the type of encoder (video, audio, subtitle)
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder is one line of `ffmpeg -encoders`.
type Encoder struct {
	Type        EncoderType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	HWAccel     bool        `json:"hwaccel"`
}

var (
	encoderRegex = regexp.MustCompile(`^\s*([VASF.XBD]{6})\s+(\S+)\s+(.+)$`)
	hwaccelRegex = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|_mf\b|cuda|d3d11va|vulkan)`)
)

// ListEncoders runs `ffmpeg -encoders` and returns the video encoders.
func ListEncoders(ctx context.Context, binary string) ([]Encoder, error) {
	args := EncodersListArgs(binary)
	output, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders with %s: %w", args[0], err)
	}
	all, err := ParseEncoders(string(output))
	if err != nil {
		return nil, err
	}
	video := all[:0]
	for _, e := range all {
		if e.Type == VideoEncoder {
			video = append(video, e)
		}
	}
	return video, nil
}

// ParseEncoders processes the output of ffmpeg -encoders.
func ParseEncoders(output string) ([]Encoder, error) {
	var result []Encoder
	scanner := bufio.NewScanner(strings.NewReader(output))

	// Legend lines precede the " ------" separator
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				started = true
			}
			continue
		}

		matches := encoderRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		flags, name, description := matches[1], matches[2], strings.TrimSpace(matches[3])

		encoderType := Unknown
		switch flags[0] {
		case 'V':
			encoderType = VideoEncoder
		case 'A':
			encoderType = AudioEncoder
		case 'S':
			encoderType = SubtitleEncoder
		}

		result = append(result, Encoder{
			Type:        encoderType,
			Name:        name,
			Description: description,
			HWAccel:     hwaccelRegex.MatchString(name) || hwaccelRegex.MatchString(description),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading output: %w", err)
	}
	return result, nil
}

// HasEncoder reports whether name is among encoders.
func HasEncoder(encoders []Encoder, name string) bool {
	for _, e := range encoders {
		if e.Name == name {
			return true
		}
	}
	return false
}
