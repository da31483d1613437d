package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/encoder"
	"github.com/smazurov/screenrec/internal/frame"
)

func TestTotalFrames(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
		want uint64
	}{
		{"explicit", Settings{Frames: 7, FPS: 30, Duration: time.Minute}, 7},
		{"fps times duration", Settings{FPS: 30, Duration: 10 * time.Second}, 300},
		{"ntsc rounds", Settings{FPS: 29.97, Duration: 10 * time.Second}, 300},
		{"short duration keeps one frame", Settings{FPS: 30, Duration: time.Millisecond}, 1},
		{"nothing set", Settings{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.TotalFrames(); got != tt.want {
				t.Errorf("TotalFrames() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOpenRecordsY4M(t *testing.T) {
	for _, conv := range []convert.Kind{convert.KindCPU, convert.KindBlit} {
		t.Run(string(conv), func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "nested", "capture.y4m")
			d, err := Open(Settings{
				Source:      capture.KindSynthetic,
				Width:       16,
				Height:      8,
				FPS:         120,
				Frames:      5,
				Converter:   conv,
				PixelFormat: frame.FormatYV12,
				Encoder:     encoder.KindY4M,
				Output:      out,
			}, nil)
			if err != nil {
				t.Fatal(err)
			}

			stats, err := d.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if stats.Encoded != 5 {
				t.Errorf("encoded %d frames, want 5", stats.Encoded)
			}

			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			header, _, ok := bytes.Cut(data, []byte("\n"))
			if !ok || !bytes.HasPrefix(header, []byte("YUV4MPEG2 W16 H8 F120:1 ")) {
				t.Fatalf("header = %q", header)
			}
			frameSize := len("FRAME\n") + frame.FormatI420.BufferSize(16, 8)
			if want := len(header) + 1 + 5*frameSize; len(data) != want {
				t.Errorf("file is %d bytes, want %d", len(data), want)
			}
			if int64(len(data)) != stats.Bytes {
				t.Errorf("stats report %d bytes, file has %d", stats.Bytes, len(data))
			}
		})
	}
}

func TestOpenRejectsBadSettings(t *testing.T) {
	base := Settings{
		Source:  capture.KindSynthetic,
		Width:   16,
		Height:  8,
		FPS:     30,
		Frames:  1,
		Encoder: encoder.KindY4M,
		Output:  filepath.Join(t.TempDir(), "x.y4m"),
	}
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"no frames", func(s *Settings) { s.Frames = 0; s.Duration = 0 }},
		{"no output", func(s *Settings) { s.Output = "" }},
		{"capacity", func(s *Settings) { s.Capacity = 9 }},
		{"converter", func(s *Settings) { s.Converter = "gpu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.modify(&s)
			if _, err := Open(s, nil); !errors.Is(err, ErrConfig) {
				t.Errorf("Open error = %v, want ErrConfig", err)
			}
		})
	}
}
