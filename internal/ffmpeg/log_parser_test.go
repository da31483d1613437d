package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Stream mapping:", "info", "Stream mapping:"},
		{"[error] pipe:0: Invalid argument", "error", "pipe:0: Invalid argument"},
		{"[fatal] Conversion failed!", "error", "Conversion failed!"},
		{"[verbose] rawvideo frame", "debug", "rawvideo frame"},
		{"[libx264 @ 0x55d] [warning] frame size mismatch", "warn", "[libx264 @ 0x55d] frame size mismatch"},
		{"[libx264 @ 0x55d] using cpu capabilities", "info", "[libx264 @ 0x55d] using cpu capabilities"},
		{"[info] frame=  120 fps= 30 q=23.0 size=512KiB", "debug", "[info] frame=  120 fps= 30 q=23.0 size=512KiB"},
		{"frame=   60 fps=0.0 q=-1.0 Lsize=  96KiB", "debug", "frame=   60 fps=0.0 q=-1.0 Lsize=  96KiB"},
		{"frame=a", "info", "frame=a"},
		{"plain output", "info", "plain output"},
		{"[] empty tag", "info", "[] empty tag"},
		{"[", "info", "["},
		{"[unterminated", "info", "[unterminated"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = %q, %q; want %q, %q", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
