package ffmpeg

import "testing"

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V..... h264_mf              H264 via MediaFoundation (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... srt                  SubRip subtitle
`

func TestParseEncoders(t *testing.T) {
	encoders, err := ParseEncoders(encodersOutput)
	if err != nil {
		t.Fatal(err)
	}
	if len(encoders) != 5 {
		t.Fatalf("parsed %d encoders, want 5: %+v", len(encoders), encoders)
	}

	tests := []struct {
		idx     int
		name    string
		typ     EncoderType
		hwaccel bool
	}{
		{0, "libx264", VideoEncoder, false},
		{1, "h264_nvenc", VideoEncoder, true},
		{2, "h264_mf", VideoEncoder, true},
		{3, "aac", AudioEncoder, false},
		{4, "srt", SubtitleEncoder, false},
	}
	for _, tt := range tests {
		e := encoders[tt.idx]
		if e.Name != tt.name || e.Type != tt.typ || e.HWAccel != tt.hwaccel {
			t.Errorf("encoder %d = %+v, want %s %s hw=%v", tt.idx, e, tt.name, tt.typ, tt.hwaccel)
		}
	}
	if encoders[0].Description != "libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)" {
		t.Errorf("description = %q", encoders[0].Description)
	}

	if !HasEncoder(encoders, "h264_nvenc") || HasEncoder(encoders, "libx265") {
		t.Error("HasEncoder mismatch")
	}
}

func TestParseEncodersSkipsLegend(t *testing.T) {
	encoders, err := ParseEncoders("Encoders:\n V..... = Video\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(encoders) != 0 {
		t.Errorf("legend parsed as encoders: %+v", encoders)
	}
}
