package encoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/smazurov/screenrec/internal/frame"
)

func planarFrame(format frame.Format, w, h int, seq uint64) frame.Frame {
	data := make([]byte, format.BufferSize(w, h))
	for i := range data {
		data[i] = byte(i)
	}
	return frame.Frame{Seq: seq, Width: w, Height: h, Format: format, Data: data}
}

func TestY4MHeaderAndFrames(t *testing.T) {
	enc, err := NewY4M(Config{Width: 4, Height: 2, FPS: 30, Format: frame.FormatI420})
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Shutdown()

	f := planarFrame(frame.FormatI420, 4, 2, 0)
	want := append([]byte(nil), f.Data...)
	packets, err := enc.Submit(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 2 {
		t.Fatalf("first Submit returned %d packets, want header + frame", len(packets))
	}
	if got := string(packets[0]); got != "YUV4MPEG2 W4 H2 F30:1 Ip A1:1 C420paldv XCOLORRANGE=LIMITED\n" {
		t.Errorf("header = %q", got)
	}
	if !bytes.Equal(packets[1], append([]byte("FRAME\n"), want...)) {
		t.Errorf("frame packet = %v", packets[1])
	}

	packets, err = enc.Finalize(&frame.Frame{Seq: 1, Width: 4, Height: 2, Format: frame.FormatI420, Data: make([]byte, 12), Last: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 || !bytes.HasPrefix(packets[0], []byte("FRAME\n")) {
		t.Errorf("Finalize packets = %d", len(packets))
	}

	if _, err := enc.Submit(planarFrame(frame.FormatI420, 4, 2, 2)); !errors.Is(err, ErrFinalized) {
		t.Errorf("Submit after Finalize error = %v, want ErrFinalized", err)
	}
}

func TestY4MPlaneOrder(t *testing.T) {
	// 2x2 frame: Y = 1 2 3 4, one chroma sample per plane
	tests := []struct {
		format frame.Format
		data   []byte
	}{
		{frame.FormatI420, []byte{1, 2, 3, 4, 50, 60}},
		{frame.FormatYV12, []byte{1, 2, 3, 4, 60, 50}},
		{frame.FormatNV12, []byte{1, 2, 3, 4, 50, 60}},
	}
	want := []byte("FRAME\n\x01\x02\x03\x04\x32\x3c")

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			enc, err := NewY4M(Config{Width: 2, Height: 2, FPS: 25, Format: tt.format})
			if err != nil {
				t.Fatal(err)
			}
			packets, err := enc.Submit(frame.Frame{Width: 2, Height: 2, Format: tt.format, Data: tt.data})
			if err != nil {
				t.Fatal(err)
			}
			if got := packets[len(packets)-1]; !bytes.Equal(got, want) {
				t.Errorf("frame packet = %v, want %v", got, want)
			}
		})
	}
}

func TestY4MNV12Deinterleave(t *testing.T) {
	enc, err := NewY4M(Config{Width: 4, Height: 2, FPS: 30, Format: frame.FormatNV12})
	if err != nil {
		t.Fatal(err)
	}
	data := []byte{0, 0, 0, 0, 0, 0, 0, 0, 10, 20, 11, 21}
	packets, err := enc.Submit(frame.Frame{Width: 4, Height: 2, Format: frame.FormatNV12, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	chroma := packets[1][len("FRAME\n")+8:]
	if !bytes.Equal(chroma, []byte{10, 11, 20, 21}) {
		t.Errorf("chroma = %v, want [10 11 20 21]", chroma)
	}
}

func TestY4MFinalizeWithoutFrames(t *testing.T) {
	enc, err := NewY4M(Config{Width: 2, Height: 2, FPS: 29.97, Format: frame.FormatI420})
	if err != nil {
		t.Fatal(err)
	}
	packets, err := enc.Finalize(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 || string(packets[0]) != "YUV4MPEG2 W2 H2 F30000:1001 Ip A1:1 C420paldv XCOLORRANGE=LIMITED\n" {
		t.Errorf("packets = %q", packets)
	}
}

func TestY4MRejectsMismatchedFrames(t *testing.T) {
	enc, err := NewY4M(Config{Width: 4, Height: 2, FPS: 30, Format: frame.FormatI420})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		f    frame.Frame
	}{
		{"size", planarFrame(frame.FormatI420, 2, 2, 0)},
		{"format", planarFrame(frame.FormatNV12, 4, 2, 0)},
		{"short data", frame.Frame{Width: 4, Height: 2, Format: frame.FormatI420, Data: make([]byte, 5)}},
		{"device surface", frame.Frame{Width: 4, Height: 2, Format: frame.FormatI420, Surface: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Submit(tt.f); !errors.Is(err, ErrEncoder) {
				t.Errorf("Submit error = %v, want ErrEncoder", err)
			}
		})
	}
}

func TestFrameRate(t *testing.T) {
	tests := []struct {
		fps      float64
		num, den int
	}{
		{30, 30, 1},
		{60, 60, 1},
		{29.97, 30000, 1001},
		{23.976, 24000, 1001},
		{12.5, 25, 2},
	}
	for _, tt := range tests {
		num, den := frameRate(tt.fps)
		if num != tt.num || den != tt.den {
			t.Errorf("frameRate(%v) = %d:%d, want %d:%d", tt.fps, num, den, tt.num, tt.den)
		}
	}
}

func TestNextInputSlotSize(t *testing.T) {
	enc, err := NewY4M(Config{Width: 6, Height: 4, FPS: 30, Format: frame.FormatNV12})
	if err != nil {
		t.Fatal(err)
	}
	slot, err := enc.NextInputSlot()
	if err != nil {
		t.Fatal(err)
	}
	if len(slot) != frame.FormatNV12.BufferSize(6, 4) {
		t.Errorf("slot size = %d", len(slot))
	}
}

func TestParseKindAndNew(t *testing.T) {
	for in, want := range map[string]Kind{"": KindFFmpeg, "FFmpeg": KindFFmpeg, "y4m": KindY4M} {
		if got, err := ParseKind(in); err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("x264"); err == nil {
		t.Error("expected error for unknown encoder")
	}
	if _, err := New(KindY4M, Config{Width: 2, Height: 2, FPS: 30, Format: frame.FormatBGRA}); !errors.Is(err, ErrEncoder) {
		t.Errorf("New with packed format error = %v, want ErrEncoder", err)
	}
	if _, err := New(Kind("raw"), Config{}); !errors.Is(err, ErrEncoder) {
		t.Errorf("New with unknown kind error = %v", err)
	}
}
