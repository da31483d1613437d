//go:build !windows

package encoder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/screenrec/internal/frame"
)

// fakeFFmpeg writes a shell script standing in for the ffmpeg binary.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegPipesFrames(t *testing.T) {
	enc, err := NewFFmpeg(Config{
		Width:  4,
		Height: 2,
		FPS:    30,
		Format: frame.FormatI420,
		Binary: fakeFFmpeg(t, "exec cat"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Shutdown()

	var want, got bytes.Buffer
	for seq := uint64(0); seq < 3; seq++ {
		slot, err := enc.NextInputSlot()
		if err != nil {
			t.Fatal(err)
		}
		for i := range slot {
			slot[i] = byte(seq*16) + byte(i)
		}
		want.Write(slot)
		packets, err := enc.Submit(frame.Frame{Seq: seq, Width: 4, Height: 2, Format: frame.FormatI420, Data: slot})
		if err != nil {
			t.Fatalf("Submit(%d) error: %v", seq, err)
		}
		for _, p := range packets {
			got.Write(p)
		}
	}

	last, err := enc.NextInputSlot()
	if err != nil {
		t.Fatal(err)
	}
	want.Write(last)
	packets, err := enc.Finalize(&frame.Frame{Seq: 3, Width: 4, Height: 2, Format: frame.FormatI420, Data: last, Last: true})
	if err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	for _, p := range packets {
		got.Write(p)
	}

	if !bytes.Equal(got.Bytes(), want.Bytes()) {
		t.Errorf("stream = %d bytes, want %d", got.Len(), want.Len())
	}
	if _, err := enc.Submit(frame.Frame{Width: 4, Height: 2, Format: frame.FormatI420, Data: last}); !errors.Is(err, ErrFinalized) {
		t.Errorf("Submit after Finalize error = %v", err)
	}
}

func TestFFmpegFailureExitCode(t *testing.T) {
	enc, err := NewFFmpeg(Config{
		Width:  2,
		Height: 2,
		FPS:    30,
		Format: frame.FormatNV12,
		Binary: fakeFFmpeg(t, "cat >/dev/null; echo '[error] broken' >&2; exit 3"),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = enc.Finalize(nil)
	if !errors.Is(err, ErrEncoder) {
		t.Errorf("Finalize error = %v, want ErrEncoder", err)
	}
	if err != nil && !strings.Contains(err.Error(), "broken") {
		t.Errorf("Finalize error %q does not carry ffmpeg's last error line", err)
	}
	if err := enc.Shutdown(); err != nil {
		t.Error(err)
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	_, err := NewFFmpeg(Config{
		Width:  2,
		Height: 2,
		FPS:    30,
		Format: frame.FormatI420,
		Binary: filepath.Join(t.TempDir(), "missing"),
	})
	if !errors.Is(err, ErrEncoder) {
		t.Errorf("error = %v, want ErrEncoder", err)
	}
}

func TestFFmpegShutdownWithoutFinalize(t *testing.T) {
	enc, err := NewFFmpeg(Config{
		Width:  2,
		Height: 2,
		FPS:    30,
		Format: frame.FormatI420,
		Binary: fakeFFmpeg(t, "exec cat"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Shutdown(); err != nil {
		t.Errorf("second Shutdown error = %v", err)
	}
}

func TestFFmpegStopTimeout(t *testing.T) {
	enc, err := NewFFmpeg(Config{
		Width:       2,
		Height:      2,
		FPS:         30,
		Format:      frame.FormatI420,
		Binary:      fakeFFmpeg(t, "trap '' INT; exec sleep 30"),
		StopTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := enc.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Shutdown took %s with a 100ms stop timeout", elapsed)
	}
}

func TestFFmpegProgressSocket(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	socket := filepath.Join(dir, "progress.sock")

	enc, err := NewFFmpeg(Config{
		Width:          2,
		Height:         2,
		FPS:            30,
		Format:         frame.FormatI420,
		Binary:         fakeFFmpeg(t, `echo "$@" > `+argsFile+`; exec cat`),
		ProgressSocket: socket,
		Recording:      "progress-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(socket); err != nil {
		t.Errorf("progress socket not created: %v", err)
	}
	if _, err := enc.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(args, []byte("-progress unix://"+socket)) {
		t.Errorf("ffmpeg args = %q, want -progress flag", args)
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Error("progress socket should be removed after Finalize")
	}
	if err := enc.Shutdown(); err != nil {
		t.Error(err)
	}
}
