package process

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPipe creates a Pipe with short timeouts for testing.
func newTestPipe(t *testing.T, args ...string) *Pipe {
	t.Helper()
	p, err := NewPipeArgs("test", args, testLogger())
	if err != nil {
		t.Fatalf("NewPipeArgs(%q) error: %v", args, err)
	}
	p.SetTimeouts(200*time.Millisecond, 200*time.Millisecond)
	return p
}

// finishAsync runs Finish in a goroutine and returns the exit code channel.
func finishAsync(p *Pipe) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- p.Finish()
	}()
	return done
}

// waitForExit waits for exit code with timeout, fails test on timeout.
func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case exitCode := <-done:
		return exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestPipeRoundTrip(t *testing.T) {
	p := newTestPipe(t, "cat")
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("frame"), 50000)
	if _, err := p.Write(payload); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	if exitCode := waitForExit(t, finishAsync(p), 2*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	got := bytes.Join(p.Drain(), nil)
	if !bytes.Equal(got, payload) {
		t.Errorf("read %d bytes back, want %d", len(got), len(payload))
	}
	if more := p.Drain(); len(more) != 0 {
		t.Errorf("second Drain returned %d chunks", len(more))
	}

	info := p.Info()
	if info.State != StateExited {
		t.Errorf("State = %s, want %s", info.State, StateExited)
	}
	if info.BytesWritten != int64(len(payload)) || info.BytesRead != int64(len(payload)) {
		t.Errorf("bytes written/read = %d/%d, want %d", info.BytesWritten, info.BytesRead, len(payload))
	}
}

func TestPipeNonZeroExit(t *testing.T) {
	p := newTestPipe(t, "sh", "-c", "exit 42")
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	<-p.Done()

	if exitCode := p.Finish(); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
	if info := p.Info(); info.State != StateError || info.LastError == nil {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestPipeWriteAfterFinish(t *testing.T) {
	p := newTestPipe(t, "cat")
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	p.Finish()

	if _, err := p.Write([]byte("late")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Write after Finish error = %v, want ErrNotRunning", err)
	}
}

func TestPipeWriteBeforeStart(t *testing.T) {
	p := newTestPipe(t, "cat")
	if _, err := p.Write([]byte("x")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("error = %v, want ErrNotRunning", err)
	}
	if exitCode := p.Finish(); exitCode != 1 {
		t.Errorf("Finish before Start = %d, want 1", exitCode)
	}
}

func TestPipeGracefulStop(t *testing.T) {
	// ignores end of input, handles SIGINT
	p := newTestPipe(t, "sh", "-c", "trap 'exit 0' INT TERM; while :; do sleep 0.05; done")
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if exitCode := waitForExit(t, finishAsync(p), 2*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestPipeForceKillOnTimeout(t *testing.T) {
	p := newTestPipe(t, "sh", "-c", "trap '' INT; sleep 10")
	p.SetTimeouts(50*time.Millisecond, 50*time.Millisecond)
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	done := make(chan int, 1)
	go func() { done <- p.Stop() }()
	if exitCode := waitForExit(t, done, time.Second); exitCode != 137 {
		t.Errorf("expected exit code 137, got %d", exitCode)
	}
}

func TestPipeStartFailure(t *testing.T) {
	p := newTestPipe(t, "/nonexistent/command/that/does/not/exist")
	if err := p.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if info := p.Info(); info.State != StateError {
		t.Errorf("State = %s, want %s", info.State, StateError)
	}
}

func TestPipeDoubleStart(t *testing.T) {
	p := newTestPipe(t, "cat")
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	defer p.Finish()
	if err := p.Start(); err == nil {
		t.Error("expected error on second Start")
	}
}

func TestNewPipeArgsEmpty(t *testing.T) {
	if _, err := NewPipeArgs("test", nil, testLogger()); err == nil {
		t.Error("expected error for empty args")
	}
}

func TestPipeCommand(t *testing.T) {
	p := newTestPipe(t, "ffmpeg", "-f", "rawvideo", "-i", "pipe:0")
	if got := p.Command(); got != "ffmpeg -f rawvideo -i pipe:0" {
		t.Errorf("Command() = %q", got)
	}
}

func TestStderrLogLevels(t *testing.T) {
	cmd := `echo "[error] error message" >&2; echo "[warning] warn message" >&2; echo "plain message" >&2`
	p := newTestPipe(t, "sh", "-c", cmd)

	handler := &testOutputHandler{}
	p.SetOutputHandler(handler)
	p.SetLogParser(testLogger(), func(line string) (string, string) {
		if len(line) > 7 && line[:7] == "[error]" {
			return "error", line[8:]
		}
		return "info", line
	})

	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	if exitCode := p.Finish(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if got := handler.count(); got != 3 {
		t.Errorf("handler saw %d lines, want 3", got)
	}
}

type testOutputHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *testOutputHandler) HandleLine(_, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

func (h *testOutputHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}
