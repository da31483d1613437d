package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/screenrec/internal/logging"
)

// ErrNotRunning is returned when writing to a pipe that is not running.
var ErrNotRunning = errors.New("process not running")

// OutputHandler receives stderr lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns its level (debug, info, warn or
// error) and message.
type LogParser func(line string) (level, msg string)

const readChunkSize = 64 * 1024

// Pipe manages a subprocess fed through stdin and read through stdout.
type Pipe struct {
	id              string
	command         string
	args            []string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // timeout for exit after stdin closes or SIGINT
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	chunks  [][]byte
	info    Info
	exited  chan struct{}
	started bool
	closed  bool

	written atomic.Int64
}

// NewPipeArgs prepares a pipe process from an argument vector. Nothing
// runs until Start.
func NewPipeArgs(id string, args []string, logger logging.Logger) (*Pipe, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return &Pipe{
		id:              id,
		command:         strings.Join(args, " "),
		args:            args,
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		exited:          make(chan struct{}),
		info:            Info{ID: id, State: StateIdle},
	}, nil
}

// Command returns the command line.
func (p *Pipe) Command() string {
	return p.command
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
// The parser extracts log level from process-specific output formats.
func (p *Pipe) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler registers a handler for every stderr line.
func (p *Pipe) SetOutputHandler(h OutputHandler) {
	p.outputHandler = h
}

// SetTimeouts overrides the graceful and kill timeouts.
func (p *Pipe) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// Start launches the subprocess.
func (p *Pipe) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("process %s already started", p.id)
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	configure(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.info.State = StateError
		p.info.LastError = err
		p.logger.Error("Failed to start process", "error", err, "command", p.command)
		return fmt.Errorf("start %s: %w", p.args[0], err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.started = true
	p.info.State = StateRunning
	p.info.PID = cmd.Process.Pid
	p.info.StartedAt = time.Now()
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.command)

	outputDone := make(chan struct{}, 2)
	go func() {
		p.collect(stdout)
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	// Wait only after both pipes hit EOF, as os/exec requires.
	go func() {
		<-outputDone
		<-outputDone
		err := cmd.Wait()
		p.recordExit(err)
		close(p.exited)
	}()

	return nil
}

// Write sends b to the subprocess stdin.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	stdin, running := p.stdin, p.started && !p.closed
	p.mu.Unlock()
	if !running {
		return 0, ErrNotRunning
	}

	n, err := stdin.Write(b)
	p.written.Add(int64(n))
	if err != nil {
		return n, fmt.Errorf("write to %s: %w", p.id, err)
	}
	return n, nil
}

// Drain returns the stdout chunks read since the previous call, in order.
func (p *Pipe) Drain() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.chunks
	p.chunks = nil
	return out
}

// Done is closed once the subprocess has exited and its output is consumed.
func (p *Pipe) Done() <-chan struct{} {
	return p.exited
}

// Finish closes stdin and waits for the subprocess to exit on its own,
// escalating to SIGINT and then SIGKILL. It returns the exit code.
func (p *Pipe) Finish() int {
	if !p.closeInput() {
		return p.exitCode()
	}

	select {
	case <-p.exited:
		return p.exitCode()
	case <-time.After(p.gracefulTimeout):
		p.logger.Warn("Process did not exit after end of input", "timeout", p.gracefulTimeout)
	}
	p.sendStopSignal()
	return p.waitForExit(p.gracefulTimeout)
}

// Stop interrupts the subprocess without waiting for it to consume its input.
func (p *Pipe) Stop() int {
	if !p.closeInput() {
		return p.exitCode()
	}
	p.sendStopSignal()
	return p.waitForExit(p.gracefulTimeout)
}

// Info returns a snapshot of the process state.
func (p *Pipe) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	info.BytesWritten = p.written.Load()
	return info
}

// closeInput closes stdin once. It reports false if the process never started.
func (p *Pipe) closeInput() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false
	}
	if !p.closed {
		p.closed = true
		if p.info.State == StateRunning {
			p.info.State = StateStopping
		}
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.logger.Debug("Closing stdin failed", "error", err)
		}
	}
	return true
}

func (p *Pipe) recordExit(err error) {
	code := exitCodeFromError(err)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.info.ExitCode = code
	if code == 0 {
		p.info.State = StateExited
	} else {
		p.info.State = StateError
		p.info.LastError = err
	}
	p.logger.Info("Process exited", "id", p.id, "exit_code", code)
}

func (p *Pipe) exitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 1
	}
	return p.info.ExitCode
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// sendStopSignal interrupts the subprocess without waiting.
func (p *Pipe) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Info("Interrupting process", "pid", p.cmd.Process.Pid)
	if err := interrupt(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to interrupt process", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Pipe) waitForExit(timeout time.Duration) int {
	select {
	case <-p.exited:
		return p.exitCode()
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
		if err := kill(p.cmd.Process); err != nil {
			// "os: process already finished" is OK - process exited between timeout and kill
			if !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", err)
			}
		}
		// Wait for process to exit with a secondary timeout to prevent hanging
		select {
		case <-p.exited:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal")
		}
		return 137
	}
}

// collect reads stdout into chunks until EOF.
func (p *Pipe) collect(r io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.mu.Lock()
			p.chunks = append(p.chunks, chunk)
			p.info.BytesRead += int64(n)
			p.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Warn("Error reading output", "source", "stdout", "error", err)
			}
			return
		}
	}
}

// streamOutput streams output from the subprocess.
// Uses the configured processLogger (or falls back to default logger).
// Uses the configured LogParser to extract log levels from process output.
func (p *Pipe) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "error":
			logger.Error(msg)
		case "warn":
			logger.Warn(msg)
		case "debug":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}
