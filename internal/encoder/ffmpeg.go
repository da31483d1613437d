package encoder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/screenrec/internal/ffmpeg"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/metrics/collectors"
	"github.com/smazurov/screenrec/internal/process"
)

// FFmpeg pipes raw frames into an ffmpeg child process and returns the
// elementary stream it writes to stdout.
type FFmpeg struct {
	cfg       Config
	pipe      *process.Pipe
	stderr    *errorTail
	pool      *frame.Pool
	progress  *collectors.FFmpegCollector
	logger    logging.Logger
	finalized bool
	shutdown  bool
}

// NewFFmpeg starts the ffmpeg process for cfg.
func NewFFmpeg(cfg Config) (*FFmpeg, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	codec := cfg.Codec
	if codec == "" {
		codec = "libx264"
	}
	options := cfg.Options
	if options == nil {
		options = ffmpeg.GetDefaultOptions()
	}

	logger := logging.GetLogger("encoder")

	var progress *collectors.FFmpegCollector
	progressURL := ""
	if cfg.ProgressSocket != "" {
		recording := cfg.Recording
		if recording == "" {
			recording = "default"
		}
		progress = collectors.NewFFmpegCollector(cfg.ProgressSocket, recording)
		if err := progress.Start(context.Background()); err != nil {
			// Progress is informational only.
			logger.Warn("ffmpeg progress disabled", "error", err)
			progress = nil
		} else {
			progressURL = progress.URL()
		}
	}

	args, err := ffmpeg.BuildArgs(&ffmpeg.Params{
		Binary:      cfg.Binary,
		ProgressURL: progressURL,
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		PixelFormat: cfg.Format,
		Encoder:     codec,
		Bitrate:     cfg.Bitrate,
		Preset:      cfg.Preset,
		GOP:         cfg.GOP,
		BFrames:     0,
		Options:     options,
	})
	if err != nil {
		stopCollector(progress)
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}

	tail := &errorTail{}
	pipe, err := startPipe(args, logger, tail, cfg.StopTimeout)
	if err != nil {
		stopCollector(progress)
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}

	return &FFmpeg{
		cfg:      cfg,
		pipe:     pipe,
		stderr:   tail,
		pool:     cfg.pool(),
		progress: progress,
		logger:   logger,
	}, nil
}

func startPipe(args []string, logger logging.Logger, tail *errorTail, stopTimeout time.Duration) (*process.Pipe, error) {
	pipe, err := process.NewPipeArgs("ffmpeg", args, logger)
	if err != nil {
		return nil, err
	}
	pipe.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	pipe.SetOutputHandler(tail)
	if stopTimeout > 0 {
		pipe.SetTimeouts(stopTimeout, stopTimeout)
	}

	logger.Debug("Starting ffmpeg", "command", pipe.Command())
	if err := pipe.Start(); err != nil {
		return nil, err
	}
	return pipe, nil
}

// errorTail remembers the last error ffmpeg logged, which names the cause
// of a failed run far better than its exit code.
type errorTail struct {
	mu   sync.Mutex
	last string
}

// HandleLine implements process.OutputHandler.
func (t *errorTail) HandleLine(_, line string) {
	if level, msg := ffmpeg.ParseLogLevel(line); level == "error" {
		t.mu.Lock()
		t.last = msg
		t.mu.Unlock()
	}
}

// wrap adds the last logged error to err.
func (t *errorTail) wrap(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, t.last)
}

func stopCollector(c *collectors.FFmpegCollector) {
	if c != nil {
		_ = c.Stop()
	}
}

// NextInputSlot returns a pooled frame buffer.
func (e *FFmpeg) NextInputSlot() ([]byte, error) {
	return e.pool.Get(), nil
}

// Submit writes f to ffmpeg and returns any output produced since the last call.
func (e *FFmpeg) Submit(f frame.Frame) ([][]byte, error) {
	if e.finalized {
		return nil, ErrFinalized
	}
	if err := e.write(f); err != nil {
		return nil, err
	}
	return e.pipe.Drain(), nil
}

// Finalize writes the last frame, closes ffmpeg's input and waits for the
// remaining output.
func (e *FFmpeg) Finalize(f *frame.Frame) ([][]byte, error) {
	if e.finalized {
		return nil, ErrFinalized
	}
	if f != nil {
		if err := e.write(*f); err != nil {
			return nil, err
		}
	}
	e.finalized = true

	code := e.pipe.Finish()
	e.stopProgress()
	packets := e.pipe.Drain()
	if code != 0 {
		return packets, e.stderr.wrap(fmt.Errorf("%w: ffmpeg exited with code %d", ErrEncoder, code))
	}
	info := e.pipe.Info()
	e.logger.Debug("ffmpeg finished", "bytes_in", info.BytesWritten, "bytes_out", info.BytesRead)
	return packets, nil
}

// Shutdown stops ffmpeg if Finalize never ran.
func (e *FFmpeg) Shutdown() error {
	if e.shutdown {
		return nil
	}
	e.shutdown = true
	if !e.finalized {
		e.finalized = true
		code := e.pipe.Stop()
		e.logger.Debug("ffmpeg stopped before finalize", "exit_code", code)
	}
	e.stopProgress()
	return nil
}

func (e *FFmpeg) stopProgress() {
	if e.progress == nil {
		return
	}
	if err := e.progress.Stop(); err != nil {
		e.logger.Debug("Stopping progress collector failed", "error", err)
	}
}

func (e *FFmpeg) write(f frame.Frame) error {
	data, err := checkFrame(e.cfg, f)
	if err != nil {
		return err
	}
	defer e.pool.Put(f.Data)

	if _, err := e.pipe.Write(data); err != nil {
		info := e.pipe.Info()
		return e.stderr.wrap(fmt.Errorf("%w: frame %d: %w (state %s)", ErrEncoder, f.Seq, err, info.State))
	}
	return nil
}
