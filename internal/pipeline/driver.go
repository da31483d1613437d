// Package pipeline runs the capture and encode stages of a recording.
//
// The capture stage paces itself to the target frame rate and hands
// converted frames to the encode stage through a bounded channel. Every
// frame the encode stage finishes returns a credit on a second channel, and
// the capture stage never starts a capture without holding one, so at most
// Capacity frames are in flight however slow the encoder is.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/channel"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/encoder"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/metrics"
	"github.com/smazurov/screenrec/internal/pacing"
	"github.com/smazurov/screenrec/internal/sink"
)

// Channel capacity bounds.
const (
	MinCapacity     = 1
	MaxCapacity     = 4
	DefaultCapacity = 4
)

// SinkOpener opens the output once the pipeline is about to start.
type SinkOpener func() (sink.Sink, error)

// Config holds the run parameters of a Driver.
type Config struct {
	FPS      float64
	Frames   uint64 // total frames to record, at least 1
	Capacity int    // frame and credit channel capacity, 0 means DefaultCapacity

	Policy pacing.Policy
	// CaptureTimeout bounds each acquire. Defaults to one frame interval,
	// never below a millisecond.
	CaptureTimeout time.Duration
	// StallTimeout fails the run when either stage waits this long without
	// progress. Zero waits forever.
	StallTimeout time.Duration

	// Labels reported in events.
	Output      string
	EncoderName string
	Width       int
	Height      int
}

// Options are the collaborators a Driver runs with. The driver takes
// ownership of all of them and releases them when Run returns.
type Options struct {
	Source    capture.Source
	Converter convert.Converter
	Encoder   encoder.Encoder
	OpenSink  SinkOpener
	EventBus  *events.Bus
	// Clock overrides the pacing clock.
	Clock func() time.Time
}

// Driver owns both channels and both stages of one recording.
type Driver struct {
	cfg    Config
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	ran     bool
	stats   *counters
	started time.Time
	frames  *channel.Bounded[frame.Frame]
	final   *Stats
}

// New validates cfg and prepares a driver. Nothing runs until Run.
func New(cfg Config, opts Options) (*Driver, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < MinCapacity || cfg.Capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d outside [%d,%d]", ErrConfig, cfg.Capacity, MinCapacity, MaxCapacity)
	}
	if cfg.Frames == 0 {
		return nil, fmt.Errorf("%w: frame count must be at least 1", ErrConfig)
	}
	interval, err := pacing.IntervalForRate(cfg.FPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = max(interval, time.Millisecond)
	}
	if opts.Source == nil || opts.Converter == nil || opts.Encoder == nil || opts.OpenSink == nil {
		return nil, fmt.Errorf("%w: source, converter, encoder and sink are required", ErrConfig)
	}

	return &Driver{
		cfg:    cfg,
		opts:   opts,
		logger: logging.GetLogger("pipeline"),
		stats:  &counters{},
	}, nil
}

// Config returns the effective configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// Progress returns live counters while Run is in progress and the final
// figures afterwards.
func (d *Driver) Progress() Stats {
	d.mu.Lock()
	started, frames, final := d.started, d.frames, d.final
	d.mu.Unlock()
	if final != nil {
		return *final
	}

	st := d.stats.snapshot()
	if frames != nil {
		st.Peak = frames.Peak()
	}
	if !started.IsZero() {
		st.Elapsed = time.Since(started)
	}
	return st
}

// Run records until the configured frame count is reached, a stage fails or
// ctx is cancelled. Cancellation is a clean stop: the frames already queued
// are encoded and the encoder is flushed, and Run returns ctx.Err().
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	d.mu.Lock()
	if d.ran {
		d.mu.Unlock()
		return Stats{}, ErrAlreadyRun
	}
	d.ran = true
	d.mu.Unlock()

	out, err := d.opts.OpenSink()
	if err != nil {
		return d.abort(nil, fmt.Errorf("%w: %w", ErrOutput, err))
	}

	frames, err := channel.New[frame.Frame](d.cfg.Capacity)
	if err != nil {
		return d.abort(out, fmt.Errorf("%w: %w", ErrConfig, err))
	}
	credits, _ := channel.New[struct{}](d.cfg.Capacity)
	for range d.cfg.Capacity {
		_, _ = credits.TryPush(struct{}{})
	}

	var pacerOpts []pacing.Option
	if d.opts.Clock != nil {
		pacerOpts = append(pacerOpts, pacing.WithClock(d.opts.Clock))
	}
	pacer, err := pacing.NewForRate(d.cfg.FPS, pacerOpts...)
	if err != nil {
		return d.abort(out, fmt.Errorf("%w: %w", ErrConfig, err))
	}

	producer := &captureStage{
		source:    d.opts.Source,
		converter: d.opts.Converter,
		pacer:     pacer,
		frames:    frames,
		credits:   credits,
		total:     d.cfg.Frames,
		policy:    d.cfg.Policy,
		timeout:   d.cfg.CaptureTimeout,
		stall:     d.cfg.StallTimeout,
		stats:     d.stats,
		bus:       d.opts.EventBus,
		logger:    d.logger.With("stage", StageCapture),
	}
	consumer := &encodeStage{
		encoder: d.opts.Encoder,
		sink:    out,
		frames:  frames,
		credits: credits,
		total:   d.cfg.Frames,
		stall:   consumerStall(d.cfg, pacer.Interval()),
		stats:   d.stats,
		bus:     d.opts.EventBus,
		logger:  d.logger.With("stage", StageEncode),
	}

	metrics.ResetPipeline()
	started := pacer.Now()
	pacer.Start(started)
	d.mu.Lock()
	d.started = started
	d.frames = frames
	d.mu.Unlock()

	stop := sync.OnceFunc(func() {
		frames.Close()
		credits.Close()
	})

	d.logger.Info("Recording started",
		"frames", d.cfg.Frames, "fps", d.cfg.FPS, "capacity", d.cfg.Capacity,
		"policy", d.cfg.Policy, "output", d.cfg.Output)
	d.opts.EventBus.Publish(events.RecordingStartedEvent{
		Output:    d.cfg.Output,
		Width:     d.cfg.Width,
		Height:    d.cfg.Height,
		FPS:       d.cfg.FPS,
		Frames:    d.cfg.Frames,
		Capacity:  d.cfg.Capacity,
		Encoder:   d.cfg.EncoderName,
		Timestamp: started.Format(time.RFC3339),
	})

	g, gctx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			stop()
		case <-stopped:
		}
	}()

	captureDone := make(chan struct{})
	g.Go(func() error {
		defer close(captureDone)
		err := producer.run(gctx)
		// No more frames: lets the consumer see the end of the stream
		// if the last frame was never pushed.
		frames.Close()
		return err
	})
	g.Go(func() error {
		err := consumer.run()
		if err != nil {
			return err
		}
		<-captureDone
		return nil
	})

	runErr := g.Wait()
	close(stopped)
	stop()

	if err := d.release(); err != nil && runErr == nil {
		runErr = err
	}
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("%w: close: %w", ErrOutput, err)
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	stats := d.stats.snapshot()
	stats.Peak = frames.Peak()
	stats.Elapsed = pacer.Now().Sub(started)
	d.mu.Lock()
	d.final = &stats
	d.mu.Unlock()
	d.finish(stats, runErr)
	return stats, runErr
}

// consumerStall outlasts the longest run of misses the capture stage
// tolerates: each miss costs its timeout plus a pacing slot, and one more
// attempt follows the last tolerated miss.
func consumerStall(cfg Config, interval time.Duration) time.Duration {
	if cfg.StallTimeout <= 0 {
		return 0
	}
	misses := (cfg.StallTimeout + cfg.CaptureTimeout - 1) / cfg.CaptureTimeout
	return time.Duration(misses+1) * (interval + cfg.CaptureTimeout)
}

// release shuts the encoder down, then closes the converter and the
// capture source. Only the shutdown error is returned.
func (d *Driver) release() error {
	var shutdownErr error
	if err := d.opts.Encoder.Shutdown(); err != nil {
		shutdownErr = fmt.Errorf("shutdown encoder: %w", err)
	}
	if err := d.opts.Converter.Close(); err != nil {
		d.logger.Warn("Closing converter failed", "error", err)
	}
	if err := d.opts.Source.Close(); err != nil {
		d.logger.Warn("Closing capture source failed", "error", err)
	}
	return shutdownErr
}

// abort ends a run that failed before the stages started. The parts are
// released and the failure is reported like any other.
func (d *Driver) abort(out sink.Sink, err error) (Stats, error) {
	_ = d.release()
	if out != nil {
		_ = out.Close()
	}
	stats := Stats{}
	d.mu.Lock()
	d.final = &stats
	d.mu.Unlock()
	d.finish(stats, err)
	return stats, err
}

func (d *Driver) finish(stats Stats, err error) {
	ev := events.RecordingFinishedEvent{
		Output:    d.cfg.Output,
		Frames:    stats.Encoded,
		Misses:    stats.Misses,
		Overruns:  stats.Overruns,
		Skipped:   stats.Skipped,
		Bytes:     stats.Bytes,
		Elapsed:   stats.Elapsed.Round(time.Millisecond).String(),
		FPS:       stats.FPS(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	attrs := []any{
		"encoded", stats.Encoded, "captured", stats.Captured, "misses", stats.Misses,
		"overruns", stats.Overruns, "skipped", stats.Skipped, "bytes", stats.Bytes,
		"elapsed", stats.Elapsed.Round(time.Millisecond), "fps", fmt.Sprintf("%.2f", stats.FPS()),
	}

	switch {
	case err == nil:
		d.logger.Info("Recording finished", attrs...)
	case errors.Is(err, context.Canceled):
		d.logger.Info("Recording stopped", attrs...)
		ev.Error = err.Error()
	default:
		d.logger.Error("Recording failed", append(attrs, "error", err)...)
		ev.Error = err.Error()
	}
	d.opts.EventBus.Publish(ev)
}
