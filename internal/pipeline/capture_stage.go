package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/channel"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/metrics"
	"github.com/smazurov/screenrec/internal/pacing"
)

// captureStage is the producer: credit, acquire, convert, push, wait.
type captureStage struct {
	source    capture.Source
	converter convert.Converter
	pacer     *pacing.Controller
	frames    *channel.Bounded[frame.Frame]
	credits   *channel.Bounded[struct{}]

	total   uint64
	policy  pacing.Policy
	timeout time.Duration // per acquire
	stall   time.Duration // 0 disables the watchdog

	stats  *counters
	bus    *events.Bus
	logger *slog.Logger
}

// run produces total frames, or fewer under PolicyDrop. A closed channel or
// a cancelled ctx ends the loop without error.
func (s *captureStage) run(ctx context.Context) error {
	var (
		seq        uint64 // next sequence number
		tick       uint64 // next pacing slot
		haveCredit bool
		silent     time.Duration // spent in consecutive timed out acquires
	)
	interval := s.pacer.Interval()
	dropping := s.policy == pacing.PolicyDrop

	for seq < s.total {
		if ctx.Err() != nil || s.frames.Closed() {
			return nil
		}

		slot := tick
		if dropping {
			if cur := s.pacer.Slot(s.pacer.Now()); cur > slot {
				s.skip(min(cur, s.total) - slot)
				slot = cur
			}
			if slot >= s.total {
				break
			}
		}

		if !haveCredit {
			if _, err := s.credits.PopTimeout(s.stall); err != nil {
				if errors.Is(err, channel.ErrStall) {
					return stageError(StageCapture, seq, fmt.Errorf("%w: no credit returned within %s", err, s.stall))
				}
				return nil
			}
			haveCredit = true
		}

		started := s.pacer.Now()
		raw, err := s.source.AcquireFrame(ctx, s.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, capture.ErrCaptureTimeout) {
				return stageError(StageCapture, seq, fmt.Errorf("acquire: %w", err))
			}
			// A miss accounts for at least the bound it was given.
			silent += max(s.pacer.Now().Sub(started), s.timeout)
			if err := s.miss(slot, silent); err != nil {
				return stageError(StageCapture, seq, err)
			}
			tick = slot + 1
			if s.wait(ctx, tick) != nil {
				return nil
			}
			continue
		}
		silent = 0

		out, err := s.converter.Convert(raw)
		if relErr := s.source.ReleaseFrame(); relErr != nil && err == nil {
			err = fmt.Errorf("release: %w", relErr)
		}
		if err != nil {
			return stageError(StageCapture, seq, err)
		}

		out.Seq = seq
		out.Timestamp = raw.Timestamp
		out.Duration = interval
		out.Last = seq == s.total-1 || (dropping && slot == s.total-1)

		if err := s.frames.Push(out); err != nil {
			// Closed by the driver: the run is stopping.
			return nil
		}
		haveCredit = false
		s.stats.captured.Add(1)
		metrics.FrameCaptured(s.frames.Len())

		if out.Last {
			break
		}
		seq++
		tick = slot + 1
		if s.wait(ctx, tick) != nil {
			return nil
		}
	}

	s.logger.Debug("Capture stage done", "frames", s.stats.captured.Load(), "misses", s.stats.misses.Load())
	return nil
}

// wait sleeps until the deadline of tick and records an overrun if the
// deadline had already passed.
func (s *captureStage) wait(ctx context.Context, tick uint64) error {
	late, err := s.pacer.Wait(ctx, tick)
	if err != nil {
		return err
	}
	if late > 0 {
		s.stats.overruns.Add(1)
		metrics.PaceOverrun()
		s.logger.Debug("Frame overran its slot", "tick", tick, "late", late)
	}
	return nil
}

// miss records a capture timeout. It fails once consecutive timeouts have
// kept the source silent for the stall timeout. Pacing and credit waits are
// not silence.
func (s *captureStage) miss(slot uint64, silent time.Duration) error {
	n := s.stats.misses.Add(1)
	metrics.CaptureMiss()
	s.logger.Debug("Capture timeout", "tick", slot, "misses", n)
	s.bus.Publish(events.CaptureMissEvent{
		Tick:      slot,
		Misses:    n,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	if s.stall > 0 {
		if silent >= s.stall {
			return fmt.Errorf("%w: no frame captured for %s", channel.ErrStall, silent.Round(time.Millisecond))
		}
	}
	return nil
}

func (s *captureStage) skip(n uint64) {
	if n == 0 {
		return
	}
	s.stats.skipped.Add(n)
	metrics.SlotsSkipped(int(n))
	s.logger.Debug("Skipped slots to catch up", "slots", n)
}
