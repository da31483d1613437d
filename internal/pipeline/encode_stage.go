package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/screenrec/internal/channel"
	"github.com/smazurov/screenrec/internal/encoder"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/metrics"
	"github.com/smazurov/screenrec/internal/sink"
)

// encodeStage is the consumer: pop, verify, encode, write, return a credit.
type encodeStage struct {
	encoder encoder.Encoder
	sink    sink.Sink
	frames  *channel.Bounded[frame.Frame]
	credits *channel.Bounded[struct{}]

	total uint64
	stall time.Duration

	stats  *counters
	bus    *events.Bus
	logger *slog.Logger
}

// run consumes frames until the Last frame or the end of the stream.
func (s *encodeStage) run() error {
	var next uint64
	for {
		f, err := s.frames.PopTimeout(s.stall)
		if errors.Is(err, channel.ErrEndOfStream) {
			// Stopped before the last frame: flush what the encoder holds.
			s.logger.Debug("Frame stream ended early", "encoded", next)
			packets, err := s.encoder.Finalize(nil)
			if err != nil {
				return stageError(StageEncode, next, err)
			}
			return s.write(next, packets)
		}
		if err != nil {
			return stageError(StageEncode, next, fmt.Errorf("%w: no frame within %s", err, s.stall))
		}

		if f.Seq != next {
			return stageError(StageEncode, f.Seq, fmt.Errorf("%w: got %d, want %d", ErrSequenceGap, f.Seq, next))
		}

		start := time.Now()
		var packets [][]byte
		if f.Last {
			packets, err = s.encoder.Finalize(&f)
		} else {
			packets, err = s.encoder.Submit(f)
		}
		if err != nil {
			return stageError(StageEncode, f.Seq, err)
		}
		if err := s.write(f.Seq, packets); err != nil {
			return err
		}

		s.stats.encoded.Add(1)
		depth := s.frames.Len()
		metrics.FrameEncoded(time.Since(start), packetBytes(packets), depth)
		s.bus.Publish(events.FrameEncodedEvent{
			Seq:        f.Seq,
			Frames:     s.total,
			Bytes:      s.stats.bytes.Load(),
			QueueDepth: depth,
			Last:       f.Last,
			Timestamp:  time.Now().Format(time.RFC3339),
		})

		if f.Last {
			s.logger.Debug("Encode stage done", "frames", s.stats.encoded.Load())
			return nil
		}

		// A closed credit channel means the producer is stopping; keep
		// draining the frames it already queued.
		if err := s.credits.PushTimeout(struct{}{}, s.stall); errors.Is(err, channel.ErrStall) {
			return stageError(StageEncode, f.Seq, fmt.Errorf("%w: credit window full for %s", err, s.stall))
		}
		next++
	}
}

// write hands every packet to the sink in order.
func (s *encodeStage) write(seq uint64, packets [][]byte) error {
	for _, p := range packets {
		if len(p) == 0 {
			continue
		}
		if err := s.sink.WriteBytes(p); err != nil {
			return stageError(StageEncode, seq, fmt.Errorf("%w: %w", ErrOutput, err))
		}
		s.stats.bytes.Add(int64(len(p)))
		s.stats.writes.Add(1)
	}
	return nil
}

func packetBytes(packets [][]byte) int {
	n := 0
	for _, p := range packets {
		n += len(p)
	}
	return n
}
