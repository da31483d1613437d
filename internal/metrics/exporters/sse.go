package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/metrics"
)

// EventPublisher is the subset of the event bus the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically republishes ffmpeg progress as events so SSE
// clients see encoder health without scraping Prometheus.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates an exporter publishing once per second.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: time.Second,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop ends the export loop and waits for it.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	for recording, m := range metrics.GetAllFFmpegMetrics() {
		s.eventBus.Publish(events.EncoderMetricsEvent{
			EventType:       "encoder_metrics",
			Recording:       recording,
			FPS:             strconv.FormatFloat(m.FPS, 'f', 2, 64),
			Speed:           strconv.FormatFloat(m.Speed, 'f', 2, 64),
			DroppedFrames:   strconv.FormatFloat(m.DroppedFrames, 'f', 0, 64),
			DuplicateFrames: strconv.FormatFloat(m.DuplicateFrames, 'f', 0, 64),
		})
	}
}
