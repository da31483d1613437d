package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{published: make(chan struct{}, 100)}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	const rec = "sse-test"
	metrics.DeleteFFmpegMetrics(rec)
	defer metrics.DeleteFFmpegMetrics(rec)

	metrics.SetFFmpegFPS(rec, 30)
	metrics.SetFFmpegSpeed(rec, 1.25)
	metrics.SetFFmpegDroppedFrames(rec, 5)
	metrics.SetFFmpegDuplicateFrames(rec, 2)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond
	exporter.Start(context.Background())

	select {
	case <-mock.published:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for metrics publish")
	}
	exporter.Stop()

	var got *events.EncoderMetricsEvent
	for _, ev := range mock.getEvents() {
		if e, ok := ev.(events.EncoderMetricsEvent); ok && e.Recording == rec {
			got = &e
			break
		}
	}
	if got == nil {
		t.Fatal("no EncoderMetricsEvent for the recording")
	}
	want := events.EncoderMetricsEvent{
		EventType:       "encoder_metrics",
		Recording:       rec,
		FPS:             "30.00",
		Speed:           "1.25",
		DroppedFrames:   "5",
		DuplicateFrames: "2",
	}
	if *got != want {
		t.Errorf("event = %+v, want %+v", *got, want)
	}
}

func TestSSEExporterStopsWithContext(t *testing.T) {
	exporter := NewSSEExporter(newMockEventBus())
	exporter.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		exporter.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}
