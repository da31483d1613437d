package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "frames_captured_total",
		Help:      "Frames acquired, converted and queued for encoding",
	})

	framesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "frames_encoded_total",
		Help:      "Frames submitted to the encoder",
	})

	captureMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "capture_misses_total",
		Help:      "Ticks where the capture source produced no new frame",
	})

	paceOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "pace_overruns_total",
		Help:      "Frames that finished after their deadline",
	})

	skippedSlots = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "skipped_slots_total",
		Help:      "Frame slots skipped under the drop overrun policy",
	})

	bytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "bytes_written_total",
		Help:      "Encoded bytes written to the output sink",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Frames waiting between capture and encode",
	})

	encodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "encode_seconds",
		Help:      "Time spent in the encoder per frame",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	pipelineMu    sync.RWMutex
	pipelineStats PipelineSnapshot
)

// PipelineSnapshot is a point-in-time copy of the pipeline counters for the
// current recording.
type PipelineSnapshot struct {
	Captured   uint64
	Encoded    uint64
	Misses     uint64
	Overruns   uint64
	Skipped    uint64
	Bytes      uint64
	QueueDepth int
	LastEncode time.Duration
}

// FrameCaptured records a frame pushed onto the queue.
func FrameCaptured(depth int) {
	framesCaptured.Inc()
	queueDepth.Set(float64(depth))
	pipelineMu.Lock()
	pipelineStats.Captured++
	pipelineStats.QueueDepth = depth
	pipelineMu.Unlock()
}

// FrameEncoded records a frame handed to the encoder and the bytes it produced.
func FrameEncoded(took time.Duration, n int, depth int) {
	framesEncoded.Inc()
	encodeSeconds.Observe(took.Seconds())
	bytesWritten.Add(float64(n))
	queueDepth.Set(float64(depth))
	pipelineMu.Lock()
	pipelineStats.Encoded++
	pipelineStats.Bytes += uint64(n)
	pipelineStats.QueueDepth = depth
	pipelineStats.LastEncode = took
	pipelineMu.Unlock()
}

// CaptureMiss records a tick with no new frame.
func CaptureMiss() {
	captureMisses.Inc()
	pipelineMu.Lock()
	pipelineStats.Misses++
	pipelineMu.Unlock()
}

// PaceOverrun records a frame that missed its deadline.
func PaceOverrun() {
	paceOverruns.Inc()
	pipelineMu.Lock()
	pipelineStats.Overruns++
	pipelineMu.Unlock()
}

// SlotsSkipped records frame slots dropped to catch up with the clock.
func SlotsSkipped(n int) {
	if n <= 0 {
		return
	}
	skippedSlots.Add(float64(n))
	pipelineMu.Lock()
	pipelineStats.Skipped += uint64(n)
	pipelineMu.Unlock()
}

// GetPipeline returns the counters of the current recording.
func GetPipeline() PipelineSnapshot {
	pipelineMu.RLock()
	defer pipelineMu.RUnlock()
	return pipelineStats
}

// ResetPipeline clears the per-recording snapshot. Prometheus counters keep
// accumulating across recordings.
func ResetPipeline() {
	queueDepth.Set(0)
	pipelineMu.Lock()
	pipelineStats = PipelineSnapshot{}
	pipelineMu.Unlock()
}
