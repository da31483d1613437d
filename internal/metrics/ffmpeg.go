// Package metrics provides Prometheus metrics for the capture pipeline and
// the ffmpeg encoder progress collector.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "screenrec",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Encoding rate reported by ffmpeg",
	}, []string{"recording"})

	ffmpegDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "screenrec",
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by ffmpeg",
	}, []string{"recording"})

	ffmpegDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "screenrec",
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Frames duplicated by ffmpeg",
	}, []string{"recording"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "screenrec",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	}, []string{"recording"})

	// Local cache read by the status API and the event exporter.
	ffmpegCache   = make(map[string]*FFmpegProgress)
	ffmpegCacheMu sync.RWMutex
)

// FFmpegProgress holds current metric values for a recording.
type FFmpegProgress struct {
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetFFmpegFPS sets the current FPS for a recording.
func SetFFmpegFPS(recording string, fps float64) {
	ffmpegFPS.WithLabelValues(recording).Set(fps)
	updateCache(recording, func(m *FFmpegProgress) { m.FPS = fps })
}

// SetFFmpegDroppedFrames sets the dropped frames count for a recording.
func SetFFmpegDroppedFrames(recording string, count float64) {
	ffmpegDroppedFrames.WithLabelValues(recording).Set(count)
	updateCache(recording, func(m *FFmpegProgress) { m.DroppedFrames = count })
}

// SetFFmpegDuplicateFrames sets the duplicate frames count for a recording.
func SetFFmpegDuplicateFrames(recording string, count float64) {
	ffmpegDuplicateFrames.WithLabelValues(recording).Set(count)
	updateCache(recording, func(m *FFmpegProgress) { m.DuplicateFrames = count })
}

// SetFFmpegSpeed sets the processing speed for a recording.
func SetFFmpegSpeed(recording string, speed float64) {
	ffmpegSpeed.WithLabelValues(recording).Set(speed)
	updateCache(recording, func(m *FFmpegProgress) { m.Speed = speed })
}

// DeleteFFmpegMetrics removes all metrics for a recording.
func DeleteFFmpegMetrics(recording string) {
	ffmpegFPS.DeleteLabelValues(recording)
	ffmpegDroppedFrames.DeleteLabelValues(recording)
	ffmpegDuplicateFrames.DeleteLabelValues(recording)
	ffmpegSpeed.DeleteLabelValues(recording)

	ffmpegCacheMu.Lock()
	delete(ffmpegCache, recording)
	ffmpegCacheMu.Unlock()
}

// GetFFmpegMetrics returns current metric values for a recording.
func GetFFmpegMetrics(recording string) *FFmpegProgress {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	m, ok := ffmpegCache[recording]
	if !ok {
		return nil
	}
	dup := *m
	return &dup
}

// GetAllFFmpegMetrics returns metrics for all active recordings.
func GetAllFFmpegMetrics() map[string]*FFmpegProgress {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	result := make(map[string]*FFmpegProgress, len(ffmpegCache))
	for id, m := range ffmpegCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(recording string, update func(*FFmpegProgress)) {
	ffmpegCacheMu.Lock()
	defer ffmpegCacheMu.Unlock()
	if _, ok := ffmpegCache[recording]; !ok {
		ffmpegCache[recording] = &FFmpegProgress{}
	}
	update(ffmpegCache[recording])
}
