package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFFmpegProgressCache(t *testing.T) {
	const rec = "desk-1"
	DeleteFFmpegMetrics(rec)

	if m := GetFFmpegMetrics(rec); m != nil {
		t.Fatal("expected nil for unknown recording")
	}

	SetFFmpegFPS(rec, 30)
	SetFFmpegDroppedFrames(rec, 5)
	SetFFmpegDuplicateFrames(rec, 2)
	SetFFmpegSpeed(rec, 1.5)

	m := GetFFmpegMetrics(rec)
	if m == nil {
		t.Fatal("expected cached progress")
	}
	want := FFmpegProgress{FPS: 30, DroppedFrames: 5, DuplicateFrames: 2, Speed: 1.5}
	if *m != want {
		t.Errorf("progress = %+v, want %+v", *m, want)
	}
	if got := testutil.ToFloat64(ffmpegSpeed.WithLabelValues(rec)); got != 1.5 {
		t.Errorf("speed gauge = %v, want 1.5", got)
	}

	m.FPS = 999
	if again := GetFFmpegMetrics(rec); again.FPS != 30 {
		t.Errorf("cache was modified through returned copy, FPS = %v", again.FPS)
	}

	DeleteFFmpegMetrics(rec)
	if GetFFmpegMetrics(rec) != nil {
		t.Error("expected nil after delete")
	}
}

func TestGetAllFFmpegMetrics(t *testing.T) {
	DeleteFFmpegMetrics("rec-a")
	DeleteFFmpegMetrics("rec-b")
	defer DeleteFFmpegMetrics("rec-a")
	defer DeleteFFmpegMetrics("rec-b")

	SetFFmpegFPS("rec-a", 25)
	SetFFmpegFPS("rec-b", 60)

	all := GetAllFFmpegMetrics()
	if all["rec-a"] == nil || all["rec-a"].FPS != 25 {
		t.Errorf("rec-a = %+v, want FPS 25", all["rec-a"])
	}
	if all["rec-b"] == nil || all["rec-b"].FPS != 60 {
		t.Errorf("rec-b = %+v, want FPS 60", all["rec-b"])
	}

	all["rec-a"].FPS = 999
	if fresh := GetAllFFmpegMetrics(); fresh["rec-a"].FPS != 25 {
		t.Error("cache was modified through returned map")
	}
}

func TestFFmpegMetricsConcurrency(t *testing.T) {
	const rec = "concurrent"
	DeleteFFmpegMetrics(rec)
	defer DeleteFFmpegMetrics(rec)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(val float64) {
			defer wg.Done()
			SetFFmpegFPS(rec, val)
			SetFFmpegDroppedFrames(rec, val)
			_ = GetFFmpegMetrics(rec)
			_ = GetAllFFmpegMetrics()
		}(float64(i))
	}
	wg.Wait()

	if GetFFmpegMetrics(rec) == nil {
		t.Error("expected progress after concurrent writes")
	}
}
