package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineSnapshot(t *testing.T) {
	ResetPipeline()
	capturedBefore := testutil.ToFloat64(framesCaptured)
	bytesBefore := testutil.ToFloat64(bytesWritten)

	FrameCaptured(1)
	FrameCaptured(2)
	FrameEncoded(3*time.Millisecond, 1200, 1)
	CaptureMiss()
	PaceOverrun()
	SlotsSkipped(3)
	SlotsSkipped(0)

	got := GetPipeline()
	want := PipelineSnapshot{
		Captured:   2,
		Encoded:    1,
		Misses:     1,
		Overruns:   1,
		Skipped:    3,
		Bytes:      1200,
		QueueDepth: 1,
		LastEncode: 3 * time.Millisecond,
	}
	if got != want {
		t.Errorf("snapshot = %+v, want %+v", got, want)
	}

	if d := testutil.ToFloat64(framesCaptured) - capturedBefore; d != 2 {
		t.Errorf("frames_captured_total grew by %v, want 2", d)
	}
	if d := testutil.ToFloat64(bytesWritten) - bytesBefore; d != 1200 {
		t.Errorf("bytes_written_total grew by %v, want 1200", d)
	}
	if v := testutil.ToFloat64(queueDepth); v != 1 {
		t.Errorf("queue_depth = %v, want 1", v)
	}

	ResetPipeline()
	if got := GetPipeline(); got != (PipelineSnapshot{}) {
		t.Errorf("snapshot after reset = %+v", got)
	}
	if v := testutil.ToFloat64(queueDepth); v != 0 {
		t.Errorf("queue_depth after reset = %v", v)
	}
}
