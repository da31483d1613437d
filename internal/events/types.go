package events

// Event type constants for kelindar/event.
const (
	TypeRecordingStarted uint32 = iota + 1
	TypeFrameEncoded
	TypeCaptureMiss
	TypeRecordingFinished
	TypeEncoderMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RecordingStartedEvent is published once both pipeline stages are running.
type RecordingStartedEvent struct {
	Output    string  `json:"output" example:"capture.h264" doc:"Output file path"`
	Width     int     `json:"width" example:"1920" doc:"Frame width in pixels"`
	Height    int     `json:"height" example:"1080" doc:"Frame height in pixels"`
	FPS       float64 `json:"fps" example:"30" doc:"Target frame rate"`
	Frames    uint64  `json:"frames" example:"300" doc:"Total frames to record"`
	Capacity  int     `json:"capacity" example:"4" doc:"Frame channel capacity"`
	Encoder   string  `json:"encoder" example:"ffmpeg" doc:"Encoder backend"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Start timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// FrameEncodedEvent reports progress after each frame reaches the sink.
type FrameEncodedEvent struct {
	Seq        uint64 `json:"seq" example:"41" doc:"Sequence number of the encoded frame"`
	Frames     uint64 `json:"frames" example:"300" doc:"Total frames to record"`
	Bytes      int64  `json:"bytes" example:"1048576" doc:"Bytes written to the sink so far"`
	QueueDepth int    `json:"queue_depth" example:"2" doc:"Frames waiting in the channel"`
	Last       bool   `json:"last" doc:"Whether this was the final frame"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:01Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameEncodedEvent.
func (e FrameEncodedEvent) Type() uint32 { return TypeFrameEncoded }

// CaptureMissEvent is published when a capture attempt times out.
type CaptureMissEvent struct {
	Tick      uint64 `json:"tick" example:"17" doc:"Pacing tick that produced no frame"`
	Misses    uint64 `json:"misses" example:"3" doc:"Total misses so far"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:01Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureMissEvent.
func (e CaptureMissEvent) Type() uint32 { return TypeCaptureMiss }

// RecordingFinishedEvent is published when the pipeline has shut down.
type RecordingFinishedEvent struct {
	Output    string  `json:"output" example:"capture.h264" doc:"Output file path"`
	Frames    uint64  `json:"frames" example:"300" doc:"Frames encoded"`
	Misses    uint64  `json:"misses" example:"0" doc:"Capture timeouts"`
	Overruns  uint64  `json:"overruns" example:"2" doc:"Ticks that started late"`
	Skipped   uint64  `json:"skipped" example:"0" doc:"Slots skipped under the drop policy"`
	Bytes     int64   `json:"bytes" example:"1048576" doc:"Bytes written"`
	Elapsed   string  `json:"elapsed" example:"10.02s" doc:"Wall time of the run"`
	FPS       float64 `json:"fps" example:"29.94" doc:"Effective frame rate"`
	Error     string  `json:"error,omitempty" doc:"Error that ended the run, if any"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:10Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingFinishedEvent.
func (e RecordingFinishedEvent) Type() uint32 { return TypeRecordingFinished }

// EncoderMetricsEvent carries ffmpeg progress figures.
type EncoderMetricsEvent struct {
	EventType       string `json:"type"`
	Recording       string `json:"recording"`
	FPS             string `json:"fps"`
	Speed           string `json:"speed"`
	DroppedFrames   string `json:"dropped_frames"`
	DuplicateFrames string `json:"duplicate_frames"`
}

// Type returns the event type identifier for EncoderMetricsEvent.
func (e EncoderMetricsEvent) Type() uint32 { return TypeEncoderMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"pipeline" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
