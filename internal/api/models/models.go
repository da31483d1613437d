package models

import (
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/ffmpeg"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15T14:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"windows/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models
type RecordingData struct {
	Output   string  `json:"output" example:"capture.h264" doc:"Output file path"`
	Encoder  string  `json:"encoder" example:"ffmpeg/libx264" doc:"Encoder backend"`
	Width    int     `json:"width" example:"1920" doc:"Frame width in pixels"`
	Height   int     `json:"height" example:"1080" doc:"Frame height in pixels"`
	FPS      float64 `json:"fps" example:"30" doc:"Target frame rate"`
	Frames   uint64  `json:"frames" example:"300" doc:"Total frames to record"`
	Capacity int     `json:"capacity" example:"4" doc:"Frame channel capacity"`
	Policy   string  `json:"overrun_policy" example:"extend" doc:"Overrun policy"`

	Captured   uint64  `json:"captured" example:"120" doc:"Frames pushed by the capture stage"`
	Encoded    uint64  `json:"encoded" example:"118" doc:"Frames written to the sink"`
	Misses     uint64  `json:"misses" example:"0" doc:"Capture timeouts"`
	Overruns   uint64  `json:"overruns" example:"1" doc:"Ticks that started late"`
	Skipped    uint64  `json:"skipped" example:"0" doc:"Slots skipped under the drop policy"`
	Bytes      int64   `json:"bytes" example:"1048576" doc:"Bytes written"`
	PeakQueue  int     `json:"peak_queue" example:"2" doc:"Deepest frame queue seen"`
	Elapsed    string  `json:"elapsed" example:"4.01s" doc:"Wall time so far"`
	Throughput float64 `json:"throughput_fps" example:"29.9" doc:"Effective frame rate"`
}

type PipelineMetricsData struct {
	Captured   uint64 `json:"captured" doc:"Frames captured since the last reset"`
	Encoded    uint64 `json:"encoded" doc:"Frames encoded since the last reset"`
	Misses     uint64 `json:"misses" doc:"Capture misses since the last reset"`
	Overruns   uint64 `json:"overruns" doc:"Pacing overruns since the last reset"`
	Skipped    uint64 `json:"skipped" doc:"Skipped slots since the last reset"`
	Bytes      uint64 `json:"bytes" doc:"Bytes written since the last reset"`
	QueueDepth int    `json:"queue_depth" doc:"Frames currently queued"`
	LastEncode string `json:"last_encode" example:"3.2ms" doc:"Duration of the most recent encode call"`
}

type EncoderProgressData struct {
	Recording       string  `json:"recording" example:"capture.h264" doc:"Recording the figures belong to"`
	FPS             float64 `json:"fps" example:"30" doc:"Encoder frame rate"`
	Speed           float64 `json:"speed" example:"1.01" doc:"Encoding speed relative to real time"`
	DroppedFrames   float64 `json:"dropped_frames" doc:"Frames ffmpeg dropped"`
	DuplicateFrames float64 `json:"duplicate_frames" doc:"Frames ffmpeg duplicated"`
}

type StatusData struct {
	Active    bool                  `json:"active" doc:"Whether a recording is attached"`
	Recording *RecordingData        `json:"recording,omitempty" doc:"Current or last recording"`
	Pipeline  PipelineMetricsData   `json:"pipeline" doc:"Process-wide pipeline counters"`
	Encoders  []EncoderProgressData `json:"encoders" doc:"ffmpeg progress per recording"`
}

type StatusResponse struct {
	Body StatusData
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum entries to return, newest last"`
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level to include"`
	Module string `query:"module" doc:"Only entries from this module"`
	After  uint64 `query:"after" doc:"Only entries with a seq above this one"`
}

type LogsData struct {
	Entries []events.LogEntryEvent `json:"entries" doc:"Buffered log entries"`
	Count   int                    `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Logging level models
type LoggingLevelsData struct {
	Levels map[string]string `json:"levels" doc:"Effective level per module"`
}

type LoggingLevelsResponse struct {
	Body LoggingLevelsData
}

type LoggingLevelRequest struct {
	Body struct {
		Module string `json:"module,omitempty" example:"pipeline" doc:"Module to change, empty for the global level"`
		Level  string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}

// Encoder models
type EncoderInfo struct {
	Name        string `json:"name" example:"libx264" doc:"Encoder name"`
	Description string `json:"description" example:"libx264 H.264 / AVC" doc:"Human-readable description"`
	HWAccel     bool   `json:"hwaccel" example:"false" doc:"Whether this is a hardware-accelerated encoder"`
}

type EncoderData struct {
	Binary   string        `json:"binary" example:"ffmpeg" doc:"ffmpeg binary that was queried"`
	Encoders []EncoderInfo `json:"encoders" doc:"Video encoders the binary offers"`
	Count    int           `json:"count" example:"15" doc:"Number of encoders"`
}

type EncodersResponse struct {
	Body EncoderData
}

// Options models for FFmpeg configuration
type OptionsData struct {
	Options []ffmpeg.Option `json:"options" doc:"All available FFmpeg options with metadata"`
}

type OptionsResponse struct {
	Body OptionsData
}
