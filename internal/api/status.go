package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/screenrec/internal/api/models"
	"github.com/smazurov/screenrec/internal/metrics"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Progress of the attached recording, pipeline counters and ffmpeg progress",
		Tags:        []string{"status"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.status()}, nil
	})
}

func (s *Server) status() models.StatusData {
	p := metrics.GetPipeline()
	data := models.StatusData{
		Pipeline: models.PipelineMetricsData{
			Captured:   p.Captured,
			Encoded:    p.Encoded,
			Misses:     p.Misses,
			Overruns:   p.Overruns,
			Skipped:    p.Skipped,
			Bytes:      p.Bytes,
			QueueDepth: p.QueueDepth,
			LastEncode: p.LastEncode.String(),
		},
		Encoders: []models.EncoderProgressData{},
	}

	all := metrics.GetAllFFmpegMetrics()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := all[name]
		data.Encoders = append(data.Encoders, models.EncoderProgressData{
			Recording:       name,
			FPS:             m.FPS,
			Speed:           m.Speed,
			DroppedFrames:   m.DroppedFrames,
			DuplicateFrames: m.DuplicateFrames,
		})
	}

	if r := s.currentRecorder(); r != nil {
		cfg, st := r.Config(), r.Progress()
		data.Active = true
		data.Recording = &models.RecordingData{
			Output:     cfg.Output,
			Encoder:    cfg.EncoderName,
			Width:      cfg.Width,
			Height:     cfg.Height,
			FPS:        cfg.FPS,
			Frames:     cfg.Frames,
			Capacity:   cfg.Capacity,
			Policy:     cfg.Policy.String(),
			Captured:   st.Captured,
			Encoded:    st.Encoded,
			Misses:     st.Misses,
			Overruns:   st.Overruns,
			Skipped:    st.Skipped,
			Bytes:      st.Bytes,
			PeakQueue:  st.Peak,
			Elapsed:    st.Elapsed.Round(time.Millisecond).String(),
			Throughput: st.FPS(),
		}
	}
	return data
}
