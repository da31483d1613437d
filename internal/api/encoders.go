package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/screenrec/internal/api/models"
	"github.com/smazurov/screenrec/internal/ffmpeg"
)

const listEncodersTimeout = 10 * time.Second

// convertEncoders converts ffmpeg encoder entries to API response types.
func convertEncoders(binary string, list []ffmpeg.Encoder) models.EncoderData {
	infos := make([]models.EncoderInfo, len(list))
	for i, e := range list {
		infos[i] = models.EncoderInfo{
			Name:        e.Name,
			Description: e.Description,
			HWAccel:     e.HWAccel,
		}
	}
	return models.EncoderData{
		Binary:   binary,
		Encoders: infos,
		Count:    len(infos),
	}
}

// registerEncoderRoutes registers all encoder-related endpoints
func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List Encoders",
		Description: "List the video encoders offered by the configured ffmpeg binary",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.EncodersResponse, error) {
		binary := s.options.FFmpegPath
		if binary == "" {
			binary = ffmpeg.DefaultBinary
		}
		ctx, cancel := context.WithTimeout(ctx, listEncodersTimeout)
		defer cancel()

		list, err := ffmpeg.ListEncoders(ctx, binary)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("ffmpeg is not available", err)
		}
		return &models.EncodersResponse{Body: convertEncoders(binary, list)}, nil
	})
}
