package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/screenrec/internal/events"
)

// registerSSERoutes registers the recording event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Recording Events",
		Description: "Real-time stream of recording lifecycle, progress and capture miss events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"recording-started":  events.RecordingStartedEvent{},
		"frame-encoded":      events.FrameEncodedEvent{},
		"capture-miss":       events.CaptureMissEvent{},
		"recording-finished": events.RecordingFinishedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.RecordingStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameEncodedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureMissEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingFinishedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
