package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/screenrec/internal/api/models"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// PublishLogs forwards every new log entry to bus as a LogEntryEvent.
func PublishLogs(bus *events.Bus) {
	logging.SetLogCallback(func(entry logging.LogEntry) {
		bus.Publish(logEvent(entry))
	})
}

func logEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// bufferedLogs returns the ring buffer entries after seq that pass the
// filters, keeping the newest limit entries. limit <= 0 keeps everything.
func bufferedLogs(after uint64, level, module string, limit int) []events.LogEntryEvent {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return []events.LogEntryEvent{}
	}
	minRank := levelRank[level]

	out := []events.LogEntryEvent{}
	for _, entry := range buffer.Since(after) {
		if module != "" && entry.Module != module {
			continue
		}
		if levelRank[entry.Level] < minRank {
			continue
		}
		out = append(out, logEvent(entry))
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Entries held in the in-memory log buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := bufferedLogs(input.After, input.Level, input.Module, input.Limit)
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before the replay so nothing logged in between is lost;
		// entries seen in the replay are skipped by seq.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var last uint64
		for _, event := range bufferedLogs(0, "", "", 0) {
			if err := send.Data(event); err != nil {
				return
			}
			last = event.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if entry, ok := ev.(events.LogEntryEvent); ok && entry.Seq <= last {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
