package logging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "screenrec"

// JournalHandler sends records to the systemd journal with each attribute
// as a structured field (MODULE, STAGE, SEQ, ...).
type JournalHandler struct {
	level slog.Leveler
	state attrState
	send  func(message string, priority journal.Priority, fields map[string]string) error
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}
	fields["MODULE"] = h.state.each(r, func(groups []string, a slog.Attr) {
		journalFields(fields, groups, a)
	})

	if err := h.send(r.Message, priority, fields); err != nil {
		return fmt.Errorf("journal send: %w", err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{level: h.level, state: h.state.withAttrs(attrs), send: h.send}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	return &JournalHandler{level: h.level, state: h.state.withGroup(name), send: h.send}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalFields adds a to fields under a journal-safe key: group path
// joined by underscores, upper case, only [A-Z0-9_], not starting with _.
func journalFields(fields map[string]string, groups []string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			journalFields(fields, append(slices.Clip(groups), a.Key), ga)
		}
		return
	}

	key := journalKey(append(slices.Clip(groups), a.Key))
	if key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		fields[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			fields[key] = err.Error()
			return
		}
		fields[key] = v.String()
	default:
		fields[key] = v.String()
	}
}

func journalKey(path []string) string {
	var sb strings.Builder
	for i, part := range path {
		if i > 0 {
			sb.WriteByte('_')
		}
		for _, c := range strings.ToUpper(part) {
			if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
				sb.WriteRune(c)
			} else {
				sb.WriteByte('_')
			}
		}
	}
	return strings.TrimLeft(sb.String(), "_")
}

// IsJournalAvailable reports whether the systemd journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
