package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

func resetLogging() {
	current = &registry{modules: make(map[string]*moduleLogger)}
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"pipeline": "debug",
			"ffmpeg":   "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"pipeline", true, true, true},
		{"ffmpeg", false, false, true},
		{"capture", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetLogging()

	before := GetLogger("encoder")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"encoder": "debug"}})

	after := GetLogger("encoder")
	if before != after {
		t.Error("logger should be cached across Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should follow the module level set by Initialize")
	}
}

func TestSetLevel(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info", Modules: map[string]string{"ffmpeg": "error"}})

	pipeline := GetLogger("pipeline")
	ffmpeg := GetLogger("ffmpeg")
	ctx := context.Background()

	if err := SetLevel("", "debug"); err != nil {
		t.Fatal(err)
	}
	if !pipeline.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("global debug should reach modules without overrides")
	}
	if ffmpeg.Handler().Enabled(ctx, slog.LevelWarn) {
		t.Error("global change must not touch a pinned module")
	}

	if err := SetLevel("ffmpeg", "warn"); err != nil {
		t.Fatal(err)
	}
	if !ffmpeg.Handler().Enabled(ctx, slog.LevelWarn) {
		t.Error("module override should apply immediately")
	}
	if got := Levels()["ffmpeg"]; got != "warn" {
		t.Errorf("Levels()[ffmpeg] = %q, want warn", got)
	}

	if err := SetLevel("pipeline", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "debug", Output: io.Discard})

	var seen []LogEntry
	SetLogCallback(func(e LogEntry) { seen = append(seen, e) })
	defer SetLogCallback(nil)

	logger := slog.New(NewBufferHandler(slog.LevelInfo)).With("module", "pipeline")
	logger.Debug("dropped")
	logger.WithGroup("frame").Info("captured", "seq", 3, "late", 2*time.Millisecond, "error", errors.New("boom"))

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("buffer has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "pipeline" || e.Level != "info" || e.Message != "captured" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attributes["frame.seq"] != int64(3) {
		t.Errorf("frame.seq = %v", e.Attributes["frame.seq"])
	}
	if e.Attributes["frame.late"] != "2ms" || e.Attributes["frame.error"] != "boom" {
		t.Errorf("attributes = %v", e.Attributes)
	}
	if len(seen) != 1 || seen[0].Seq != e.Seq || e.Seq == 0 {
		t.Errorf("callback saw %+v, want the buffered entry", seen)
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := range 5 {
		if e := rb.Write(LogEntry{Message: string(rune('a' + i))}); e.Seq != uint64(i+1) {
			t.Fatalf("entry %d got seq %d", i, e.Seq)
		}
	}
	entries := rb.ReadAll()
	if rb.Count() != 3 || len(entries) != 3 {
		t.Fatalf("count = %d, len = %d", rb.Count(), len(entries))
	}
	if got := messages(entries); got != "cde" {
		t.Errorf("order = %q, want cde", got)
	}
	if rb.LastSeq() != 5 {
		t.Errorf("LastSeq = %d, want 5", rb.LastSeq())
	}
}

func TestRingBufferSince(t *testing.T) {
	rb := NewRingBuffer(4)
	if got := rb.Since(0); got != nil {
		t.Errorf("empty buffer returned %v", got)
	}
	for i := range 6 {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}

	tests := []struct {
		seq  uint64
		want string
	}{
		{0, "cdef"}, // a and b were overwritten
		{1, "cdef"},
		{3, "def"},
		{5, "f"},
		{6, ""},
		{9, ""},
	}
	for _, tt := range tests {
		if got := messages(rb.Since(tt.seq)); got != tt.want {
			t.Errorf("Since(%d) = %q, want %q", tt.seq, got, tt.want)
		}
	}
}

func messages(entries []LogEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func TestFanoutDebugOutput(t *testing.T) {
	var buf bytes.Buffer
	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(Fanout{debugHandler, infoHandler}).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("both")

	output := buf.String()
	if n := strings.Count(output, "debug only message"); n != 1 {
		t.Errorf("debug message written %d times, want 1. Output: %s", n, output)
	}
	if n := strings.Count(output, "both"); n != 2 {
		t.Errorf("info message written %d times, want 2. Output: %s", n, output)
	}
}

func TestLogsGoToConfiguredOutput(t *testing.T) {
	resetLogging()
	var buf bytes.Buffer
	Initialize(Config{Level: "info", Format: "json", Output: &buf})

	GetLogger("sink").Info("wrote packet", "bytes", 512)

	out := buf.String()
	if !strings.Contains(out, `"msg":"wrote packet"`) || !strings.Contains(out, `"module":"sink"`) {
		t.Errorf("json output = %q", out)
	}
}

func TestJournalFields(t *testing.T) {
	var got map[string]string
	var gotPriority journal.Priority
	h := NewJournalHandler(slog.LevelDebug)
	h.send = func(_ string, p journal.Priority, fields map[string]string) error {
		got, gotPriority = fields, p
		return nil
	}

	logger := slog.New(h).With("module", "pipeline")
	logger.WithGroup("frame").Warn("late", "seq", 9, "late-by", 3*time.Millisecond, "_hidden", true)

	if gotPriority != journal.PriWarning {
		t.Errorf("priority = %v", gotPriority)
	}
	want := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
		"MODULE":            "pipeline",
		"FRAME_SEQ":         "9",
		"FRAME_LATE_BY":     "3ms",
		"FRAME__HIDDEN":     "true",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q (fields %v)", k, got[k], v, got)
		}
	}
}

func TestJournalKey(t *testing.T) {
	tests := map[string][]string{
		"STAGE":       {"stage"},
		"FRAME_SEQ":   {"frame", "seq"},
		"OUTPUT_PATH": {"output.path"},
		"HIDDEN":      {"_hidden"},
		"":            {"__"},
		"A_B2":        {"a", "b2"},
	}
	for want, path := range tests {
		if got := journalKey(path); got != want {
			t.Errorf("journalKey(%v) = %q, want %q", path, got, want)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"invalid", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseLevel(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseLevel(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAttrGroupsFollowWithOrder(t *testing.T) {
	state := attrState{}.
		withAttrs([]slog.Attr{slog.String("module", "pipeline")}).
		withGroup("frame").
		withAttrs([]slog.Attr{slog.Int("seq", 4)}).
		withGroup("timing")

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "late", 0)
	r.AddAttrs(slog.Duration("by", time.Millisecond))

	got := map[string]string{}
	module := state.each(r, func(groups []string, a slog.Attr) {
		got[strings.Join(slices.Concat(groups, []string{a.Key}), ".")] = a.Value.String()
	})

	if module != "pipeline" {
		t.Errorf("module = %q, want pipeline", module)
	}
	want := map[string]string{"frame.seq": "4", "frame.timing.by": "1ms"}
	if len(got) != len(want) {
		t.Fatalf("attrs = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}
