package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// testOptions mirrors the shape of the record options.
type testOptions struct {
	Config string `help:"Config file path"`

	Output     string        `help:"Output file" short:"o" default:"capture.h264" toml:"record.output" env:"OUTPUT"`
	FPS        float64       `help:"Frame rate" default:"30" toml:"record.fps" env:"FPS"`
	Duration   time.Duration `help:"Recording length" default:"10s" toml:"record.duration" env:"DURATION"`
	Frames     uint64        `help:"Frame count" toml:"record.frames" env:"FRAMES"`
	Capacity   int           `help:"Queue depth" default:"4" toml:"pipeline.capacity" env:"CAPACITY"`
	Quiet      bool          `help:"Less output" toml:"record.quiet" env:"QUIET"`
	Options    []string      `help:"ffmpeg options" toml:"encoder.options" env:"OPTIONS"`
	FFmpegPath string        `help:"ffmpeg binary" name:"ffmpeg-path" default:"ffmpeg" toml:"encoder.ffmpeg_path" env:"FFMPEG_PATH"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screenrec.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newOptions(t *testing.T) (*testOptions, *cobra.Command) {
	t.Helper()
	opts := &testOptions{}
	cmd := &cobra.Command{Use: "record"}
	if err := RegisterFlags(cmd.Flags(), opts); err != nil {
		t.Fatal(err)
	}
	return opts, cmd
}

func TestRegisterFlagsDefaults(t *testing.T) {
	opts, cmd := newOptions(t)

	if opts.Output != "capture.h264" || opts.FPS != 30 || opts.Duration != 10*time.Second || opts.Capacity != 4 {
		t.Errorf("defaults not applied: %+v", opts)
	}
	for _, name := range []string{"config", "output", "fps", "duration", "frames", "capacity", "quiet", "options", "ffmpeg-path"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
	if f := cmd.Flags().ShorthandLookup("o"); f == nil || f.Name != "output" {
		t.Errorf("shorthand -o = %v, want output", f)
	}
}

func TestRegisterFlagsRejectsUnsupportedField(t *testing.T) {
	opts := &struct {
		Ratio float32 `help:"unsupported"`
	}{}
	if err := RegisterFlags(pflag.NewFlagSet("x", pflag.ContinueOnError), opts); err == nil {
		t.Fatal("RegisterFlags accepted a float32 field")
	}
}

func TestLoadConfigFromTOML(t *testing.T) {
	opts, cmd := newOptions(t)
	opts.Config = writeConfig(t, `
[record]
output = "demo.y4m"
fps = 59.94
duration = "1m30s"
frames = 120
quiet = true

[pipeline]
capacity = 2

[encoder]
options = ["a", "b"]
ffmpeg_path = "/opt/ffmpeg/bin/ffmpeg"
`)

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := testOptions{
		Config:     opts.Config,
		Output:     "demo.y4m",
		FPS:        59.94,
		Duration:   90 * time.Second,
		Frames:     120,
		Capacity:   2,
		Quiet:      true,
		Options:    []string{"a", "b"},
		FFmpegPath: "/opt/ffmpeg/bin/ffmpeg",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got %+v\nwant %+v", *opts, want)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	opts, cmd := newOptions(t)
	opts.Config = writeConfig(t, `
[record]
output = "file.h264"
fps = 24
duration = 5
`)
	t.Setenv("SCREENREC_FPS", "50")
	t.Setenv("SCREENREC_DURATION", "2s")
	if err := cmd.Flags().Parse([]string{"--duration", "3s"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Output != "file.h264" {
		t.Errorf("Output = %q, want value from file", opts.Output)
	}
	if opts.FPS != 50 {
		t.Errorf("FPS = %v, want env override 50", opts.FPS)
	}
	if opts.Duration != 3*time.Second {
		t.Errorf("Duration = %s, want flag value 3s", opts.Duration)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	opts, _ := newOptions(t)
	t.Setenv("SCREENREC_OUTPUT", "env.h264")
	t.Setenv("SCREENREC_FRAMES", "600")
	t.Setenv("SCREENREC_QUIET", "true")
	t.Setenv("SCREENREC_OPTIONS", " x , y ")

	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Output != "env.h264" || opts.Frames != 600 || !opts.Quiet {
		t.Errorf("env not applied: %+v", opts)
	}
	if !reflect.DeepEqual(opts.Options, []string{"x", "y"}) {
		t.Errorf("Options = %v, want [x y]", opts.Options)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		env    map[string]string
	}{
		{name: "invalid toml", config: "[record\nfps = "},
		{name: "wrong toml type", config: "[record]\nquiet = 3\n"},
		{name: "negative frames", config: "[record]\nframes = -1\n"},
		{name: "bad env duration", env: map[string]string{"SCREENREC_DURATION": "soon"}},
		{name: "bad env float", env: map[string]string{"SCREENREC_FPS": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, cmd := newOptions(t)
			if tt.config != "" {
				opts.Config = writeConfig(t, tt.config)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if err := LoadConfig(opts, cmd); err == nil {
				t.Error("LoadConfig succeeded, want error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts, cmd := newOptions(t)
	opts.Config = filepath.Join(t.TempDir(), "absent.toml")

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
	if opts.Output != "capture.h264" {
		t.Errorf("Output = %q, want default", opts.Output)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Output":         "output",
		"FPS":            "fps",
		"PixelFormat":    "pixel-format",
		"CaptureTimeout": "capture-timeout",
		"LoggingAPI":     "logging-api",
		"GOP":            "gop",
		"MetricsAddr":    "metrics-addr",
		"HTTPAddr":       "http-addr",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"record": map[string]any{
			"encoder": map[string]any{"codec": "libx264"},
			"fps":     int64(30),
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"record.fps", int64(30)},
		{"record.encoder.codec", "libx264"},
		{"nonexistent", nil},
		{"record.nonexistent", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValueNumbers(t *testing.T) {
	type numbers struct {
		Rate    float64
		Wait    time.Duration
		Count   uint64
		Workers int
	}
	s := &numbers{}
	v := reflect.ValueOf(s).Elem()

	steps := []struct {
		field string
		value any
	}{
		{"Rate", int64(25)},
		{"Wait", 1.5},
		{"Count", int64(7)},
		{"Workers", "3"},
	}
	for _, st := range steps {
		if err := setFieldValue(v.FieldByName(st.field), st.value); err != nil {
			t.Fatalf("%s: %v", st.field, err)
		}
	}
	if s.Rate != 25 || s.Wait != 1500*time.Millisecond || s.Count != 7 || s.Workers != 3 {
		t.Errorf("got %+v", *s)
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
pipeline = "debug"
capture = "error"
`)

	cfg, err := LoadLoggingConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("global = %q/%q, want warn/json", cfg.Level, cfg.Format)
	}
	want := map[string]string{"pipeline": "debug", "capture": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("modules = %v, want %v", cfg.Modules, want)
	}

	if _, err := LoadLoggingConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing file loaded without error")
	}
}
