package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/screenrec/internal/api"
	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/config"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/encoder"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/ffmpeg"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/metrics/exporters"
	"github.com/smazurov/screenrec/internal/pacing"
	"github.com/smazurov/screenrec/internal/pipeline"
	"github.com/smazurov/screenrec/internal/sink"
	"github.com/spf13/cobra"
)

// RecordOptions are the flags of the record command. Each field is also
// read from the config file (toml tag) and from SCREENREC_<env>.
type RecordOptions struct {
	Config string `help:"Path to configuration file" short:"c" default:"screenrec.toml"`

	// Capture
	Source  string `help:"Capture source (screen, dxgi, synthetic)" default:"screen" toml:"capture.source" env:"CAPTURE_SOURCE"`
	Display int    `help:"Display index to capture" default:"0" toml:"capture.display" env:"CAPTURE_DISPLAY"`
	Width   int    `help:"Capture width, 0 for the display width" default:"0" toml:"capture.width" env:"CAPTURE_WIDTH"`
	Height  int    `help:"Capture height, 0 for the display height" default:"0" toml:"capture.height" env:"CAPTURE_HEIGHT"`

	// Timing
	FPS            float64       `help:"Target frame rate" default:"30" toml:"record.fps" env:"FPS"`
	Duration       time.Duration `help:"Recording length" short:"d" default:"10s" toml:"record.duration" env:"DURATION"`
	Frames         uint64        `help:"Frame count, overrides --duration" default:"0" toml:"record.frames" env:"FRAMES"`
	OverrunPolicy  string        `help:"What a late frame does to the schedule (extend, drop)" default:"extend" toml:"record.overrun_policy" env:"OVERRUN_POLICY"`
	CaptureTimeout time.Duration `help:"Per-capture timeout, 0 for one frame interval" default:"0s" toml:"record.capture_timeout" env:"CAPTURE_TIMEOUT"`
	StallTimeout   time.Duration `help:"Fail when a stage makes no progress this long, 0 to wait forever" default:"0s" toml:"record.stall_timeout" env:"STALL_TIMEOUT"`
	Capacity       int           `help:"Frames in flight between capture and encode (1-4)" default:"4" toml:"record.capacity" env:"CAPACITY"`

	// Conversion
	Converter   string `help:"Colour converter (cpu, blit)" default:"cpu" toml:"convert.converter" env:"CONVERTER"`
	PixelFormat string `help:"Encoder input format (i420, yv12, nv12)" default:"i420" toml:"convert.pixel_format" env:"PIXEL_FORMAT"`

	// Encoding
	Encoder        string        `help:"Encoder backend (ffmpeg, y4m)" default:"ffmpeg" toml:"encoder.kind" env:"ENCODER"`
	Codec          string        `help:"ffmpeg video codec" default:"libx264" toml:"encoder.codec" env:"CODEC"`
	Bitrate        string        `help:"Target bitrate, e.g. 4M" toml:"encoder.bitrate" env:"BITRATE"`
	Preset         string        `help:"Encoder preset" toml:"encoder.preset" env:"PRESET"`
	GOP            int           `help:"Keyframe interval in frames, 0 for the codec default" default:"0" toml:"encoder.gop" env:"GOP"`
	FFmpegPath     string        `help:"ffmpeg binary" name:"ffmpeg-path" default:"ffmpeg" toml:"encoder.ffmpeg_path" env:"FFMPEG_PATH"`
	FFmpegOptions  []string      `help:"ffmpeg option keys, see /api/options" name:"ffmpeg-options" toml:"encoder.options" env:"FFMPEG_OPTIONS"`
	ProgressSocket string        `help:"Unix socket ffmpeg reports progress on, empty to disable" toml:"encoder.progress_socket" env:"PROGRESS_SOCKET"`
	StopTimeout    time.Duration `help:"How long ffmpeg gets to exit at each shutdown step before it is killed" default:"5s" toml:"encoder.stop_timeout" env:"ENCODER_STOP_TIMEOUT"`

	Output string `help:"Output file, - for stdout" short:"o" default:"capture.h264" toml:"record.output" env:"OUTPUT"`

	// Status API
	MetricsAddr  string `help:"Serve the status API and /metrics on this address, empty to disable" toml:"server.metrics_addr" env:"METRICS_ADDR"`
	AuthUsername string `help:"Basic auth username for the status API" toml:"server.auth_username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password for the status API" toml:"server.auth_password" env:"AUTH_PASSWORD"`

	// Logging
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline string `help:"Pipeline logging level" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingCapture  string `help:"Capture logging level" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingEncoder  string `help:"Encoder logging level" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingFFmpeg   string `help:"ffmpeg output logging level" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI      string `help:"API logging level" toml:"logging.api" env:"LOGGING_API"`
}

// Logging returns the logging configuration the options describe. Module
// levels left empty follow the global level.
func (o *RecordOptions) Logging() logging.Config {
	cfg := logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: make(map[string]string),
	}
	for module, level := range map[string]string{
		"pipeline": o.LoggingPipeline,
		"capture":  o.LoggingCapture,
		"encoder":  o.LoggingEncoder,
		"ffmpeg":   o.LoggingFFmpeg,
		"api":      o.LoggingAPI,
	} {
		if level != "" {
			cfg.Modules[module] = level
		}
	}
	return cfg
}

// Settings parses the string options into pipeline settings.
func (o *RecordOptions) Settings() (pipeline.Settings, error) {
	source, err := capture.ParseKind(o.Source)
	if err != nil {
		return pipeline.Settings{}, err
	}
	policy, err := pacing.ParsePolicy(o.OverrunPolicy)
	if err != nil {
		return pipeline.Settings{}, err
	}
	conv, err := convert.ParseKind(o.Converter)
	if err != nil {
		return pipeline.Settings{}, err
	}
	pixFmt, err := frame.ParseFormat(o.PixelFormat)
	if err != nil {
		return pipeline.Settings{}, err
	}
	enc, err := encoder.ParseKind(o.Encoder)
	if err != nil {
		return pipeline.Settings{}, err
	}

	var ffOpts []ffmpeg.OptionType
	if len(o.FFmpegOptions) > 0 {
		if ffOpts, err = ffmpeg.ParseOptions(o.FFmpegOptions); err != nil {
			return pipeline.Settings{}, err
		}
	} else {
		ffOpts = ffmpeg.GetDefaultOptions()
	}
	if err := ffmpeg.ValidateOptions(ffOpts); err != nil {
		return pipeline.Settings{}, err
	}

	return pipeline.Settings{
		Source:         source,
		Display:        o.Display,
		Width:          o.Width,
		Height:         o.Height,
		FPS:            o.FPS,
		Duration:       o.Duration,
		Frames:         o.Frames,
		Policy:         policy,
		CaptureTimeout: o.CaptureTimeout,
		StallTimeout:   o.StallTimeout,
		Capacity:       o.Capacity,
		Converter:      conv,
		PixelFormat:    pixFmt,
		Encoder:        enc,
		FFmpegPath:     o.FFmpegPath,
		Codec:          o.Codec,
		Bitrate:        o.Bitrate,
		Preset:         o.Preset,
		GOP:            o.GOP,
		FFmpegOptions:  ffOpts,
		ProgressSocket: o.ProgressSocket,
		StopTimeout:    o.StopTimeout,
		Output:         o.Output,
	}, nil
}

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	opts := &RecordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the screen to a file",
		Long: `Captures the selected display at a fixed frame rate, converts each frame to YUV ` +
			`and encodes it to the output file. At most --capacity frames are in flight between ` +
			`capture and encode. Ctrl-C stops the recording cleanly and keeps what was encoded.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return err
			}
			logging.Initialize(opts.Logging())
			logger := logging.GetLogger("main")

			if watcher := watchConfig(opts.Config, logger); watcher != nil {
				defer watcher.Stop()
			}

			settings, err := opts.Settings()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary := routeOutput(&settings, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return Record(ctx, settings, opts, summary, logger)
		},
	}

	if err := config.RegisterFlags(cmd.Flags(), opts); err != nil {
		panic(err)
	}
	return cmd
}

// Record runs one recording and prints its summary to out. Cancelling ctx
// stops the recording; that is not reported as an error.
func Record(ctx context.Context, settings pipeline.Settings, opts *RecordOptions, out io.Writer, logger *slog.Logger) error {
	bus := events.New()

	driver, err := pipeline.Open(settings, bus)
	if err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		server, stop := startStatusServer(ctx, opts, bus, logger)
		server.SetRecorder(driver)
		defer stop()
	}

	stats, err := driver.Run(ctx)
	printSummary(out, driver.Config(), stats)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// routeOutput returns where the summary goes. A stream written to stdout
// owns it, so the summary moves to stderr.
func routeOutput(settings *pipeline.Settings, stdout, stderr io.Writer) io.Writer {
	if settings.Output != sink.Stdout {
		return stdout
	}
	settings.Stdout = stdout
	return stderr
}

// startStatusServer serves the API until the returned stop func is called.
func startStatusServer(ctx context.Context, opts *RecordOptions, bus *events.Bus, logger *slog.Logger) (*api.Server, func()) {
	api.PublishLogs(bus)
	server := api.NewServer(&api.Options{
		AuthUsername:   opts.AuthUsername,
		AuthPassword:   opts.AuthPassword,
		EventBus:       bus,
		FFmpegPath:     opts.FFmpegPath,
		MetricsHandler: exporters.HTTPHandler(),
	})

	sse := exporters.NewSSEExporter(bus)
	sse.Start(ctx)

	logger.Info("Serving status API", "addr", opts.MetricsAddr)
	go func() {
		if err := server.Start(opts.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status API stopped", "error", err)
		}
	}()
	return server, func() {
		sse.Stop()
		if err := server.Stop(); err != nil {
			logger.Warn("Error stopping status API", "error", err)
		}
		logging.SetLogCallback(nil)
	}
}

// watchConfig hot-reloads logging levels from path. A missing file or a
// watch failure only disables reloading.
func watchConfig(path string, logger *slog.Logger) *config.Watcher[logging.Config] {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.WatchLogging(path, logging.GetLogger("config"), 0)
	if err != nil {
		logger.Warn("Config reload disabled", "path", path, "error", err)
		return nil
	}
	return w
}

func printSummary(out io.Writer, cfg pipeline.Config, st pipeline.Stats) {
	fmt.Fprintf(out, "%s: %d/%d frames, %d bytes in %s (%.2f fps)\n",
		cfg.Output, st.Encoded, cfg.Frames, st.Bytes, st.Elapsed.Round(time.Millisecond), st.FPS())
	if st.Misses > 0 || st.Overruns > 0 || st.Skipped > 0 {
		fmt.Fprintf(out, "  capture misses %d, overruns %d, skipped slots %d, peak queue %d/%d\n",
			st.Misses, st.Overruns, st.Skipped, st.Peak, cfg.Capacity)
	}
}
