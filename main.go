package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/screenrec/cmd"
	"github.com/smazurov/screenrec/internal/api"
	"github.com/smazurov/screenrec/internal/config"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/metrics/exporters"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"screenrec.toml"`

	// Server settings
	Port          string `help:"Address to listen on" short:"p" default:":8090" toml:"server.addr" env:"SERVER_ADDR"`
	EncoderBinary string `help:"ffmpeg binary queried by /api/encoders" default:"ffmpeg" toml:"encoder.ffmpeg_path" env:"FFMPEG_PATH"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" toml:"server.auth_username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"server.auth_password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI    string `help:"API logging level" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Modules: map[string]string{},
		}
		if opts.LoggingAPI != "" {
			loggingConfig.Modules["api"] = opts.LoggingAPI
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Subcommands share this callback; everything below only runs for
		// the root command.
		var (
			server      *api.Server
			sseExporter *exporters.SSEExporter
			watcher     *config.Watcher[logging.Config]
			cancel      context.CancelFunc
		)

		hooks.OnStart(func() {
			eventBus := events.New()
			api.PublishLogs(eventBus)

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			sseExporter = exporters.NewSSEExporter(eventBus)
			sseExporter.Start(ctx)

			if _, statErr := os.Stat(opts.Config); statErr == nil {
				w, watchErr := config.WatchLogging(opts.Config, logging.GetLogger("config"), 0)
				if watchErr != nil {
					logger.Warn("Failed to start config watcher, hot-reload disabled", "error", watchErr)
				} else {
					watcher = w
				}
			}

			server = api.NewServer(&api.Options{
				AuthUsername:   opts.AuthUsername,
				AuthPassword:   opts.AuthPassword,
				EventBus:       eventBus,
				FFmpegPath:     opts.EncoderBinary,
				MetricsHandler: exporters.HTTPHandler(),
			})

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			if sseExporter != nil {
				sseExporter.Stop()
			}
			if cancel != nil {
				cancel()
			}
		})
	})

	cli.Root().Use = "screenrec"
	cli.Root().Short = "Fixed-rate screen recorder with a bounded capture/encode pipeline"

	cli.Root().AddCommand(cmd.CreateRecordCmd())
	cli.Root().AddCommand(cmd.CreateDisplaysCmd())
	cli.Root().AddCommand(cmd.CreateCheckEncoderCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
