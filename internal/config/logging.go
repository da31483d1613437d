package config

import (
	"log/slog"
	"time"

	"github.com/smazurov/screenrec/internal/logging"
)

// ApplyLogging sets the global level and every module level of cfg on the
// running loggers. Unknown levels are logged and skipped.
func ApplyLogging(cfg logging.Config, logger *slog.Logger) {
	if cfg.Level != "" {
		if err := logging.SetLevel("", cfg.Level); err != nil {
			logger.Warn("Ignoring global log level", "error", err)
		}
	}
	for module, level := range cfg.Modules {
		if err := logging.SetLevel(module, level); err != nil {
			logger.Warn("Ignoring module log level", "module", module, "error", err)
		}
	}
}

// WatchLogging starts a watcher that reapplies the [logging] table of path
// whenever the file changes. The caller stops it.
func WatchLogging(path string, logger *slog.Logger, debounce time.Duration) (*Watcher[logging.Config], error) {
	w := NewConfigWatcher(path, LoadLoggingConfig, logger, WithDebounce[logging.Config](debounce))
	w.OnReload(func(cfg logging.Config) {
		ApplyLogging(cfg, logger)
		logger.Info("Logging levels reloaded", "level", cfg.Level, "modules", len(cfg.Modules))
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}
