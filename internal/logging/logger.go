package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger the packages log through.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"` // text or json
	Modules map[string]string `toml:"modules"`

	// Output receives console logs. Defaults to stderr so that command
	// output on stdout stays clean.
	Output io.Writer `toml:"-"`
	// BufferSize is the number of entries kept for /api/logs.
	BufferSize int `toml:"-"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// registry holds the process-wide logging state.
type registry struct {
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	global      slog.LevelVar
	modules     map[string]*moduleLogger
	buffer      *RingBuffer
	callback    LogCallback
}

var current = &registry{modules: make(map[string]*moduleLogger)}

func (r *registry) sinks() (*RingBuffer, LogCallback) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffer, r.callback
}

// levelFor is the configured level of module. Caller holds mu.
func (r *registry) levelFor(module string) slog.Level {
	level := slog.LevelInfo
	if !r.initialized {
		return level
	}
	if l, ok := parseLevel(r.cfg.Level); ok {
		level = l
	}
	if l, ok := parseLevel(r.cfg.Modules[module]); ok {
		level = l
	}
	return level
}

func (r *registry) newLogger(module string, level *slog.LevelVar) *slog.Logger {
	return slog.New(newHandler(r.cfg, level)).With("module", module)
}

// Initialize applies cfg to every module logger, including those created
// before it ran, and installs the default slog logger.
func Initialize(cfg Config) {
	r := current
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg
	r.initialized = true
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	r.buffer = NewRingBuffer(size)

	r.global.Set(r.levelFor(""))
	for module, m := range r.modules {
		m.level.Set(r.levelFor(module))
		*m.logger = *r.newLogger(module, m.level)
	}

	slog.SetDefault(slog.New(newHandler(cfg, &r.global)))
}

// GetBuffer returns the ring buffer, nil before Initialize.
func GetBuffer() *RingBuffer {
	buffer, _ := current.sinks()
	return buffer
}

// SetLogCallback registers fn to receive every buffered entry. nil removes it.
func SetLogCallback(fn LogCallback) {
	current.mu.Lock()
	defer current.mu.Unlock()
	current.callback = fn
}

// GetLogger returns the logger of module, creating it on first use. The
// returned pointer stays valid across Initialize.
func GetLogger(module string) *slog.Logger {
	r := current
	r.mu.RLock()
	m, ok := r.modules[module]
	r.mu.RUnlock()
	if ok {
		return m.logger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[module]; ok {
		return m.logger
	}
	level := &slog.LevelVar{}
	level.Set(r.levelFor(module))
	m = &moduleLogger{logger: r.newLogger(module, level), level: level}
	r.modules[module] = m
	return m.logger
}

// SetLevel changes the level of one module at runtime. An empty module
// changes the global level and every module without its own override.
func SetLevel(module, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	r := current
	r.mu.Lock()
	defer r.mu.Unlock()

	if module == "" {
		r.cfg.Level = level
		r.global.Set(parsed)
		for name, m := range r.modules {
			if _, pinned := r.cfg.Modules[name]; !pinned {
				m.level.Set(parsed)
			}
		}
		return nil
	}

	modules := make(map[string]string, len(r.cfg.Modules)+1)
	for k, v := range r.cfg.Modules {
		modules[k] = v
	}
	modules[module] = level
	r.cfg.Modules = modules
	if m, ok := r.modules[module]; ok {
		m.level.Set(parsed)
	}
	return nil
}

// Levels returns the effective level of every module logger created so far.
func Levels() map[string]string {
	r := current
	r.mu.RLock()
	defer r.mu.RUnlock()
	levels := make(map[string]string, len(r.modules))
	for module, m := range r.modules {
		levels[module] = levelToString(m.level.Level())
	}
	return levels
}

// newHandler routes records to the console writer (when it is connected
// to something), the journal (when available) and the ring buffer.
func newHandler(cfg Config, level slog.Leveler) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers Fanout
	if writerAvailable(out) {
		if cfg.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return handlers
}

// writerAvailable reports false only for files that go nowhere (/dev/null
// or a closed descriptor). Other writers are always used.
func writerAvailable(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
