// Package logging provides slog loggers with a level per module.
//
// Each module gets its logger from [GetLogger]; the logger carries a
// "module" attribute and its own [slog.LevelVar], so [SetLevel] takes effect
// on loggers already handed out. [Initialize] may run after loggers were
// created and re-routes them.
//
// Records go to up to three places at once:
//   - the console writer ([Config.Output], stderr by default), skipped when
//     it is /dev/null or closed
//   - the systemd journal, when its socket is present
//   - a [RingBuffer] read by the status API, with a [LogCallback] to
//     stream new entries as events
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	pipeline = "debug"
//	ffmpeg = "warn"
//
// With journald, entries are tagged screenrec and every attribute becomes a
// field:
//
//	journalctl -t screenrec MODULE=pipeline
//	journalctl -t screenrec -p warning STAGE=capture
package logging
