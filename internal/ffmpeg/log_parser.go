package ffmpeg

import "strings"

// levelNames maps ffmpeg's -loglevel names onto debug, info, warn and error.
var levelNames = map[string]string{
	"quiet":   "debug",
	"trace":   "debug",
	"debug":   "debug",
	"verbose": "debug",
	"info":    "info",
	"warning": "warn",
	"error":   "error",
	"fatal":   "error",
	"panic":   "error",
}

// ParseLogLevel classifies one stderr line of an encoder run with
// -loglevel level+info. Lines look like "[warning] msg" or
// "[libx264 @ 0x7f] [warning] msg"; the level tag is stripped and a
// component prefix kept. Periodic "frame= ... fps= ..." stats lines are
// debug output, untagged lines are info.
func ParseLogLevel(line string) (level, msg string) {
	if isStatsLine(line) {
		return "debug", line
	}

	tag, rest, ok := bracketed(line)
	if !ok {
		return "info", line
	}
	if level, known := levelNames[tag]; known {
		return level, rest
	}

	if inner, after, ok := bracketed(rest); ok {
		if level, known := levelNames[inner]; known {
			return level, "[" + tag + "] " + after
		}
	}
	return "info", line
}

// bracketed splits "[tag] rest".
func bracketed(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	end := strings.Index(s, "] ")
	if end < 1 {
		return "", s, false
	}
	return s[1:end], s[end+2:], true
}

func isStatsLine(line string) bool {
	if _, rest, ok := bracketed(line); ok {
		line = rest
	}
	return strings.HasPrefix(line, "frame=") && strings.Contains(line, "fps=")
}
