package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

// LevelTrace sits strictly below slog.LevelDebug so trace output can be
// filtered independently of debug output.
const LevelTrace = slog.LevelDebug - 2

// KeyLoggerName is the attribute key naming the logical logger a record came from.
const KeyLoggerName = "logger"

// Error returns an "error" attribute holding the error message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer creates a string attribute from a fmt.Stringer.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName tags a record with the logical logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Elapsed renders a duration the way result lines show it.
func Elapsed(d time.Duration) slog.Attr {
	return slog.String("elapsed", d.Round(time.Microsecond).String())
}

// LevelName maps slog levels, including LevelTrace, to the upper case names
// used in logs.
func LevelName(l slog.Level) string {
	if l <= LevelTrace {
		return "TRACE"
	}
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
