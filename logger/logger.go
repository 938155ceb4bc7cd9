// Package logger is the logging channel keywords and the engine write to.
//
// Writes are routed to the run carried by the context: they are filtered by
// the level of the innermost frame and tagged with it. Without a run, writes
// go to the process logger tagged with the fallback logger name.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/casualjim/kwexec/pkg/runstate"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/fatih/color"
)

// FallbackName names the logger used when no run is active.
const FallbackName = "kwexec"

// Level is the level of a write. HTML and Console are recorded as Info.
type Level string

const (
	Trace   Level = "TRACE"
	Debug   Level = "DEBUG"
	Info    Level = "INFO"
	HTML    Level = "HTML"
	Warn    Level = "WARN"
	Error   Level = "ERROR"
	Console Level = "CONSOLE"
)

// ParseLevel reads a level name in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case Trace, Debug, Info, HTML, Warn, Error, Console:
		return l, nil
	case "WARNING":
		return Warn, nil
	}
	return "", fmt.Errorf("invalid log level '%s'", s)
}

// Slog maps the level to the slog level it is recorded at.
func (l Level) Slog() slog.Level {
	switch l {
	case Trace:
		return slogx.LevelTrace
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Stream selects the terminal stream of a console write.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) writer() io.Writer {
	if s == Stderr {
		return color.Error
	}
	return color.Output
}

var (
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
)

// Write records msg at level. html marks msg as markup; the HTML level
// forces it.
func Write(ctx context.Context, msg string, level Level, html bool) {
	if level == HTML {
		html = true
	}
	run, ok := runstate.FromContext(ctx)
	if !ok {
		fallback().Log(ctx, level.Slog(), msg)
		return
	}
	if !run.Enabled(level.Slog()) {
		return
	}

	attrs := make([]slog.Attr, 0, 2)
	if f := run.Current(); f != nil {
		attrs = append(attrs, slog.Any("frame", f))
	}
	if html {
		attrs = append(attrs, slog.Bool("html", true))
	}
	run.Logger().LogAttrs(ctx, level.Slog(), msg, attrs...)

	switch level {
	case Console:
		WriteConsole(ctx, msg, true, Stdout)
	case Warn:
		echo(warnColor, level, msg)
	case Error:
		echo(errorColor, level, msg)
	}
}

func echo(c *color.Color, level Level, msg string) {
	_, _ = c.Fprintf(color.Error, "[ %s ] %s\n", level, msg)
}

// WriteConsole writes msg to the terminal without level filtering.
func WriteConsole(_ context.Context, msg string, newline bool, stream Stream) {
	if newline && !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = io.WriteString(stream.writer(), msg)
}

// Tracef writes msg at trace level.
func Tracef(ctx context.Context, format string, args ...any) {
	Write(ctx, sprintf(format, args), Trace, false)
}

// Debugf writes msg at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	Write(ctx, sprintf(format, args), Debug, false)
}

// Infof writes msg at info level; alsoConsole copies it to stdout.
func Infof(ctx context.Context, alsoConsole bool, format string, args ...any) {
	level := Info
	if alsoConsole {
		level = Console
	}
	Write(ctx, sprintf(format, args), level, false)
}

// Warnf writes msg at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	Write(ctx, sprintf(format, args), Warn, false)
}

// Errorf writes msg at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	Write(ctx, sprintf(format, args), Error, false)
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func fallback() *slog.Logger {
	return slog.Default().With(slogx.LoggerName(FallbackName))
}
