// Package config loads engine settings from .env files and KWEXEC_*
// environment variables, and builds the process logger from them.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/casualjim/kwexec/convert"
	"github.com/casualjim/kwexec/logger"
	"github.com/casualjim/kwexec/pkg/natsx"
	"github.com/casualjim/kwexec/types"
	"github.com/joho/godotenv"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every variable read by Load.
const EnvPrefix = "KWEXEC_"

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// DefaultEventSubject is the subject results and frame events are published
// under.
const DefaultEventSubject = "kwexec.events"

// Config holds the engine settings.
type Config struct {
	LogLevel  slog.Level
	LogFormat string
	NoColor   bool
	// Timeout is the default keyword timeout. Zero means no timeout.
	Timeout      time.Duration
	Extensions   []string
	BDDPrefixes  []string
	MaxWorkers   int64
	NATSURL      string
	EventSubject string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:     slog.LevelInfo,
		LogFormat:    FormatConsole,
		MaxWorkers:   32,
		EventSubject: DefaultEventSubject,
	}
}

// Load reads the given .env files, ignoring missing ones, and overlays them
// with the process environment. Variables already set in the environment win
// over the files. All invalid values are reported together.
func Load(files ...string) (Config, error) {
	fileEnv := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("reading '%s': %w", f, err)
		}
		for k, v := range vals {
			fileEnv[k] = v
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}
	return parse(lookup)
}

func parse(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		if lvl, err := logger.ParseLevel(v); err != nil {
			errs = append(errs, fmt.Errorf("%sLOG_LEVEL: %w", EnvPrefix, err))
		} else {
			cfg.LogLevel = lvl.Slog()
		}
	}
	if v, ok := get("LOG_FORMAT"); ok {
		switch f := strings.ToLower(v); f {
		case FormatConsole, FormatJSON:
			cfg.LogFormat = f
		default:
			errs = append(errs, fmt.Errorf("%sLOG_FORMAT: expected '%s' or '%s', got '%s'", EnvPrefix, FormatConsole, FormatJSON, v))
		}
	}
	if v, ok := get("NO_COLOR"); ok {
		cfg.NoColor = convert.IsTruthy(v)
	} else if v, ok := lookup("NO_COLOR"); ok && v != "" {
		cfg.NoColor = true
	}
	if v, ok := get("TIMEOUT"); ok {
		d, err := convert.Convert(v, types.Of(types.Duration))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else if d.(time.Duration) < 0 {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: must not be negative", EnvPrefix))
		} else {
			cfg.Timeout = d.(time.Duration)
		}
	}
	if v, ok := get("EXTENSIONS"); ok {
		cfg.Extensions = splitList(v)
	}
	if v, ok := get("BDD_PREFIXES"); ok {
		cfg.BDDPrefixes = splitList(v)
	}
	if v, ok := get("MAX_WORKERS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%sMAX_WORKERS: %w", EnvPrefix, err))
		case n < 1:
			errs = append(errs, fmt.Errorf("%sMAX_WORKERS: must be at least 1", EnvPrefix))
		default:
			cfg.MaxWorkers = n
		}
	}
	if v, ok := get("NATS_URL"); ok {
		cfg.NATSURL = v
	} else if v, ok := lookup(natsx.EnvURL); ok {
		cfg.NATSURL = strings.TrimSpace(v)
	}
	if v, ok := get("EVENT_SUBJECT"); ok {
		cfg.EventSubject = v
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewLogger builds a slog logger backed by zerolog, writing human readable
// lines in console format and JSON otherwise.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	var zl zerolog.Logger
	if c.LogFormat == FormatJSON {
		zl = zerolog.New(w).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp, NoColor: c.NoColor}
		zl = zerolog.New(output).With().Timestamp().Logger()
	}
	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: c.LogLevel}))
}
