// Command kwgen generates DescribeKeywords implementations for static and
// hybrid keyword providers.
//
// Types marked with a "kwexec:provider" line in their doc comment are
// providers. For each of their exported methods the generated description
// carries the Go parameter names, the doc comment and the directives found
// in it:
//
//	kwexec:name Display Name
//	kwexec:alias Other Name, Yet Another
//	kwexec:tags ui, smoke
//	kwexec:default timeout=5
//
// Usage:
//
//	kwgen -dir ./browser -out keywords_gen.go
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

var (
	log    zerolog.Logger
	osExit = os.Exit
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

func main() {
	dir := flag.String("dir", ".", "package directory to scan")
	out := flag.String("out", defaultOutput, "name of the generated file, written into -dir")
	flag.Parse()

	info, err := os.Stat(*dir)
	if err != nil {
		slog.Error("Error accessing path", slog.String("path", *dir), slog.String("error", err.Error()))
		osExit(1)
		return
	}
	if !info.IsDir() {
		slog.Error("Error accessing path", slog.String("path", *dir), slog.String("error", "not a directory"))
		osExit(1)
		return
	}
	if filepath.Base(*out) != *out {
		slog.Error("Invalid output name", slog.String("out", *out))
		osExit(1)
		return
	}

	written, err := processDir(*dir, *out)
	if err != nil {
		slog.Error(fmt.Sprintf("Error processing %s", *dir), slog.String("error", err.Error()))
		osExit(1)
		return
	}
	if !written {
		slog.Info("No keyword providers found", slog.String("dir", *dir))
	}
	osExit(0)
}
