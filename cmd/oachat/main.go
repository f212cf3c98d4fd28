// Command oachat talks to an OpenAI-compatible chat completion service from
// the terminal.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/casualjim/oachat/pkg/slogx"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

func main() {
	setupLogging(false)
	if err := rootCmd.Execute(); err != nil {
		slog.Debug("command failed", slogx.Error(err))
		os.Exit(1)
	}
}
