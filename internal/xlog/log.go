// Package xlog wires the engine's packages to a shared zerolog.Logger,
// following the convention trader-go uses throughout its modules: a
// package-level logger is derived via log.With().Str("component", ...).Logger()
// and call sites attach structured fields (e.g. vertex, kind) rather
// than formatting them into the message string.
package xlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	base     zerolog.Logger
	initOnce sync.Once
)

func root() zerolog.Logger {
	initOnce.Do(func() {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			With().Timestamp().Logger()
	})
	return base
}

// Component returns a logger scoped to one engine component, e.g. "engine",
// "graph", "forecast". Packages store the result on their struct instead of
// calling this per-log-line.
func Component(name string) zerolog.Logger {
	return root().With().Str("component", name).Logger()
}

// SetLevel adjusts the process-wide minimum log level; exposed for
// internal/engineconfig to apply the configured verbosity at startup.
func SetLevel(level zerolog.Level) {
	root() // ensure initialized
	zerolog.SetGlobalLevel(level)
}
