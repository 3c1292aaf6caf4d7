// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger wraps zerolog with a process-wide logger and a
// context-scoped variant used to tag log lines with an upload session id.
package logger

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/env"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerKey struct{}

var globalLogger zerolog.Logger

func init() {
	pname, err := os.Executable()
	if err != nil {
		panic(err)
	}

	level := zerolog.InfoLevel
	level, err = zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	globalLogger = log.With().
		Str("executable", filepath.Base(pname)).
		Caller().
		Logger().
		Level(level)

	// Human-readable output for interactive local runs; JSON elsewhere.
	if env.IsLocal() {
		globalLogger = globalLogger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = globalLogger
}

// Ctx returns the logger stored in ctx, or the global logger when none
// has been attached.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &globalLogger
	}
	if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok {
		return l
	}
	return &globalLogger
}

func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithSession returns a context whose logger carries the upload session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := Ctx(ctx).With().Str("session_id", sessionID).Logger()
	return WithLogger(ctx, &l)
}

// SetLevel updates the global log level
func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

// Fatal logs a fatal message and exits
func Fatal() *zerolog.Event {
	return globalLogger.Fatal()
}

// Error logs an error message
func Error() *zerolog.Event {
	return globalLogger.Error()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

// Info logs an info message
func Info() *zerolog.Event {
	return globalLogger.Info()
}

// Debug logs a debug message
func Debug() *zerolog.Event {
	return globalLogger.Debug()
}
