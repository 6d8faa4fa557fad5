// Package declog is the leveled logger every layer in this module calls on
// its discard/error paths. It ports the original decom library's log.h macro
// levels onto log/slog rather than reaching for a third-party logger,
// matching the teacher repo's own exclusive use of stdlib logging.
package declog

import (
	"context"
	"log/slog"
	"os"
)

// Level mirrors the DECOM_LOG_LEVEL_xxx ladder from the original log.h,
// narrowed to the levels this port actually emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarn
	LevelError
	LevelNone
)

var slogLevels = map[Level]slog.Level{
	LevelDebug:  slog.LevelDebug,
	LevelInfo:   slog.LevelInfo,
	LevelNotice: slog.LevelInfo,
	LevelWarn:   slog.LevelWarn,
	LevelError:  slog.LevelError,
}

var (
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	current = LevelInfo
)

// SetLevel mirrors setting DECOM_LOG_LEVEL in decom_cfg.h: messages below
// this level are suppressed.
func SetLevel(l Level) {
	current = l
	if l == LevelNone {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
		return
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevels[l]}))
}

// SetOutput lets a caller redirect log output, e.g. to a rotated file
// handler for long-running processes.
func SetOutput(h slog.Handler) {
	logger = slog.New(h)
}

func enabled(l Level) bool { return current != LevelNone && l >= current }

func Debug(layerName, msg string, args ...any) {
	if enabled(LevelDebug) {
		logger.Log(context.Background(), slog.LevelDebug, msg, append([]any{"layer", layerName}, args...)...)
	}
}

func Info(layerName, msg string, args ...any) {
	if enabled(LevelInfo) {
		logger.Log(context.Background(), slog.LevelInfo, msg, append([]any{"layer", layerName}, args...)...)
	}
}

func Notice(layerName, msg string, args ...any) {
	if enabled(LevelNotice) {
		logger.Log(context.Background(), slog.LevelInfo, msg, append([]any{"layer", layerName}, args...)...)
	}
}

func Warn(layerName, msg string, args ...any) {
	if enabled(LevelWarn) {
		logger.Log(context.Background(), slog.LevelWarn, msg, append([]any{"layer", layerName}, args...)...)
	}
}

func Error(layerName, msg string, args ...any) {
	if enabled(LevelError) {
		logger.Log(context.Background(), slog.LevelError, msg, append([]any{"layer", layerName}, args...)...)
	}
}
