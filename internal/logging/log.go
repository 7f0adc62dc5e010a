// Package logging wraps log/slog the way the teaching corpus's utils/log
// package does: a JSON handler to stderr plus a handful of small Attr
// constructors so call sites read as structured logging instead of
// string concatenation.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// BuildLogger returns a JSON slog.Logger writing to stderr at the given
// level ("debug", "info", "warn", "error"; anything else falls back to info).
func BuildLogger(level string) *slog.Logger {
	ops := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(level),
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, ops))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

func StringAttr(key, value string) slog.Attr {
	return slog.String(key, value)
}

func IntAttr(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

func Uint64Attr(key string, value uint64) slog.Attr {
	return slog.Uint64(key, value)
}

func BoolAttr(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

func AnyAttr(key string, value interface{}) slog.Attr {
	return slog.Any(key, value)
}
