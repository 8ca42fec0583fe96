package mailbox

import (
	"log/slog"
	"os"
	"sync/atomic"
)

// Logger defines the minimal logging interface used by the mailbox session.
//
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithAttrs(args ...any) Logger
}

// loggerHolder keeps atomic.Value stores consistently typed regardless of
// the concrete Logger implementation.
type loggerHolder struct {
	logger Logger
}

var globalLogger atomic.Value // stores loggerHolder

func init() {
	globalLogger.Store(loggerHolder{logger: defaultLogger()})
}

// defaultLogger returns the library's default slog-based logger.
func defaultLogger() Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return SlogLogger(slog.New(handler)).WithAttrs("component", "mailbox/session")
}

// SetLogger replaces the global logger used by the package. Passing nil
// restores the built-in slog logger.
func SetLogger(logger Logger) {
	if logger == nil {
		globalLogger.Store(loggerHolder{logger: defaultLogger()})
		return
	}
	globalLogger.Store(loggerHolder{logger: logger.WithAttrs("component", "mailbox/session")})
}

// SetSlogLogger is a convenience helper for using a *slog.Logger directly.
func SetSlogLogger(logger *slog.Logger) {
	SetLogger(SlogLogger(logger))
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return nil
	}
	return slogAdapter{logger: logger}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Debug(msg string, args ...any) { s.logger.Debug(msg, args...) }

func (s slogAdapter) Info(msg string, args ...any) { s.logger.Info(msg, args...) }

func (s slogAdapter) Warn(msg string, args ...any) { s.logger.Warn(msg, args...) }

func (s slogAdapter) Error(msg string, args ...any) { s.logger.Error(msg, args...) }

func (s slogAdapter) WithAttrs(args ...any) Logger {
	return slogAdapter{logger: s.logger.With(args...)}
}

// getLogger returns the currently configured logger.
func getLogger() Logger {
	if v := globalLogger.Load(); v != nil {
		if h, ok := v.(loggerHolder); ok && h.logger != nil {
			return h.logger
		}
	}
	// Fallback for safety if init() was skipped (e.g., in tests).
	l := defaultLogger()
	globalLogger.Store(loggerHolder{logger: l})
	return l
}

// sessionLogger adds per-session context to the configured logger.
func sessionLogger(sessionID, folder string) Logger {
	logger := getLogger()
	if sessionID == "" && folder == "" {
		return logger
	}

	args := []any{"session", sessionID}
	if folder != "" {
		args = append(args, "mailbox", folder)
	}
	return logger.WithAttrs(args...)
}

// debugLog emits a debug log entry when verbose logging is enabled.
func debugLog(sessionID, folder string, msg string, args ...any) {
	if !Verbose {
		return
	}
	sessionLogger(sessionID, folder).Debug(msg, args...)
}

func warnLog(sessionID, folder string, msg string, args ...any) {
	sessionLogger(sessionID, folder).Warn(msg, args...)
}

func errorLog(sessionID, folder string, msg string, args ...any) {
	sessionLogger(sessionID, folder).Error(msg, args...)
}
