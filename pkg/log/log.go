package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Package log provides named service loggers on top of zerolog.
// It adds:
//   - Named (service) loggers via ForService(name)
//   - Automatic message prefix "[<name>>]" plus a structured "service" field
//   - Warn and Debug levels (Info is the default level, Error is also provided)
//   - Ability to enable debug globally or selectively per service
//
// Usage:
//   l := log.ForService("gateway")
//   l.Infof("client connected: %s", email)
//   l.Warnf("send failed: %v", err)
//   l.Debugf("inbound event %s", name) // only prints if debug enabled (globally or for "gateway")
//
// NOTE: The package name intentionally collides with stdlib "log". Alias one
// of them when both are needed.

// Logger represents a named logger with helper methods.
type Logger struct {
	name     string
	warnOnce sync.Once
}

// writerHolder keeps atomic.Value storing a single concrete type.
type writerHolder struct {
	zl zerolog.Logger
}

var (
	// globalDebug holds global debug enablement.
	globalDebug atomic.Bool

	// minLevel filters Info/Warn/Error output. Debug is governed by the debug switches.
	minLevel atomic.Int32

	// serviceDebug stores per-service debug overrides.
	serviceDebug sync.Map // map[string]*atomic.Bool

	// loggers caches created named loggers.
	loggers sync.Map // map[string]*Logger

	// output holds the zerolog logger every named logger writes through.
	output atomic.Value // writerHolder
)

func init() {
	minLevel.Store(int32(zerolog.InfoLevel))
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
}

// ForService returns (and memoizes) a named logger for the given service.
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	actual, _ := loggers.LoadOrStore(name, &Logger{name: name})
	return actual.(*Logger)
}

// SetGlobalDebug enables or disables debug logging globally.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// GlobalDebug returns whether global debug logging is enabled.
func GlobalDebug() bool {
	return globalDebug.Load()
}

// SetLevel parses a zerolog level name (debug, info, warn, error) and applies it.
// "debug" (or "trace") also enables global debug output.
func SetLevel(level string) error {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		level = "info"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", level, err)
	}
	if parsed <= zerolog.DebugLevel {
		SetGlobalDebug(true)
		parsed = zerolog.InfoLevel
	} else {
		SetGlobalDebug(false)
	}
	minLevel.Store(int32(parsed))
	return nil
}

// EnableDebugFor enables debug logging for a specific service.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

// DisableDebugFor disables debug logging for a specific service.
func DisableDebugFor(name string) {
	if name == "" {
		return
	}
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
}

// DebugEnabledFor returns whether debug is enabled for the given service (either
// globally or specifically for the service).
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput routes every logger (existing and future) to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	zl := zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	output.Store(writerHolder{zl: zl})
}

func (l *Logger) prefix() string {
	return "[" + l.name + ">]"
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	zl := output.Load().(writerHolder).zl
	return zl.WithLevel(level).Str("service", l.name)
}

func (l *Logger) logInternal(level zerolog.Level, msg string) {
	if level != zerolog.DebugLevel && level < zerolog.Level(minLevel.Load()) {
		return
	}
	l.event(level).Msg(l.prefix() + " " + msg)
}

// Infof logs an informational message with fmt.Sprintf semantics.
func (l *Logger) Infof(format string, args ...any) {
	l.logInternal(zerolog.InfoLevel, fmt.Sprintf(format, args...))
}

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, args ...any) {
	l.warnOnce.Do(func() {
		l.logInternal(zerolog.WarnLevel, "warnings active for this logger")
	})
	l.logInternal(zerolog.WarnLevel, fmt.Sprintf(format, args...))
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, args ...any) {
	l.logInternal(zerolog.ErrorLevel, fmt.Sprintf(format, args...))
}

// Fatalf logs an error message and exits the process with status 1.
func (l *Logger) Fatalf(format string, args ...any) {
	l.event(zerolog.FatalLevel).Msg(l.prefix() + " " + fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Debugf logs a debug message if debug is enabled (globally or for this logger's service).
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.logInternal(zerolog.DebugLevel, fmt.Sprintf(format, args...))
}

// Zerolog returns a zerolog.Logger carrying this logger's service field, for
// call sites that want structured fields.
func (l *Logger) Zerolog() zerolog.Logger {
	zl := output.Load().(writerHolder).zl
	return zl.With().Str("service", l.name).Logger()
}
