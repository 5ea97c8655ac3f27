// Package log implements the namespace-prefixed logging facade shared by
// every component (Engine, Transport, Manager, Socket). It backs the entry
// surface's logging configuration (minimum level, optional custom logger).
package log

import (
	stdlog "log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/gookit/color"
)

// Level is a minimum-severity filter, matching the entry surface's
// logging.level configuration ({DEBUG, INFO, WARN, ERROR}).
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent suppresses all output.
	LevelSilent
)

// Output is the default writer for new Loggers; tests may redirect it.
var Output = os.Stderr

// globalLevel is the process-wide minimum level; Configure adjusts it.
var globalLevel atomic.Int32

func init() { globalLevel.Store(int32(LevelInfo)) }

// Configure sets the process-wide minimum log level, mirroring the entry
// surface's logging.level option.
func Configure(min Level) { globalLevel.Store(int32(min)) }

// Sink receives formatted log lines; implementations may forward to any
// external logging system. A Logger with a nil Sink writes to Output.
type Sink interface {
	Log(level Level, line string)
}

// Logger is a component-scoped, namespace-prefixed logger.
type Logger struct {
	std             *stdlog.Logger
	prefix          string
	sink            Sink
	namespaceRegexp *regexp.Regexp
}

// New returns a Logger prefixed with [prefix]. If the DEBUG environment
// variable is set to a glob pattern (e.g. "engine.io-client:*"), debug
// output is additionally gated on prefix matching that pattern — the same
// idiom the `debug` ecosystem popularized.
func New(prefix string) *Logger {
	l := &Logger{
		std:    stdlog.New(Output, "", stdlog.LstdFlags),
		prefix: prefix,
	}
	if pattern := os.Getenv("DEBUG"); pattern != "" {
		l.namespaceRegexp = regexp.MustCompile("^" + strings.ReplaceAll(regexp.QuoteMeta(strings.TrimSpace(pattern)), `\*`, ".*") + "$")
	}
	return l
}

// WithSink attaches a custom Sink, overriding the default stderr writer —
// this is the "optional custom logger" knob in the entry surface.
func (l *Logger) WithSink(sink Sink) *Logger {
	l.sink = sink
	return l
}

func (l *Logger) enabled(level Level) bool {
	return level >= Level(globalLevel.Load())
}

func (l *Logger) emit(level Level, tag color.Color, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	msg := color.Sprintf(format, args...)
	line := "[" + l.prefix + "] " + tag.Sprint(levelName(level)) + " " + msg
	if l.sink != nil {
		l.sink.Log(level, line)
		return
	}
	l.std.Println(line)
}

func levelName(level Level) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return ""
	}
}

// Debug logs at LevelDebug, additionally gated by the DEBUG namespace glob
// when one is configured.
func (l *Logger) Debug(format string, args ...any) {
	if l.namespaceRegexp != nil && !l.namespaceRegexp.MatchString(l.prefix) {
		return
	}
	l.emit(LevelDebug, color.FgMagenta, format, args...)
}

// Info logs at LevelInfo.
func (l *Logger) Info(format string, args ...any) { l.emit(LevelInfo, color.FgCyan, format, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(format string, args ...any) { l.emit(LevelWarn, color.FgYellow, format, args...) }

// Error logs at LevelError.
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, color.FgRed, format, args...) }
