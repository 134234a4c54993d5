package mqttsn

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug logs every dropped datagram and retransmission.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo logs session changes.
	LogLevelInfo
	// LogLevelWarn logs timeouts and rejected requests.
	LogLevelWarn
	// LogLevelError logs transport and platform failures.
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

var logLevelNames = [...]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
	LogLevelNone:  "NONE",
}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return "UNKNOWN"
}

// ParseLogLevel parses "debug", "info", "warn", "error" or "none".
// Unknown names map to LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "none", "off":
		return LogLevelNone
	default:
		return LogLevelInfo
	}
}

// LogFields represents key-value pairs for structured logging.
type LogFields map[string]any

// Logger defines the interface for logging.
type Logger interface {
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, fields LogFields)

	// WithFields returns a logger that adds fields to every entry.
	WithFields(fields LogFields) Logger

	Level() LogLevel
	SetLevel(level LogLevel)
}

// levelGate holds the minimum level shared by the logger implementations.
type levelGate struct {
	level LogLevel
}

// Level returns the current log level.
func (g *levelGate) Level() LogLevel { return g.level }

// SetLevel sets the log level.
func (g *levelGate) SetLevel(level LogLevel) { g.level = level }

func (g *levelGate) enabled(level LogLevel) bool {
	return level != LogLevelNone && g.level <= level
}

// NoOpLogger discards everything. It is the client default.
type NoOpLogger struct {
	levelGate
}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{levelGate{level: LogLevelNone}}
}

func (n *NoOpLogger) Debug(string, LogFields)     {}
func (n *NoOpLogger) Info(string, LogFields)      {}
func (n *NoOpLogger) Warn(string, LogFields)      {}
func (n *NoOpLogger) Error(string, LogFields)     {}
func (n *NoOpLogger) WithFields(LogFields) Logger { return n }

// StdLogger writes one line per entry through the standard log package:
//
//	mqttsn 2026/01/02 15:04:05.000000 [WARN] msg key=value ...
//
// Fields are sorted by key.
type StdLogger struct {
	levelGate
	logger *log.Logger
	fields LogFields
}

// NewStdLogger creates a logger writing to w, or to stderr when w is nil.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	if w == nil {
		w = os.Stderr
	}
	return &StdLogger{
		levelGate: levelGate{level: level},
		logger:    log.New(w, "mqttsn ", log.LstdFlags|log.Lmicroseconds),
	}
}

func (s *StdLogger) Debug(msg string, fields LogFields) { s.write(LogLevelDebug, msg, fields) }
func (s *StdLogger) Info(msg string, fields LogFields)  { s.write(LogLevelInfo, msg, fields) }
func (s *StdLogger) Warn(msg string, fields LogFields)  { s.write(LogLevelWarn, msg, fields) }
func (s *StdLogger) Error(msg string, fields LogFields) { s.write(LogLevelError, msg, fields) }

// WithFields returns a child logger; the parent is not modified.
func (s *StdLogger) WithFields(fields LogFields) Logger {
	return &StdLogger{
		levelGate: s.levelGate,
		logger:    s.logger,
		fields:    mergeFields(s.fields, fields),
	}
}

func (s *StdLogger) write(level LogLevel, msg string, fields LogFields) {
	if !s.enabled(level) {
		return
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	all := mergeFields(s.fields, fields)
	for _, k := range slices.Sorted(maps.Keys(all)) {
		fmt.Fprintf(&b, " %s=%v", k, all[k])
	}

	s.logger.Print(b.String())
}

// SlogLogger adapts a *slog.Logger to Logger. The handler's own level still
// applies after the Logger level.
type SlogLogger struct {
	levelGate
	logger *slog.Logger
}

// NewSlogLogger wraps logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger, level LogLevel) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{levelGate: levelGate{level: level}, logger: logger}
}

func (s *SlogLogger) Debug(msg string, fields LogFields) { s.write(LogLevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields LogFields)  { s.write(LogLevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields LogFields)  { s.write(LogLevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields LogFields) { s.write(LogLevelError, msg, fields) }

// WithFields returns a child logger carrying fields as slog attributes.
func (s *SlogLogger) WithFields(fields LogFields) Logger {
	return &SlogLogger{levelGate: s.levelGate, logger: s.logger.With(fieldAttrs(fields)...)}
}

func (s *SlogLogger) write(level LogLevel, msg string, fields LogFields) {
	if !s.enabled(level) {
		return
	}
	s.logger.Log(context.Background(), slogLevel(level), msg, fieldAttrs(fields)...)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError, LogLevelNone:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fieldAttrs(fields LogFields) []any {
	attrs := make([]any, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

func mergeFields(base, extra LogFields) LogFields {
	out := make(LogFields, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

// Field names used by the engine and the client.
const (
	LogFieldClientID   = "client_id"
	LogFieldMsgType    = "msg_type"
	LogFieldMsgID      = "msg_id"
	LogFieldTopicID    = "topic_id"
	LogFieldReturnCode = "return_code"
	LogFieldState      = "state"
	// LogFieldRetries is the number of retransmissions left.
	LogFieldRetries    = "retries"
	LogFieldError      = "error"
	LogFieldRemoteAddr = "remote_addr"
	LogFieldBytes      = "bytes"
)
