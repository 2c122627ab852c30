package gloop

import (
	"github.com/sirupsen/logrus"
)

// LogLevel mirrors the severities gloop reports at.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LogEntry is a single structured log record emitted by the loop.
//
// Category identifies the subsystem ("loop", "control", "dispatch",
// "quit") and Fields carries optional extra context; the loop's own
// entries leave Fields empty.
type LogEntry struct {
	Level    LogLevel
	Category string
	Message  string
	Err      error
	Fields   map[string]any
}

// Logger is the structured logging interface gloop reports through. It is
// deliberately narrow so any logging framework can back it. This package
// ships a logrus-backed implementation (see NewLogrusLogger), so it
// imports logrus, but the Logger interface itself uses no logrus types.
type Logger interface {
	Log(entry LogEntry)
}

// NoOpLogger discards every entry. It is the default when no Option
// supplies a Logger.
type NoOpLogger struct{}

// NewNoOpLogger returns a Logger that discards all entries.
func NewNoOpLogger() Logger { return NoOpLogger{} }

func (NoOpLogger) Log(LogEntry) {}

// logrusLogger adapts Logger to a *logrus.Logger.
type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrusLogger wraps an existing *logrus.Logger as a gloop Logger. A
// nil logger falls back to logrus's package-level standard logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{l: l}
}

func (g *logrusLogger) Log(entry LogEntry) {
	fields := make(logrus.Fields, len(entry.Fields)+1)
	for k, v := range entry.Fields {
		fields[k] = v
	}
	fields["category"] = entry.Category

	e := g.l.WithFields(fields)
	if entry.Err != nil {
		e = e.WithError(entry.Err)
	}

	switch entry.Level {
	case LevelDebug:
		e.Debug(entry.Message)
	case LevelInfo:
		e.Info(entry.Message)
	case LevelWarn:
		e.Warn(entry.Message)
	case LevelError:
		e.Error(entry.Message)
	default:
		e.Info(entry.Message)
	}
}
