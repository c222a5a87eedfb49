package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus adapts a logrus logger to Logger.
func NewLogrus(l *logrus.Logger) Logger {
	return logrusLogger{entry: logrus.NewEntry(l)}
}

// NewLogrusFromConfig builds a logrus logger with the given level and format
// ("text" or "json").
func NewLogrusFromConfig(level, format string) (Logger, error) {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	l.SetLevel(lvl)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return NewLogrus(l), nil
}

func toFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		v := f.Value()
		switch val := v.(type) {
		case error:
			if val != nil {
				v = val.Error()
			}
		case time.Duration:
			v = val.String()
		}
		out[f.Key()] = v
	}
	return out
}

func (l logrusLogger) Debug(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

func (l logrusLogger) Info(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

func (l logrusLogger) Warn(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

func (l logrusLogger) Error(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

func (l logrusLogger) With(fields ...Field) Logger {
	return logrusLogger{entry: l.entry.WithFields(toFields(fields))}
}
