package observability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NewLogTracer returns a tracer that logs every finished span through l:
// at debug level on success, at warn level when an error was recorded.
func NewLogTracer(l Logger) Tracer {
	if l == nil {
		return NopTracer()
	}
	return logTracer{logger: l}
}

type logTracer struct {
	logger Logger
}

func (t logTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{logger: t.logger, name: name, start: time.Now()}
}

type logSpan struct {
	logger Logger
	name   string
	start  time.Time

	mu   sync.Mutex
	tags []Field
	err  error
	done bool
}

func (s *logSpan) SetTag(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tagField(key, value))
}

func (s *logSpan) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Finish logs the span once; later calls are ignored.
func (s *logSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	fields := append([]Field{
		String("span", s.name),
		Duration("duration", time.Since(s.start)),
	}, s.tags...)
	if s.err != nil {
		s.logger.Warn("span failed", append(fields, Error("error", s.err))...)
		return
	}
	s.logger.Debug("span finished", fields...)
}

func tagField(key string, value interface{}) Field {
	switch v := value.(type) {
	case string:
		return String(key, v)
	case int:
		return Int(key, v)
	case int64:
		return Int64(key, v)
	case float64:
		return Float64(key, v)
	case time.Duration:
		return Duration(key, v)
	case error:
		return Error(key, v)
	}
	return String(key, fmt.Sprint(value))
}
