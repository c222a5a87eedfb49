package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	log := NewLogrus(l).With(String("request_id", "r1"))
	log.Info("stamp applied",
		Duration("duration", 1500*time.Millisecond),
		Float64("opacity", 0.5),
		Error("error", errors.New("boom")),
		Int("pages", 3),
	)
	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]interface{}{
		"request_id": "r1", "duration": "1.5s", "opacity": 0.5,
		"error": "boom", "pages": float64(3), "msg": "stamp applied",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestLogrusFromConfig(t *testing.T) {
	if _, err := NewLogrusFromConfig("info", "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, err := NewLogrusFromConfig("verbose", "text"); err == nil {
		t.Fatalf("expected bad level to fail")
	}
	if _, err := NewLogrusFromConfig("debug", "xml"); err == nil {
		t.Fatalf("expected bad format to fail")
	}
}

type entry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	entries []entry
}

func (r *recordingLogger) log(level, msg string, fields []Field) {
	e := entry{level: level, msg: msg, fields: map[string]interface{}{}}
	for _, f := range fields {
		e.fields[f.Key()] = f.Value()
	}
	r.entries = append(r.entries, e)
}

func (r *recordingLogger) Debug(msg string, f ...Field) { r.log("debug", msg, f) }
func (r *recordingLogger) Info(msg string, f ...Field)  { r.log("info", msg, f) }
func (r *recordingLogger) Warn(msg string, f ...Field)  { r.log("warn", msg, f) }
func (r *recordingLogger) Error(msg string, f ...Field) { r.log("error", msg, f) }
func (r *recordingLogger) With(...Field) Logger         { return r }

func TestLogTracer(t *testing.T) {
	rec := &recordingLogger{}
	tracer := NewLogTracer(rec)

	_, span := tracer.StartSpan(context.Background(), "stamp.apply")
	span.SetTag("kind", "text")
	span.SetTag(MetricPagesStamped, 3)
	span.SetTag("ratio", 0.5)
	span.Finish()
	span.Finish()

	_, failed := tracer.StartSpan(context.Background(), "compose")
	failed.SetError(errors.New("boom"))
	failed.Finish()

	if len(rec.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(rec.entries))
	}
	ok := rec.entries[0]
	if ok.level != "debug" || ok.fields["span"] != "stamp.apply" || ok.fields["kind"] != "text" ||
		ok.fields[MetricPagesStamped] != 3 || ok.fields["ratio"] != 0.5 {
		t.Fatalf("finished span = %+v", ok)
	}
	if _, has := ok.fields["duration"]; !has {
		t.Fatal("duration missing")
	}
	bad := rec.entries[1]
	if bad.level != "warn" || bad.fields["span"] != "compose" {
		t.Fatalf("failed span = %+v", bad)
	}
	if err, _ := bad.fields["error"].(error); err == nil || err.Error() != "boom" {
		t.Fatalf("error field = %v", bad.fields["error"])
	}
}

func TestLogTracerWithoutLogger(t *testing.T) {
	if _, ok := NewLogTracer(nil).(nopTracer); !ok {
		t.Fatal("nil logger should yield the nop tracer")
	}
}
