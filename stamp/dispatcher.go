package stamp

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdfstamp/layout"
	"github.com/wudi/pdfstamp/observability"
)

// Validator checks a finished document before it is returned.
type Validator interface {
	Validate(ctx context.Context, pdf []byte) error
}

// Dispatcher validates stamp specs and routes them to the stamper for their
// payload kind. It is safe for concurrent use.
type Dispatcher struct {
	stampers  map[Kind]Stamper
	logger    observability.Logger
	tracer    observability.Tracer
	validator Validator
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger for timing and failure lines.
func WithLogger(l observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTracer sets the tracer; each Apply runs in one span.
func WithTracer(t observability.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithValidator checks every output document with v.
func WithValidator(v Validator) DispatcherOption {
	return func(d *Dispatcher) { d.validator = v }
}

// WithStamper replaces the stamper for kind.
func WithStamper(kind Kind, s Stamper) DispatcherOption {
	return func(d *Dispatcher) { d.stampers[kind] = s }
}

// WithLayoutOptions configures markup rendering.
func WithLayoutOptions(opts ...layout.Option) DispatcherOption {
	return func(d *Dispatcher) { d.stampers[KindMarkup] = MarkupStamper{Layout: opts} }
}

// NewDispatcher returns a dispatcher with the built-in stampers.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		stampers: map[Kind]Stamper{
			KindText:    TextStamper{},
			KindImage:   ImageStamper{},
			KindMarkup:  MarkupStamper{},
			KindOverlay: OverlayStamper{},
		},
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply stamps doc according to spec. There are no retries.
func (d *Dispatcher) Apply(ctx context.Context, doc []byte, spec Spec) (out []byte, err error) {
	if len(doc) == 0 {
		return nil, invalid("file", "document is empty")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	s, ok := d.stampers[spec.Kind()]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, spec.Kind())
	}

	ctx, span := d.tracer.StartSpan(ctx, "stamp.apply")
	span.SetTag("kind", string(spec.Kind()))
	defer span.Finish()
	ctx, stamped := withPageCounter(ctx)

	start := time.Now()
	defer func() {
		fields := []observability.Field{
			observability.String("metric", observability.MetricStampDuration),
			observability.String("kind", string(spec.Kind())),
			observability.String("position", spec.Position().String()),
			observability.String("pages", spec.Pages()),
			observability.Duration("duration", time.Since(start)),
		}
		if err != nil {
			span.SetError(err)
			d.logger.Error("stamp failed", append(fields, observability.Error("error", err))...)
			return
		}
		span.SetTag(observability.MetricPagesStamped, *stamped)
		span.SetTag(observability.MetricOutputBytes, len(out))
		d.logger.Info("stamp applied", append(fields,
			observability.Int("input_bytes", len(doc)),
			observability.Int(observability.MetricPagesStamped, *stamped),
			observability.Int(observability.MetricOutputBytes, len(out)))...)
	}()

	out, err = s.Stamp(ctx, doc, spec)
	if err != nil {
		return nil, err
	}
	if d.validator != nil {
		if verr := d.validator.Validate(ctx, out); verr != nil {
			return nil, fmt.Errorf("validate output: %w", verr)
		}
	}
	return out, nil
}
