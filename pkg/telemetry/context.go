package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Nop returns telemetry that records nothing. Engines built without
// explicit telemetry use it.
func Nop() *Telemetry {
	return &Telemetry{
		Logger: NewNopLogger(),
		Config: TestConfig(),
	}
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// Operation is one instrumented unit of work such as loading a workbook
// or running a recalculation pass. Ctx carries the span and a logger
// tagged with the operation name and span ids.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer

	name string
	tel  *Telemetry
}

// StartOperation begins an operation with the telemetry stored in ctx.
// Without telemetry only the timer and the context logger are set.
func StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) *Operation {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &Operation{Ctx: ctx, Logger: FromContext(ctx), Timer: NewTimer(), name: name}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, name, attrs...)
	logger := tel.Logger.WithField("operation", name)
	if sc := span.SpanContext(); sc.IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
	}

	return &Operation{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
		name:   name,
		tel:    tel,
	}
}

// codedError is implemented by classified errors such as *engine.Error.
type codedError interface {
	ErrorCode() string
}

// ErrorCodeOf returns the classification code in err's chain, or
// "UNCLASSIFIED" when there is none.
func ErrorCodeOf(err error) string {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.ErrorCode()
	}
	return "UNCLASSIFIED"
}

// End closes the span with err's status. A failure is logged at debug
// level and counted under its error code.
func (op *Operation) End(err error) {
	if op.Span != nil {
		if err != nil {
			RecordError(op.Span, err)
			op.Span.SetAttributes(AttrErrorCode.String(ErrorCodeOf(err)))
		} else {
			RecordSuccess(op.Span)
		}
		op.Span.End()
	}
	if err == nil {
		return
	}
	op.Logger.WithError(err).WithFields(map[string]interface{}{
		"code":        ErrorCodeOf(err),
		"duration_ms": op.Timer.Duration().Milliseconds(),
	}).Debug("Operation failed")
	if op.tel != nil {
		op.tel.Metrics.RecordError(ErrorCodeOf(err))
	}
}
