package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"missing service", func(c *Config) { c.ServiceName = "" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, true},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"async without buffer", func(c *Config) {
			c.Events.EnableAsync = true
			c.Events.BufferSize = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRecalcPass("single", time.Second)
	m.RecordCellsEvaluated("vm", 3)
	m.RecordCycles(1)
	m.RecordSpillBlocked()
	m.SetProgramCacheSize(4)
	m.RecordRowInsert("committed")
	m.RecordError("CYCLE")
	if m.Registry() != nil {
		t.Error("Expected nil registry")
	}

	disabled, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	disabled.RecordCycles(2)
	server, err := disabled.StartMetricsServer()
	if err != nil || server != nil {
		t.Errorf("Expected no server for disabled metrics, got %v, %v", server, err)
	}
}

func TestEventPublisher_Async(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, EnableAsync: true, BufferSize: 8})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var mu sync.Mutex
	var got []string
	ep.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	}, nil)

	for i := 0; i < 3; i++ {
		if err := ep.PublishSpillBlocked("p", "Sheet1!A1", "Sheet1!A2"); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Errorf("Expected 3 delivered events, got %d", len(got))
	}
}

func TestEventPublisher_Disabled(t *testing.T) {
	ep, _ := NewEventPublisher(EventsConfig{Enabled: false})
	called := false
	ep.Subscribe(func(Event) { called = true }, nil)
	_ = ep.PublishWorkbookReloaded("x.yaml")
	if called {
		t.Error("Expected disabled publisher to drop events")
	}

	var nilPublisher *EventPublisher
	if err := nilPublisher.PublishWorkbookReloaded("x.yaml"); err != nil {
		t.Errorf("Expected nil publisher to drop events, got: %v", err)
	}
}

func TestNop_RecordsNothing(t *testing.T) {
	tel := Nop()
	ctx, span := tel.Tracer.StartRecalcSpan(context.Background(), "p", "single")
	span.End()
	if ctx == nil {
		t.Fatal("Expected context")
	}
	tel.Metrics.RecordCycles(1)
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if tel.Logger.DebugEnabled() {
		t.Error("Expected nop logger to have debug disabled")
	}
}

type codedTestError struct{ code string }

func (e *codedTestError) Error() string     { return "coded failure" }
func (e *codedTestError) ErrorCode() string { return e.code }

func TestStartOperation_CountsFailuresByCode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = "discard"
	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	defer tel.Shutdown(context.Background())
	ctx := tel.WithContext(context.Background())

	ok := StartOperation(ctx, "workbook.load", AttrSource.String("book.yaml"))
	if ok.Span == nil || FromContext(ok.Ctx) != ok.Logger {
		t.Fatal("Expected a span and a context logger")
	}
	ok.End(nil)

	failed := StartOperation(ctx, "recalc")
	failed.End(fmt.Errorf("wrapped: %w", &codedTestError{code: "CYCLE"}))

	families, err := tel.Metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var counted float64
	for _, fam := range families {
		if fam.GetName() != "gridcalc_errors_by_code_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "code" && l.GetValue() == "CYCLE" {
					counted += m.GetCounter().GetValue()
				}
			}
		}
	}
	if counted != 1 {
		t.Errorf("Expected one CYCLE error counted, got %v", counted)
	}
}

func TestStartOperation_WithoutTelemetry(t *testing.T) {
	op := StartOperation(context.Background(), "recalc")
	if op.Span != nil || op.Logger == nil || op.Timer == nil {
		t.Fatalf("Expected a bare operation, got %+v", op)
	}
	op.End(errors.New("boom"))

	if got := ErrorCodeOf(errors.New("boom")); got != "UNCLASSIFIED" {
		t.Errorf("Expected UNCLASSIFIED, got %s", got)
	}
}

func TestTelemetry_FlushWithoutExporter(t *testing.T) {
	tel, err := NewTelemetry(TestConfig())
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	if err := tel.Flush(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if got := FromTelemetryContext(tel.WithContext(context.Background())); got != tel {
		t.Errorf("Expected telemetry from context, got %v", got)
	}
	if got := FromTelemetryContext(context.Background()); got != nil {
		t.Errorf("Expected nil without telemetry, got %v", got)
	}
}
