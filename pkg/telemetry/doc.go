// Package telemetry provides observability instrumentation for gridcalc.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and recalculation events into one
// bundle that the engine, the calculated-table model and the CLI share.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Engines built without telemetry use telemetry.Nop(), which records
// nothing.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger.WithPassID(passID).WithCell("Sheet1!A1").Warn("circular reference")
//
// Log levels: trace, debug, info, warn, error, fatal.
//
// # Tracing
//
// Each recalculation pass runs in a "recalc.pass" span and each table row
// insertion in a "table.insert_row" span:
//
//	ctx, span := tel.Tracer.StartRecalcSpan(ctx, passID, "single")
//	defer span.End()
//
// Supported exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
//	tel.Metrics.RecordRecalcPass("parallel", duration)
//	tel.Metrics.RecordCellsEvaluated("vm", 120)
//	tel.Metrics.RecordCycles(2)
//
// Metrics are exposed via Handler, or an HTTP server from
// StartMetricsServer (default :9090/metrics).
//
// # Events
//
// The engine publishes cycle, spill-block and pass-summary events:
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Delivery is synchronous unless EventsConfig.EnableAsync is set.
package telemetry
