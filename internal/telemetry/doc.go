// Package telemetry provides OpenTelemetry tracing and metrics for learnd.
//
// Spans and OTEL metrics are exported over OTLP gRPC to a collector. When
// telemetry is disabled, Tracer and Meter fall back to the global no-op
// providers so instrumented code never has to check.
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	defer tel.Shutdown(ctx)
//	tracer := tel.Tracer("learnd/engine")
package telemetry
