// Package telemetry provides observability instrumentation for the djx
// pipeline: structured logging with zerolog, distributed tracing with
// OpenTelemetry, and Prometheus metrics.
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Attach it to the context so downstream packages can pick it up:
//
//	ctx = tel.WithContext(ctx)
package telemetry
