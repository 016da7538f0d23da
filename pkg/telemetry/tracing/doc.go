// Package tracing wires OpenTelemetry tracing for the janitor.
//
// Spans are created around every RPC call and every tick. When tracing
// is disabled the tracer is a noop and span creation costs almost nothing.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "cleanup.tick")
//	defer span.End()
//	tracing.SetRunAttributes(span, "messages", runID)
//
// Incoming W3C traceparent headers are honored by HTTPMiddleware.
package tracing
