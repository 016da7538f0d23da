package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/janitor/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "disabled", config: &config.TracingConfig{Enabled: false}},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "ratio",
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "janitor-test",
				Insecure:    true,
				Timeout:     time.Second,
			},
		},
		{
			name: "bad sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
		{
			name:    "missing endpoint",
			config:  &config.TracingConfig{Enabled: true, Sampler: "always"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("Expected Enabled() = %v", tt.config.Enabled)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = tracer.Shutdown(ctx)
		})
	}
}

func TestNoop(t *testing.T) {
	tracer := Noop()
	ctx, span := tracer.Start(context.Background(), "cleanup.tick")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("Expected noop span to have an invalid span context")
	}
	if TraceID(ctx) != "" {
		t.Errorf("Expected empty trace ID, got %q", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{strategy: SamplerAlways},
		{strategy: SamplerNever},
		{strategy: SamplerRatio, ratio: 0.25},
		{strategy: "", ratio: 0.1},
		{strategy: SamplerRatio, ratio: 1.5, wantErr: true},
		{strategy: SamplerRatio, ratio: -0.1, wantErr: true},
		{strategy: "random", wantErr: true},
	}

	for _, tt := range tests {
		_, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
		}
	}
}

func newRecordingTracer() (*Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return &Tracer{tracer: provider.Tracer("test"), provider: provider, enabled: true}, rec
}

func TestAttributesAndStatus(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.Start(context.Background(), "cleanup.tick")
	SetRunAttributes(span, "messages", "run-1")
	SetTickAttributes(span, 20, 20, true, "running")
	SetStatus(span, errors.New("boom"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrCategory] != "messages" || attrs[AttrRunID] != "run-1" {
		t.Errorf("Unexpected run attributes: %v", attrs)
	}
	if attrs[AttrDeleted] != "20" || attrs[AttrHasMore] != "true" {
		t.Errorf("Unexpected tick attributes: %v", attrs)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", spans[0].Status().Code)
	}
}

func TestSetRunAttributes_OmitsEmptyRun(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.Start(context.Background(), "cleanup.scan")
	SetRunAttributes(span, "feed_cache", "")
	span.End()

	for _, kv := range rec.Ended()[0].Attributes() {
		if string(kv.Key) == AttrRunID {
			t.Error("Expected run ID attribute to be omitted")
		}
	}
}

func TestHTTPMiddleware_ExtractsTraceparent(t *testing.T) {
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TraceID(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/api/cleanup", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	HTTPMiddleware(handler).ServeHTTP(httptest.NewRecorder(), req)

	if got != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, got)
	}
}
