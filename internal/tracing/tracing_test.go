package tracing_test

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/studybench/internal/config"
	"github.com/torosent/studybench/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInitDisabledByDefault(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when tracing disabled")
	}

	// Tracer should return a no-op (no panic)
	tracer := p.Tracer()
	ctx, span := tracer.Start(context.Background(), "test")
	span.End()
	if !span.SpanContext().TraceID().IsValid() == false {
		// no-op tracer returns invalid IDs, which is fine
		_ = ctx
	}
}

func TestInitWithEndpointEnablesTracing(t *testing.T) {
	// We can't actually connect to an endpoint in unit tests,
	// but we verify the provider is configured correctly.
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:    "localhost:4317",
		Protocol:    "grpc",
		ServiceName: "test-service",
		SampleRate:  1.0,
		Insecure:    true,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true when tracing enabled")
	}
}

func TestInitHTTPProtocol(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4318",
		Protocol: "http",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("Init() with http protocol error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true")
	}
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4317",
		Protocol: "thrift",
		Insecure: true,
	})
	if err == nil {
		t.Fatal("Init() with unsupported protocol should return error")
	}
}

func TestInitInvalidSampleRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"negative", -0.5},
		{"above one", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracing.Init(context.Background(), config.TracingConfig{
				Endpoint:   "localhost:4317",
				Protocol:   "grpc",
				Insecure:   true,
				SampleRate: tt.rate,
			})
			if err == nil {
				t.Fatalf("Init() with sample_rate=%g should return error", tt.rate)
			}
		})
	}
}

func TestShouldPropagateOverride(t *testing.T) {
	falseVal := false
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:  "localhost:4317",
		Protocol:  "grpc",
		Insecure:  true,
		Propagate: &falseVal,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when explicitly disabled")
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider ShouldPropagate() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	// Tracer() on nil should return no-op, not panic
	tracer := p.Tracer()
	_, span := tracer.Start(context.Background(), "test")
	span.End()
}

func TestStartRequestSpan(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	tests := []struct {
		name         string
		service      string
		url          string
		wantSpanName string
	}{
		{"qido with url", "QIDO-RS", "https://example.test/studies/1/instances", "QIDO-RS GET"},
		{"wado without url", "WADO-RS", "", "WADO-RS GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			_, span := tracing.StartRequestSpan(context.Background(), tracer, tt.service, http.MethodGet, tt.url)
			span.End()

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if got := spans[0].Name; got != tt.wantSpanName {
				t.Errorf("span name = %q, want %q", got, tt.wantSpanName)
			}
			if spans[0].SpanKind != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", spans[0].SpanKind)
			}

			foundURL := false
			for _, attr := range spans[0].Attributes {
				if string(attr.Key) == "url.full" {
					foundURL = attr.Value.AsString() == tt.url
				}
			}
			if foundURL != (tt.url != "") {
				t.Errorf("url.full attribute presence = %v, want %v", foundURL, tt.url != "")
			}
		})
	}
}

func TestStartSpanNilTracer(t *testing.T) {
	ctx, span := tracing.StartSpan(context.Background(), nil, "iteration")
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	tracing.EndSpan(span, nil)
}

func TestStartSpanAttributes(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracing.StartSpan(context.Background(), tracer, "iteration", attribute.Int("benchmark.iteration", 3))
	tracing.EndSpan(span, nil, attribute.Int64("dicom.bytes_read", 42))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	got := map[string]int64{}
	for _, attr := range spans[0].Attributes {
		got[string(attr.Key)] = attr.Value.AsInt64()
	}
	if got["benchmark.iteration"] != 3 || got["dicom.bytes_read"] != 42 {
		t.Errorf("unexpected attributes %v", got)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-error")
	tracing.EndSpan(span, context.DeadlineExceeded)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status code = %d, want %d (Error)", spans[0].Status.Code, codes.Error)
	}
}

func TestEndSpanOk(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-ok")
	tracing.EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("span status code = %d, want %d (Ok)", spans[0].Status.Code, codes.Ok)
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "test-inject")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if got == "" {
		t.Error("traceparent header not injected")
	}
	// traceparent format: version-traceid-spanid-flags (e.g., 00-abc123...-def456...-01)
	if len(got) < 55 {
		t.Errorf("traceparent header too short: %q", got)
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	// Without a span in context, injection should not panic and not set traceparent
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
	))
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	got := headers.Get("Traceparent")
	if got != "" {
		t.Errorf("traceparent header should be empty without span, got %q", got)
	}
}
