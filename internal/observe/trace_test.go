package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogger_EnrichesBaseLogger(t *testing.T) {
	t.Parallel()
	tp, _ := newTestTracerProvider(t)

	var buf bytes.Buffer
	base := bufferLogger(&buf).With("component", "server")

	ctx, span := tp.Tracer("test").Start(context.Background(), "POST /v1/learn")
	defer span.End()

	Logger(ctx, base).Error("server: request failed", "status", 503)

	logged := buf.String()
	for _, want := range []string{
		"component=server",
		"trace_id=" + span.SpanContext().TraceID().String(),
		"span_id=" + span.SpanContext().SpanID().String(),
		"status=503",
	} {
		if !strings.Contains(logged, want) {
			t.Errorf("log output missing %q, got: %s", want, logged)
		}
	}
}

func TestLogger_NoSpanReturnsBase(t *testing.T) {
	t.Parallel()

	base := bufferLogger(&bytes.Buffer{})
	if got := Logger(context.Background(), base); got != base {
		t.Error("Logger without a span did not return the base logger")
	}
}

func TestLogger_NilBaseUsesDefault(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	slog.SetDefault(bufferLogger(&buf))

	Logger(context.Background(), nil).Info("cache reloaded")
	if !strings.Contains(buf.String(), "cache reloaded") {
		t.Errorf("default logger did not receive the record, got: %s", buf.String())
	}
}

func TestMarkFailed_RecordsErrorOnSpan(t *testing.T) {
	t.Parallel()
	tp, exp := newTestTracerProvider(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "POST /v1/learn")
	MarkFailed(ctx, errors.New("correction: storage failure: disk full"))
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status code = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if !strings.Contains(spans[0].Status.Description, "disk full") {
		t.Errorf("status description = %q, want it to mention the cause", spans[0].Status.Description)
	}
	var recorded bool
	for _, ev := range spans[0].Events {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Error("no exception event recorded on the span")
	}
}

func TestMarkFailed_NoSpan(t *testing.T) {
	t.Parallel()
	// Must not panic without a span in the context.
	MarkFailed(context.Background(), errors.New("boom"))
}

func TestMiddleware_LogsThroughInjectedLogger(t *testing.T) {
	m, _, _ := testSetup(t)

	var buf bytes.Buffer
	handler := Middleware(m, bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/learn", nil))

	cid := rec.Header().Get("X-Correlation-ID")
	if cid == "" {
		t.Fatal("X-Correlation-ID not set")
	}
	logged := buf.String()
	if !strings.Contains(logged, "request completed") {
		t.Errorf("injected logger missing completion record, got: %s", logged)
	}
	if !strings.Contains(logged, "trace_id="+cid) {
		t.Errorf("completion record missing trace_id=%s, got: %s", cid, logged)
	}
	if !strings.Contains(logged, "status=503") {
		t.Errorf("completion record missing status, got: %s", logged)
	}
}

func TestNewResource_DescribesEngine(t *testing.T) {
	t.Parallel()

	res, err := newResource(ProviderConfig{
		ServiceVersion: "v1.2.3",
		StorageBackend: "sqlite",
		MinConfidence:  0.55,
	})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}

	want := map[attribute.Key]string{
		"service.name":    "quillfix",
		"service.version": "v1.2.3",
		StorageBackendKey: "sqlite",
		MinConfidenceKey:  "0.55",
	}
	for k, v := range want {
		got, ok := res.Set().Value(k)
		if !ok {
			t.Errorf("resource missing %s", k)
			continue
		}
		if got.Emit() != v {
			t.Errorf("%s = %q, want %q", k, got.Emit(), v)
		}
	}
}

func TestNewResource_OmitsUnsetEngineAttributes(t *testing.T) {
	t.Parallel()

	res, err := newResource(ProviderConfig{ServiceName: "quillfix-test"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	for _, k := range []attribute.Key{StorageBackendKey, MinConfidenceKey} {
		if _, ok := res.Set().Value(k); ok {
			t.Errorf("resource has %s, want it omitted", k)
		}
	}
	if got, _ := res.Set().Value("service.name"); got.AsString() != "quillfix-test" {
		t.Errorf("service.name = %q, want %q", got.AsString(), "quillfix-test")
	}
}
