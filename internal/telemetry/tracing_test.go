package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartOperationNamespacesAttributes(t *testing.T) {
	rec := recordSpans(t)

	day := time.Date(2026, 3, 2, 6, 0, 0, 0, time.FixedZone("AST", 3*60*60))
	_, span := StartOperation(context.Background(), "AcceptSuggestion", map[string]any{
		"window_id":       "w-1",
		"kfsh.orders":     []string{"o-1", "o-2"},
		"minutes":         90,
		"suggested_start": day,
	})
	EndOperation(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	got := attrMap(spans[0].Attributes())

	if got["kfsh.operation"].AsString() != "AcceptSuggestion" {
		t.Errorf("kfsh.operation = %q", got["kfsh.operation"].AsString())
	}
	if got["kfsh.window_id"].AsString() != "w-1" {
		t.Errorf("kfsh.window_id = %q", got["kfsh.window_id"].AsString())
	}
	if got["kfsh.minutes"].AsInt64() != 90 {
		t.Errorf("kfsh.minutes = %d", got["kfsh.minutes"].AsInt64())
	}
	if len(got["kfsh.orders"].AsStringSlice()) != 2 {
		t.Errorf("kfsh.orders = %v, want no double prefix", got["kfsh.orders"].AsStringSlice())
	}
	if got["kfsh.suggested_start"].AsString() != "2026-03-02T03:00:00Z" {
		t.Errorf("kfsh.suggested_start = %q", got["kfsh.suggested_start"].AsString())
	}
	if got["kfsh.outcome"].AsString() != "ok" {
		t.Errorf("kfsh.outcome = %q", got["kfsh.outcome"].AsString())
	}
	if _, ok := got["window_id"]; ok {
		t.Error("unprefixed key leaked onto the span")
	}
}

func TestEndOperationMarksErrors(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartOperation(context.Background(), "ConfirmReservation", nil)
	EndOperation(span, errors.New("INVALID_TRANSITION"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Fatalf("status = %v, want error", s.Status().Code)
	}
	if attrMap(s.Attributes())["kfsh.outcome"].AsString() != "error" {
		t.Fatal("outcome not recorded as error")
	}
	if len(s.Events()) == 0 {
		t.Fatal("error event not recorded")
	}
}

func TestResourceAttributesSkipEmptyFields(t *testing.T) {
	full := attrMap(resourceAttributes(TracerConfig{
		ServiceName:    "kfsh-scheduler",
		ServiceVersion: "1.2.3",
		Environment:    "production",
		InstanceID:     "node-a",
		PlantTimezone:  "Asia/Riyadh",
	}))
	if full["kfsh.plant.timezone"].AsString() != "Asia/Riyadh" {
		t.Errorf("plant timezone = %q", full["kfsh.plant.timezone"].AsString())
	}
	if full["service.instance.id"].AsString() != "node-a" {
		t.Errorf("instance id = %q", full["service.instance.id"].AsString())
	}
	if full["deployment.environment"].AsString() != "production" {
		t.Errorf("environment = %q", full["deployment.environment"].AsString())
	}

	bare := resourceAttributes(TracerConfig{ServiceName: "kfsh-scheduler", ServiceVersion: "1.2.3"})
	if len(bare) != 2 {
		t.Fatalf("bare resource attrs = %v", bare)
	}
}

func TestSamplerFollowsParentDecision(t *testing.T) {
	sampled := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	params := sdktrace.SamplingParameters{
		ParentContext: trace.ContextWithRemoteSpanContext(context.Background(), sampled),
		TraceID:       sampled.TraceID(),
		Name:          "CreateReservation",
	}

	if got := samplerFor(0).ShouldSample(params).Decision; got != sdktrace.RecordAndSample {
		t.Fatalf("sampled parent with rate 0: decision %v, want RecordAndSample", got)
	}

	root := sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: trace.TraceID{2}, Name: "root"}
	if got := samplerFor(0).ShouldSample(root).Decision; got != sdktrace.Drop {
		t.Fatalf("root span with rate 0: decision %v, want Drop", got)
	}
	if got := samplerFor(1).ShouldSample(root).Decision; got != sdktrace.RecordAndSample {
		t.Fatalf("root span with rate 1: decision %v, want RecordAndSample", got)
	}
}
