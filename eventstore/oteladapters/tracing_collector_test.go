package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/eventrica/eventric-stream/eventstore/oteladapters"
)

func Test_TracingCollector_RecordsAppendSpans(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	tracer := trace.NewTracerProvider(trace.WithSyncer(exporter)).Tracer("eventstore")
	collector := oteladapters.NewTracingCollector(tracer)

	// act: the span shape the stream emits for an append
	_, spanCtx := collector.StartSpan(context.Background(), "eventstore.append", map[string]string{
		"operation":   "append",
		"event_count": "2",
	})
	spanCtx.AddAttribute("to_position", "7")
	collector.FinishSpan(spanCtx, "success", map[string]string{
		"from_position": "6",
		"to_position":   "7",
	})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "eventstore.append", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)
	assertSpanHasAttribute(t, span, "operation", "append")
	assertSpanHasAttribute(t, span, "event_count", "2")
	assertSpanHasAttribute(t, span, "to_position", "7")
}

func Test_TracingCollector_MapsStatusesToSpanCodes(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	tracer := trace.NewTracerProvider(trace.WithSyncer(exporter)).Tracer("eventstore")
	collector := oteladapters.NewTracingCollector(tracer)

	testCases := []struct {
		status              string
		expectedCode        codes.Code
		expectedDescription string
	}{
		{"success", codes.Ok, ""},
		{"error", codes.Error, "Operation failed"},
		{"canceled", codes.Error, "Operation cancelled"},
		{"conflict", codes.Error, "Concurrency conflict"},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			exporter.Reset()

			// act
			_, spanCtx := collector.StartSpan(context.Background(), "eventstore.append", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)
			assert.Equal(t, tc.expectedDescription, spans[0].Status.Description)
		})
	}
}

func Test_TracingCollector_AttachesErrorDetails(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	tracer := trace.NewTracerProvider(trace.WithSyncer(exporter)).Tracer("eventstore")
	collector := oteladapters.NewTracingCollector(tracer)

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "eventstore.query", nil)
	collector.FinishSpan(spanCtx, "error", map[string]string{"error_type": "storage_error"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assertSpanHasAttribute(t, spans[0], "error_type", "storage_error")
}

func Test_TracingCollector_PropagatesTheParentSpan(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	tracer := trace.NewTracerProvider(trace.WithSyncer(exporter)).Tracer("eventstore")
	collector := oteladapters.NewTracingCollector(tracer)

	parentCtx, parentSpan := tracer.Start(context.Background(), "handle-command")
	defer parentSpan.End()

	// act
	childCtx, childSpanCtx := collector.StartSpan(parentCtx, "eventstore.append", nil)
	collector.FinishSpan(childSpanCtx, "success", nil)

	// assert
	assert.NotEqual(t, parentCtx, childCtx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "eventstore.append", spans[0].Name)
	assert.Equal(t, parentSpan.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			return
		}
	}
	assert.Failf(t, "missing span attribute", "%s=%s", key, expectedValue)
}
