package otelhelper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/taskgraph/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(t.Context(), tracer, "taskgraph.node",
		attribute.String(otelhelper.NodeIDKey, "compile"))
	otelhelper.SetError(span, errors.New("boom"), attribute.String(otelhelper.NodeStateKey, "failed"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	assert.Equal(t, "taskgraph.node", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.NodeIDKey, "compile"))
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.NodeStateKey, "failed"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool(otelhelper.CanceledKey, false))

	var names []string
	for _, ev := range spans[0].Events() {
		names = append(names, ev.Name)
	}

	assert.Contains(t, names, "exception")
}

func TestSetError_CancellationIsNotAFault(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := otelhelper.StartSpan(t.Context(), provider.Tracer("test"), "taskgraph.run")
	otelhelper.SetError(span, fmt.Errorf("run stopped: %w", context.Canceled))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Bool(otelhelper.CanceledKey, true))
}

func TestDefaultTracer(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, otelhelper.DefaultTracer())
}
