package otelhelper

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on span together with attrs. A canceled or timed out
// context marks the span with CanceledKey and leaves its status unset; any
// other error sets the status to Error.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)

	attrs = append(attrs, attribute.Bool(CanceledKey, canceled))

	span.SetAttributes(attrs...)
	span.RecordError(err, trace.WithAttributes(attrs...))

	if canceled {
		return
	}

	span.SetStatus(codes.Error, err.Error())
}
