// Package tracing opens OpenTelemetry spans around ledger operations.
//
// Spans go to whatever TracerProvider is installed globally; with none installed
// they are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

const instrumentation = "trustledger"

// Start opens a span named "<ledger>.<operation>" tagged with the caller.
func Start(ctx context.Context, ledger, operation string, caller id.Address) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, ledger+"."+operation,
		trace.WithAttributes(
			attribute.String("ledger", ledger),
			attribute.String("caller", caller.String()),
		),
	)
}

// End closes the span, marking it failed with the error code when err is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		code := dErrors.CodeOf(err)
		span.SetAttributes(attribute.String("outcome", string(code)))
		if code == dErrors.CodeInternal {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	} else {
		span.SetAttributes(attribute.String("outcome", "ok"))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
