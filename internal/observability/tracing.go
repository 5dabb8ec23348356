package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danmuck/frameecho"

// StartSessionSpan opens one span covering a whole connection session.
// It is a no-op unless the host process installs a TracerProvider.
func StartSessionSpan(ctx context.Context, role, remote string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "frameecho."+role+".session",
		trace.WithSpanKind(spanKind(role)),
		trace.WithAttributes(
			attribute.String("net.peer.addr", remote),
			attribute.String("frameecho.role", role),
		),
	)
}

// RecordFrameEvent annotates the session span with one read outcome.
func RecordFrameEvent(span trace.Span, outcome string, n int) {
	span.AddEvent("frame.read", trace.WithAttributes(
		attribute.String("frame.outcome", outcome),
		attribute.Int("frame.bytes", n),
	))
}

// EndSessionSpan closes span, marking it failed when err is a transport fault.
func EndSessionSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func spanKind(role string) trace.SpanKind {
	if role == RoleClient {
		return trace.SpanKindClient
	}
	return trace.SpanKindServer
}
