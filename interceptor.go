package grpcmetrics

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
)

// Attribute keys attached to every measurement.
const (
	serviceAttrKey = "grpc_service"
	methodAttrKey  = "grpc_method"
	kindAttrKey    = "grpc_kind"
	outcomeAttrKey = "grpc_outcome"
	codeAttrKey    = "grpc_code"
)

// Call kinds recorded in the grpc_kind attribute.
const (
	kindUnary        = "unary"
	kindServerStream = "server_stream"
	kindClientStream = "client_stream"
	kindBidiStream   = "bidi_stream"
)

// callIdentity is the immutable {service, method, kind} tuple resolved once
// at call entry and used only as attribute data.
type callIdentity struct {
	service string
	method  string
	kind    string
}

// parseFullMethod splits a gRPC full method name ("/package.Service/Method")
// into a call identity. Malformed names keep the whole value as the method
// with an unknown service rather than failing the call.
func parseFullMethod(fullMethod, kind string) callIdentity {
	name := strings.TrimPrefix(fullMethod, "/")
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return callIdentity{service: "unknown", method: name, kind: kind}
	}
	return callIdentity{service: name[:i], method: name[i+1:], kind: kind}
}

// streamKind maps the stream flags to a call kind.
func streamKind(info *grpc.StreamServerInfo) string {
	switch {
	case info.IsClientStream && info.IsServerStream:
		return kindBidiStream
	case info.IsClientStream:
		return kindClientStream
	default:
		return kindServerStream
	}
}

// activeCall tracks one in-flight measurement cycle. finish runs in a defer
// so the handled counter, histogram observation, and in-flight decrement are
// committed exactly once on every exit path.
type activeCall struct {
	metrics   *ServerMetrics
	attrs     []attribute.KeyValue
	startedAt time.Time
}

// start resolves the identity attributes, increments the started counter and
// the in-flight counter, and captures the start timestamp.
func (m *ServerMetrics) start(ctx context.Context, id callIdentity) *activeCall {
	attrs := make([]attribute.KeyValue, 0, len(m.constAttrs)+5)
	attrs = append(attrs, m.constAttrs...)
	attrs = append(attrs,
		attribute.String(serviceAttrKey, id.service),
		attribute.String(methodAttrKey, id.method),
		attribute.String(kindAttrKey, id.kind),
	)
	call := &activeCall{metrics: m, attrs: attrs, startedAt: time.Now()}
	m.record(id.method, func() {
		set := metric.WithAttributes(attrs...)
		m.started.Add(ctx, 1, set)
		if m.trackInFlight {
			m.inFlight.Add(ctx, 1, set)
		}
	})
	return call
}

// finish commits the completion measurements for outcome. The elapsed
// duration spans from start to now, so streaming calls are measured end to
// end rather than per message.
func (c *activeCall) finish(ctx context.Context, outcome Outcome) {
	elapsed := time.Since(c.startedAt).Seconds()
	m := c.metrics
	identityAttrs := c.attrs[:len(c.attrs):len(c.attrs)]
	outcomeAttrs := append(identityAttrs,
		attribute.String(outcomeAttrKey, string(outcome.Kind)),
		attribute.String(codeAttrKey, outcome.Code.String()),
	)
	m.record(methodFromAttrs(identityAttrs), func() {
		if m.trackInFlight {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(identityAttrs...))
		}
		set := metric.WithAttributes(outcomeAttrs...)
		m.handled.Add(ctx, 1, set)
		m.duration.Record(ctx, elapsed, set)
	})
}

// methodFromAttrs recovers the method attribute for log context.
func methodFromAttrs(attrs []attribute.KeyValue) string {
	for _, kv := range attrs {
		if string(kv.Key) == methodAttrKey {
			return kv.Value.AsString()
		}
	}
	return "unknown"
}

// UnaryServerInterceptor returns an interceptor that records one measurement
// cycle per unary call. The handler's response and error pass through
// unmodified; a handler panic is recorded as a transport failure and
// re-raised.
func (m *ServerMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		call := m.start(ctx, parseFullMethod(info.FullMethod, kindUnary))
		defer func() {
			if r := recover(); r != nil {
				call.finish(ctx, panicOutcome())
				panic(r)
			}
			call.finish(ctx, m.classify(ctx, err))
		}()
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns an interceptor that records one measurement
// cycle per stream. The timer spans from stream open to final close;
// cancellation mid-stream is a normal terminal state and still decrements the
// in-flight counter exactly once.
func (m *ServerMetrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx := ss.Context()
		call := m.start(ctx, parseFullMethod(info.FullMethod, streamKind(info)))
		defer func() {
			if r := recover(); r != nil {
				call.finish(ctx, panicOutcome())
				panic(r)
			}
			call.finish(ctx, m.classify(ctx, err))
		}()
		return handler(srv, ss)
	}
}
