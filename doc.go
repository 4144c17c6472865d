// Package grpcmetrics provides gRPC server interceptors that record
// OpenTelemetry metrics for every call handled by a server.
//
// The package separates two concerns:
//
// # Instrument Set
//
// ServerMetrics holds the instruments (started/handled counters, a handling
// duration histogram, and an active-requests up-down counter) created once
// from a caller-supplied meter provider. Construction is the only failure
// path; after NewServerMetrics returns, recording never errors.
//
// # Interceptors
//
// UnaryServerInterceptor and StreamServerInterceptor wrap each inbound call:
// they resolve the call identity from the full method name, time the handler
// end to end, classify the outcome, and record exactly one measurement cycle
// per call on every exit path, including panics and cancellation. Handler
// results pass through unmodified; metrics are strictly a side channel.
package grpcmetrics
