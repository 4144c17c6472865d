package grpcmetrics

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// OutcomeKind is the coarse classification of how a call terminated.
type OutcomeKind string

const (
	// OutcomeOK marks a call that completed without an error.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeError marks a call that completed with a status code attached.
	OutcomeError OutcomeKind = "error"
	// OutcomeCancelled marks a call terminated by an explicit cancellation
	// signal, either from the context or the returned status.
	OutcomeCancelled OutcomeKind = "cancelled"
	// OutcomeTransportFailure marks a call that ended with a
	// non-classifiable fault, such as a non-status error or a panic.
	OutcomeTransportFailure OutcomeKind = "transport_failure"
)

// Outcome is the per-call termination classification recorded as metric
// attributes. It exists only for the single recording event.
type Outcome struct {
	Kind OutcomeKind
	Code codes.Code
}

// Classifier maps a handler result to an Outcome. The context is the call
// context observed after the handler returned, so deadline and cancellation
// state are visible.
type Classifier func(ctx context.Context, err error) Outcome

// DefaultClassifier implements the standard mapping:
//   - nil error: ok
//   - context.Canceled or status code Canceled: cancelled
//   - context.DeadlineExceeded: error with code DeadlineExceeded
//   - any error carrying a gRPC status: error with that code
//   - anything else: transport failure
func DefaultClassifier(ctx context.Context, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeOK, Code: codes.OK}
	}
	if errors.Is(err, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		return Outcome{Kind: OutcomeCancelled, Code: codes.Canceled}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeError, Code: codes.DeadlineExceeded}
	}
	st, ok := status.FromError(err)
	if !ok {
		return Outcome{Kind: OutcomeTransportFailure, Code: codes.Unknown}
	}
	if st.Code() == codes.Canceled {
		return Outcome{Kind: OutcomeCancelled, Code: codes.Canceled}
	}
	return Outcome{Kind: OutcomeError, Code: st.Code()}
}

// panicOutcome classifies a handler panic. The panic itself is re-raised
// untouched; only the recorded attributes use this value.
func panicOutcome() Outcome {
	return Outcome{Kind: OutcomeTransportFailure, Code: codes.Internal}
}
