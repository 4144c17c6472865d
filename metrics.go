package grpcmetrics

import (
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName identifies the meter scope for every instrument this
// package creates.
const instrumentationName = "github.com/louisbranch/grpcmetrics"

// ErrConfiguration reports that the instrument set could not be built from
// the supplied provider and options. It is returned only by NewServerMetrics;
// recording never fails after construction.
var ErrConfiguration = errors.New("grpcmetrics: configuration error")

// ServerMetrics is the process-wide instrument set shared by every
// intercepted call. It is immutable after construction; the instruments
// synchronize their own record operations, so concurrent calls record
// without additional locking.
type ServerMetrics struct {
	started  metric.Int64Counter
	handled  metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter

	trackInFlight bool
	constAttrs    []attribute.KeyValue
	classify      Classifier
}

// NewServerMetrics creates the server instrument set from provider. A nil
// provider falls back to the globally registered meter provider.
//
// Instrument creation is the only failure path; a provider that rejects one
// of the required instruments yields an error matching ErrConfiguration and
// no partial set.
func NewServerMetrics(provider metric.MeterProvider, opts ...Option) (*ServerMetrics, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	started, err := meter.Int64Counter(
		cfg.instrumentName("grpc_server_started"),
		metric.WithDescription("Total number of RPCs started on the server."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create started counter: %w", ErrConfiguration, err)
	}
	handled, err := meter.Int64Counter(
		cfg.instrumentName("grpc_server_handled"),
		metric.WithDescription("Total number of RPCs completed on the server."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create handled counter: %w", ErrConfiguration, err)
	}
	duration, err := meter.Float64Histogram(
		cfg.instrumentName("grpc_server_handling_duration_seconds"),
		metric.WithDescription("End-to-end RPC handling duration on the server."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cfg.buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create handling duration histogram: %w", ErrConfiguration, err)
	}

	m := &ServerMetrics{
		started:       started,
		handled:       handled,
		duration:      duration,
		trackInFlight: cfg.trackInFlight,
		constAttrs:    cfg.constAttrs,
		classify:      cfg.classify,
	}
	if cfg.trackInFlight {
		inFlight, err := meter.Int64UpDownCounter(
			cfg.instrumentName("grpc_server_active_requests"),
			metric.WithDescription("Current number of active server requests."),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: create active requests counter: %w", ErrConfiguration, err)
		}
		m.inFlight = inFlight
	}
	return m, nil
}

// record shields request handling from a misbehaving provider: a panic out
// of an instrument is logged and dropped, never propagated to the caller.
func (m *ServerMetrics) record(method string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("grpcmetrics: record %s: %v", method, r)
		}
	}()
	fn()
}
