package grpcmetrics

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// defaultHistogramBuckets are the handling-duration boundaries in seconds
// used when no override is configured.
var defaultHistogramBuckets = []float64{
	0.001, 0.005, 0.01, 0.015, 0.020, 0.025, 0.50, 0.75, 1.0, 2.0,
}

// config collects the optional construction settings for a ServerMetrics.
// It is validated once by NewServerMetrics and never mutated afterwards.
type config struct {
	prefix        string
	buckets       []float64
	constAttrs    []attribute.KeyValue
	trackInFlight bool
	classify      Classifier
}

// Option adjusts instrument-set construction.
type Option func(*config)

// WithNamePrefix prepends prefix to every instrument name. A trailing
// underscore is optional; one is inserted when missing.
func WithNamePrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = strings.TrimSpace(prefix)
	}
}

// WithHistogramBuckets overrides the handling-duration histogram boundaries.
// Boundaries are in seconds and must be strictly increasing.
func WithHistogramBuckets(buckets []float64) Option {
	return func(c *config) {
		c.buckets = buckets
	}
}

// WithConstAttributes attaches attrs to every recorded measurement, typically
// static service metadata shared by all calls.
func WithConstAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *config) {
		c.constAttrs = append(c.constAttrs, attrs...)
	}
}

// WithInFlight toggles the active-requests up-down counter. Enabled by
// default.
func WithInFlight(enabled bool) Option {
	return func(c *config) {
		c.trackInFlight = enabled
	}
}

// WithClassifier overrides how handler results map to recorded outcomes.
// See DefaultClassifier for the default mapping.
func WithClassifier(classify Classifier) Option {
	return func(c *config) {
		c.classify = classify
	}
}

// defaultConfig returns the settings used when no options are supplied.
func defaultConfig() config {
	return config{
		buckets:       defaultHistogramBuckets,
		trackInFlight: true,
		classify:      DefaultClassifier,
	}
}

// validate rejects settings that would produce a broken instrument set.
func (c *config) validate() error {
	if len(c.buckets) == 0 {
		return errors.New("histogram buckets must not be empty")
	}
	for i := 1; i < len(c.buckets); i++ {
		if c.buckets[i] <= c.buckets[i-1] {
			return fmt.Errorf("histogram buckets must be strictly increasing: bucket %d (%v) <= bucket %d (%v)",
				i, c.buckets[i], i-1, c.buckets[i-1])
		}
	}
	if strings.ContainsAny(c.prefix, " \t\n/") {
		return fmt.Errorf("instrument name prefix %q contains invalid characters", c.prefix)
	}
	if c.classify == nil {
		return errors.New("classifier is required")
	}
	return nil
}

// instrumentName applies the configured prefix to a base instrument name.
func (c *config) instrumentName(name string) string {
	if c.prefix == "" {
		return name
	}
	return strings.TrimSuffix(c.prefix, "_") + "_" + name
}
