// Package instrument decorates a storage adapter with error context,
// debug logging and OpenTelemetry metrics.
package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/engram-storage/internal/db"
)

const meterName = "github.com/thebtf/engram-storage/internal/db"

// Store wraps a db.Store. Every error it returns names the backend and the
// operation and still matches the adapter's sentinel errors via errors.Is.
type Store struct {
	next db.Store

	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

var _ db.Store = (*Store)(nil)

// Option configures Wrap.
type Option func(*options)

type options struct {
	provider metric.MeterProvider
}

// WithMeterProvider records metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.provider = mp }
}

// Wrap decorates next.
func Wrap(next db.Store, opts ...Option) (*Store, error) {
	o := options{provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.provider.Meter(meterName)

	calls, err := meter.Int64Counter("engram.storage.calls",
		metric.WithDescription("Storage operations invoked"))
	if err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}
	errs, err := meter.Int64Counter("engram.storage.errors",
		metric.WithDescription("Storage operations that returned an error"))
	if err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}
	latency, err := meter.Float64Histogram("engram.storage.duration",
		metric.WithDescription("Storage operation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}

	return &Store{next: next, calls: calls, failures: errs, latency: latency}, nil
}

// Unwrap returns the decorated adapter.
func (s *Store) Unwrap() db.Store { return s.next }

// Name returns the decorated adapter's name.
func (s *Store) Name() string { return s.next.Name() }

// observe records one finished operation and annotates err.
func (s *Store) observe(ctx context.Context, op string, start time.Time, err error) error {
	took := time.Since(start)
	attrs := metric.WithAttributes(
		attribute.String("backend", s.next.Name()),
		attribute.String("op", op),
	)
	s.calls.Add(ctx, 1, attrs)
	s.latency.Record(ctx, float64(took.Microseconds())/1000, attrs)

	if err == nil {
		log.Debug().Str("backend", s.next.Name()).Str("op", op).Dur("took", took).Msg("Storage op")
		return nil
	}
	s.failures.Add(ctx, 1, attrs)
	log.Debug().Err(err).Str("backend", s.next.Name()).Str("op", op).Dur("took", took).Msg("Storage op failed")
	return fmt.Errorf("%s %s: %w", s.next.Name(), op, err)
}

func (s *Store) Initialize(ctx context.Context) error {
	start := time.Now()
	return s.observe(ctx, "initialize", start, s.next.Initialize(ctx))
}

func (s *Store) Close() error {
	start := time.Now()
	return s.observe(context.Background(), "close", start, s.next.Close())
}
