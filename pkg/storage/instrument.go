// ABOUTME: Prometheus-instrumented Store wrapper
// ABOUTME: Records operation counts and latencies for any underlying adapter

package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// InstrumentedStore wraps a Store and records Prometheus metrics for every
// operation. Metrics are registered on the supplied registerer; pass nil to
// use the default registry.
type InstrumentedStore struct {
	next Store

	opsTotal    *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	recordBytes prometheus.Histogram
}

// NewInstrumentedStore wraps next with metrics collection.
func NewInstrumentedStore(next Store, reg prometheus.Registerer) *InstrumentedStore {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &InstrumentedStore{
		next: next,
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatstore_store_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatstore_store_operation_duration_seconds",
				Help:    "Duration of storage operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		recordBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatstore_store_record_bytes",
				Help:    "Size of written records in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
	}
}

// Get retrieves a value by key.
func (is *InstrumentedStore) Get(key string) ([]byte, bool, error) {
	start := time.Now()
	val, ok, err := is.next.Get(key)
	is.record("get", start, err)
	return val, ok, err
}

// Set inserts or replaces a value.
func (is *InstrumentedStore) Set(key string, value []byte) error {
	start := time.Now()
	err := is.next.Set(key, value)
	is.record("set", start, err)
	if err == nil {
		is.recordBytes.Observe(float64(len(value)))
	}
	return err
}

// Delete removes a key.
func (is *InstrumentedStore) Delete(key string) error {
	start := time.Now()
	err := is.next.Delete(key)
	is.record("delete", start, err)
	return err
}

func (is *InstrumentedStore) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	is.opsTotal.WithLabelValues(operation, status).Inc()
	is.opDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
