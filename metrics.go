package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sharebridge",
		Name:      "operations_total",
		Help:      "requests served, by operation and result",
	}, []string{"op", "result"})

	durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sharebridge",
		Name:      "operation_duration_seconds",
		Help:      "time spent serving each operation",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"op"})
)

func init() {
	registry.MustRegister(operations, durations)
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operations.WithLabelValues(op, result).Inc()
	durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
