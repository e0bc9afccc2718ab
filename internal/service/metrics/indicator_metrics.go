package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	IndicatorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pairscan",
			Subsystem: "indicators",
			Name:      "latency_seconds",
			Help:      "Latency of indicator service calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	IndicatorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairscan",
			Subsystem: "indicators",
			Name:      "errors_total",
			Help:      "Errors by indicator service endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(IndicatorLatency, IndicatorErrors)
	})
}
