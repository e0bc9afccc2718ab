package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	signalsTotal    *prometheus.CounterVec
	approvedGauge   prometheus.Gauge
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_fetches_total",
				Help: "Total number of candle fetches by outcome",
			},
			[]string{"outcome", "timeframe"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		rejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_filter_rejections_total",
				Help: "Instruments rejected by filter layer",
			},
			[]string{"layer"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_signals_total",
				Help: "Valid consensus signals by direction",
			},
			[]string{"direction"},
		),
		approvedGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairscan_approved_instruments",
				Help: "Instruments approved by the last filter cycle",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records a candle fetch attempt outcome.
func (r *Recorder) RecordFetch(outcome, tf string) {
	r.fetchesTotal.WithLabelValues(outcome, tf).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordApprovedInstruments records the approved count of a filter cycle.
func (r *Recorder) RecordApprovedInstruments(n int) {
	r.approvedGauge.Set(float64(n))
}

// RecordRejection records a filter rejection by layer.
func (r *Recorder) RecordRejection(layer string) {
	r.rejectionsTotal.WithLabelValues(layer).Inc()
}

// RecordSignal records a published consensus signal.
func (r *Recorder) RecordSignal(direction string) {
	r.signalsTotal.WithLabelValues(direction).Inc()
}
