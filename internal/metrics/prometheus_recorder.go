package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pbuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry         *prom.Registry
	operationSeconds *prom.HistogramVec
	operations       *prom.CounterVec
	lockContention   *prom.CounterVec
	lastSuccess      *prom.GaugeVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs the metrics and registers them on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		operationSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of base create/update and package build operations",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
		}, []string{"operation", "backend", "outcome"}),
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations by outcome",
		}, []string{"operation", "backend", "outcome"}),
		lockContention: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Create/update attempts abandoned because the base lock stayed busy",
		}, []string{"key"}),
		lastSuccess: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful operation",
		}, []string{"operation", "backend"}),
	}
	reg.MustRegister(pr.operationSeconds, pr.operations, pr.lockContention, pr.lastSuccess)
	return pr
}

func (p *PrometheusRecorder) ObserveOperation(op Operation, backend string, d time.Duration, outcome Outcome) {
	if p == nil || p.operations == nil {
		return
	}
	p.operationSeconds.WithLabelValues(string(op), backend, string(outcome)).Observe(d.Seconds())
	p.operations.WithLabelValues(string(op), backend, string(outcome)).Inc()
	if outcome == OutcomeSuccess {
		p.lastSuccess.WithLabelValues(string(op), backend).SetToCurrentTime()
	}
}

func (p *PrometheusRecorder) IncLockContention(key string) {
	if p == nil || p.lockContention == nil {
		return
	}
	p.lockContention.WithLabelValues(key).Inc()
}

// WriteTextfile writes the current values in the Prometheus text format,
// atomically replacing path.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
