package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the collected bootstrap metrics
type Metrics struct {
	probeAttempts    *prometheus.CounterVec
	readySeconds     *prometheus.GaugeVec
	bootstrapSuccess prometheus.Gauge
	totalErrors      *prometheus.CounterVec
}

// New generates new metrics and registers them with the default registerer
func New() *Metrics {
	probeAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bootstrap_probe_attempts",
		Help: "total number of readiness probes per target database",
	},
		[]string{"target"},
	)

	readySeconds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bootstrap_ready_seconds",
		Help: "seconds a target database took to become reachable",
	},
		[]string{"target"},
	)

	bootstrapSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bootstrap_success",
		Help: "is 1 when the bootstrap completed successfully, otherwise 0",
	},
	)

	totalErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bootstrap_errors",
		Help: "total number of errors during the bootstrap",
	},
		[]string{"target", "phase"},
	)

	prometheus.MustRegister(probeAttempts)
	prometheus.MustRegister(readySeconds)
	prometheus.MustRegister(bootstrapSuccess)
	prometheus.MustRegister(totalErrors)

	return &Metrics{
		probeAttempts:    probeAttempts,
		readySeconds:     readySeconds,
		bootstrapSuccess: bootstrapSuccess,
		totalErrors:      totalErrors,
	}
}

// CountProbe increases the probe counter for the given target
func (m *Metrics) CountProbe(target string) {
	if m == nil {
		return
	}
	m.probeAttempts.With(prometheus.Labels{"target": target}).Inc()
}

// SetReadySeconds records how long the given target took to become reachable
func (m *Metrics) SetReadySeconds(target string, seconds float64) {
	if m == nil {
		return
	}
	m.readySeconds.With(prometheus.Labels{"target": target}).Set(seconds)
}

// SetSuccess records the terminal bootstrap outcome
func (m *Metrics) SetSuccess(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.bootstrapSuccess.Set(1)
	} else {
		m.bootstrapSuccess.Set(0)
	}
}

// CountError increases the error counter for the given target and phase
func (m *Metrics) CountError(target, phase string) {
	if m == nil {
		return
	}
	m.totalErrors.With(prometheus.Labels{"target": target, "phase": phase}).Inc()
}
