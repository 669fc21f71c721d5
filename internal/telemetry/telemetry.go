// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package telemetry records check and stress-run metrics on a private
// Prometheus registry.
package telemetry

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"code.hybscloud.com/lincheck"
)

const namespace = "lincheck"

// Metrics holds the collectors of one process.
type Metrics struct {
	reg *prometheus.Registry

	checks        *prometheus.CounterVec
	checkSteps    prometheus.Histogram
	checkDuration prometheus.Histogram
	historyOps    prometheus.Histogram
	stressOps     *prometheus.CounterVec
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Completed checks by outcome.",
		}, []string{"outcome"}),
		checkSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_steps",
			Help:      "Oracle evaluations per check.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 14),
		}),
		checkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Wall-clock duration of checks.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
		}),
		historyOps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_ops",
			Help:      "Operations per checked history.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		stressOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stress_ops_total",
			Help:      "Operations recorded by stress runs, by kind.",
		}, []string{"kind"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveCheck records the result of checking h.
func (m *Metrics) ObserveCheck(h lincheck.History, res lincheck.Result) {
	m.checks.WithLabelValues(res.Outcome.String()).Inc()
	m.checkSteps.Observe(float64(res.Steps))
	m.checkDuration.Observe(res.Elapsed.Seconds())
	m.historyOps.Observe(float64(len(h)))
}

// ObserveStress records the operations of a stress-run history.
func (m *Metrics) ObserveStress(h lincheck.History) {
	for _, op := range h {
		m.stressOps.WithLabelValues(op.Kind.String()).Inc()
	}
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.reg), "writing metrics to %s", path)
}
