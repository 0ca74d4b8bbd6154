// Package metrics exposes the progress of imputation runs as Prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed imputations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed imputations.
	OutcomeError = "error"
)

// Collector records the progress of imputation runs.  It implements
// impute.Observer.
type Collector struct {
	proposals   *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	iterations  prometheus.Histogram
	imputations *prometheus.CounterVec
}

// New returns a Collector whose collectors are not yet registered.
func New() *Collector {
	return &Collector{
		proposals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smcfcs",
				Name:      "proposals_total",
				Help:      "Total number of values drawn from the covariate models, by variable.",
			},
			[]string{"variable"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smcfcs",
				Name:      "rejections_total",
				Help:      "Total number of rejected proposals, by variable.",
			},
			[]string{"variable"},
		),
		iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "smcfcs",
				Name:      "iteration_seconds",
				Help:      "Duration of a Gibbs iteration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		imputations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smcfcs",
				Name:      "imputations_total",
				Help:      "Total number of imputations, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// Register attaches the collectors to the supplied registerer.
func (c *Collector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.proposals,
		c.rejections,
		c.iterations,
		c.imputations,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCovariate records the proposals drawn to impute the missing
// values of a variable.  Every proposal beyond the first for each value
// was preceded by a rejection.
func (c *Collector) ObserveCovariate(variable string, proposals, imputed int) {
	c.proposals.WithLabelValues(variable).Add(float64(proposals))
	if r := proposals - imputed; r > 0 {
		c.rejections.WithLabelValues(variable).Add(float64(r))
	}
}

// ObserveIteration records the duration of an iteration.
func (c *Collector) ObserveIteration(imputation, iteration int, elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	c.iterations.Observe(elapsed.Seconds())
}

// ObserveImputation records the outcome of an imputation.
func (c *Collector) ObserveImputation(imputation int, err error) {
	label := OutcomeSuccess
	if err != nil {
		label = OutcomeError
	}
	c.imputations.WithLabelValues(label).Inc()
}
