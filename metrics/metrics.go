// Package metrics exposes Prometheus collectors for operation submission
// and multi-chain aggregation. A nil *Metrics records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aa"

// Rejection classes.
const (
	ClassRetryable = "retryable"
	ClassFatal     = "fatal"
)

// Multi-chain branches.
const (
	BranchEnable = "enable"
	BranchDirect = "direct"
	BranchMerkle = "merkle"
)

var attemptBuckets = []float64{1, 2, 3, 4, 5, 8, 13}

// Metrics groups all collectors.
type Metrics struct {
	// ---- Submission ----

	Submitted        prometheus.Counter
	Accepted         prometheus.Counter
	Rejections       *prometheus.CounterVec
	FeeBumps         prometheus.Counter
	RetriesExhausted prometheus.Counter
	Attempts         prometheus.Histogram

	// ---- Transport ----

	BundlerFailures *prometheus.CounterVec

	// ---- Multi-chain ----

	Batches *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "operations_submitted_total",
			Help: "Submission attempts sent to the bundler.",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "operations_accepted_total",
			Help: "Operations accepted by the bundler.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bundler_rejections_total",
			Help: "Bundler rejections by class.",
		}, []string{"class"}),
		FeeBumps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fee_bumps_total",
			Help: "Fee cap escalations after a replacement rejection.",
		}),
		RetriesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "retries_exhausted_total",
			Help: "Operations abandoned after the last retry.",
		}),
		Attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "attempts_per_operation",
			Help:    "Submission attempts needed for an accepted operation.",
			Buckets: attemptBuckets,
		}),
		BundlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bundler_backend_failures_total",
			Help: "Failed calls to a single bundler backend by method.",
		}, []string{"method"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "multichain_batches_total",
			Help: "Signed multi-chain batches by branch.",
		}, []string{"branch"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.Submitted, m.Accepted, m.Rejections, m.FeeBumps,
		m.RetriesExhausted, m.Attempts, m.BundlerFailures, m.Batches,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveSubmit() {
	if m != nil {
		m.Submitted.Inc()
	}
}

// ObserveAccepted records an accepted operation and the attempts it took.
func (m *Metrics) ObserveAccepted(attempts int) {
	if m != nil {
		m.Accepted.Inc()
		m.Attempts.Observe(float64(attempts))
	}
}

func (m *Metrics) ObserveRejection(class string) {
	if m != nil {
		m.Rejections.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) ObserveFeeBump() {
	if m != nil {
		m.FeeBumps.Inc()
	}
}

func (m *Metrics) ObserveRetriesExhausted() {
	if m != nil {
		m.RetriesExhausted.Inc()
	}
}

func (m *Metrics) ObserveBundlerFailure(method string) {
	if m != nil {
		m.BundlerFailures.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) ObserveBatch(branch string) {
	if m != nil {
		m.Batches.WithLabelValues(branch).Inc()
	}
}
