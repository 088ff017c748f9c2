// Package metrics exposes run counters as a Prometheus textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
)

const namespace = "sentinel"

// Recorder holds the counters of one process on its own registry, so that
// the textfile carries nothing but run metrics.
type Recorder struct {
	registry *prometheus.Registry

	fetchOutcomes *prometheus.CounterVec
	escalations   prometheus.Counter
	articles      *prometheus.CounterVec
	oracleCalls   *prometheus.CounterVec
	profiles      *prometheus.CounterVec
	excluded      prometheus.Counter
	records       prometheus.Gauge
	runDuration   prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		fetchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_outcomes_total",
			Help:      "Orchestrated source fetches by final strategy and outcome",
		}, []string{"strategy", "outcome"}),
		escalations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_escalations_total",
			Help:      "Fetches that fell back from the light to the heavy strategy",
		}),
		articles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Candidate articles by filter decision",
		}, []string{"decision"}),
		oracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle calls by status",
		}, []string{"status"}),
		profiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_total",
			Help:      "Ingested profiles by quality",
		}, []string{"quality"}),
		excluded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_excluded_total",
			Help:      "Profiles excluded from aggregation by range checks",
		}),
		records: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "momentum_records",
			Help:      "Momentum records produced by the last aggregation",
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that published artifacts",
		}),
	}
}

// ObserveFetch is a fetcher.Observer.
func (r *Recorder) ObserveFetch(_ domain.Source, out fetcher.Outcome) {
	strategy := string(out.Strategy)
	if strategy == "" {
		strategy = "none"
	}
	r.fetchOutcomes.WithLabelValues(strategy, out.Kind.String()).Inc()
	if out.Escalated {
		r.escalations.Inc()
	}
}

// Article counts one filter decision ("kept", "duplicate", "stale", ...).
func (r *Recorder) Article(decision string) {
	r.articles.WithLabelValues(decision).Inc()
}

// OracleCall counts one oracle call ("ok", "error", "skipped").
func (r *Recorder) OracleCall(status string) {
	r.oracleCalls.WithLabelValues(status).Inc()
}

// Profile counts one ingested profile.
func (r *Recorder) Profile(degraded bool) {
	quality := "validated"
	if degraded {
		quality = "degraded"
	}
	r.profiles.WithLabelValues(quality).Inc()
}

// Aggregation records the size of an aggregation result.
func (r *Recorder) Aggregation(records, excluded int) {
	r.records.Set(float64(records))
	r.excluded.Add(float64(excluded))
}

// RunFinished records the run duration, and the success time when
// artifacts were published.
func (r *Recorder) RunFinished(seconds float64, published bool, unix int64) {
	r.runDuration.Set(seconds)
	if published {
		r.lastSuccess.Set(float64(unix))
	}
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the node exporter textfile atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
