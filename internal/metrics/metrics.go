package metrics

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/chirino/console-migrate/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry holds every metric of this process. A one-shot job has no
	// scrape endpoint, so it is written out with WriteTextfile instead.
	Registry = prometheus.NewRegistry()

	// StoreLatency can be used by store implementations to record operation latency.
	StoreLatency *prometheus.HistogramVec

	// RepairsTotal counts repaired entities by collection and action.
	RepairsTotal *prometheus.CounterVec

	// FailuresTotal counts entities that could not be repaired.
	FailuresTotal *prometheus.CounterVec

	// RunDuration is the wall time of the last run.
	RunDuration prometheus.Gauge

	// LastRunTimestamp is the unix time the last run finished.
	LastRunTimestamp prometheus.Gauge
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable expansion.
// Label values may not contain commas. Returns nil for an empty string.
func ParseMetricsLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers all metrics with the given constant labels.
// Safe to call multiple times; only the first call registers.
func InitMetrics(constLabels prometheus.Labels) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels)
	})
}

func initMetricsInner(constLabels prometheus.Labels) {
	reg := prometheus.WrapRegistererWith(constLabels, Registry)
	f := promauto.With(reg)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_migrate_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	RepairsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_migrate_repairs_total",
			Help: "Entities repaired by the migration",
		},
		[]string{"collection", "action"},
	)

	FailuresTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_migrate_failures_total",
			Help: "Entities the migration could not repair",
		},
		[]string{"collection"},
	)

	RunDuration = f.NewGauge(prometheus.GaugeOpts{
		Name: "console_migrate_run_duration_seconds",
		Help: "Duration of the last migration run",
	})

	LastRunTimestamp = f.NewGauge(prometheus.GaugeOpts{
		Name: "console_migrate_last_run_timestamp_seconds",
		Help: "Unix time the last migration run finished",
	})
}

// ObserveReport folds a finished run into the counters.
func ObserveReport(r *report.RunReport) {
	if RepairsTotal == nil {
		return
	}
	for _, rep := range r.Repairs {
		RepairsTotal.WithLabelValues(string(rep.Collection), rep.Action).Inc()
	}
	for _, f := range r.Failures {
		FailuresTotal.WithLabelValues(string(f.Collection)).Inc()
	}
	if !r.FinishedAt.IsZero() {
		RunDuration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
		LastRunTimestamp.Set(float64(r.FinishedAt.Unix()))
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
