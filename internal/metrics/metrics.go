// Package metrics records run counters on a private Prometheus registry and
// exports them in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	Repositories  *prometheus.CounterVec
	Snapshots     *prometheus.CounterVec
	Files         *prometheus.CounterVec
	Occurrences   *prometheus.CounterVec
	ParseDuration prometheus.Histogram
	CommitLatency prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		Repositories: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sugarsurvey_repositories_total",
			Help: "Repositories processed, by result.",
		}, []string{"result"}),
		Snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sugarsurvey_snapshots_total",
			Help: "Monthly snapshots, by result.",
		}, []string{"result"}),
		Files: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sugarsurvey_files_total",
			Help: "Source files seen in snapshots, by result.",
		}, []string{"result"}),
		Occurrences: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sugarsurvey_occurrences_total",
			Help: "Classified occurrences, by analysis.",
		}, []string{"analysis"}),
		ParseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sugarsurvey_parse_seconds",
			Help:    "Time spent parsing and classifying a source file.",
			Buckets: prometheus.DefBuckets,
		}),
		CommitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sugarsurvey_snapshot_commit_seconds",
			Help:    "Latency for committing one snapshot transaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Repository(result string) {
	if r != nil {
		r.Repositories.WithLabelValues(result).Inc()
	}
}

func (r *Recorder) Snapshot(result string, commit time.Duration) {
	if r == nil {
		return
	}
	r.Snapshots.WithLabelValues(result).Inc()
	if result == ResultOK {
		r.CommitLatency.Observe(commit.Seconds())
	}
}

func (r *Recorder) File(result string, took time.Duration) {
	if r == nil {
		return
	}
	r.Files.WithLabelValues(result).Inc()
	if result == ResultOK {
		r.ParseDuration.Observe(took.Seconds())
	}
}

func (r *Recorder) Occurrence(analysis string, n int) {
	if r != nil && n > 0 {
		r.Occurrences.WithLabelValues(analysis).Add(float64(n))
	}
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
