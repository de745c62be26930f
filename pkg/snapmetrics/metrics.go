// Prometheus metrics for snapshot runs. Runs are short-lived processes, so instead of
// serving /metrics the metrics are written for node_exporter's textfile collector.
package snapmetrics

import (
	"time"

	"github.com/function61/snapshoot/pkg/snapengine"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	entries         *prometheus.CounterVec
	bytes           *prometheus.CounterVec
	runDuration     prometheus.Gauge
	runSucceeded    prometheus.Gauge
	lastSuccessTime prometheus.Gauge
}

// textfile is replaced on each write, so every job needs its own file. the labels
// tell jobs apart once node_exporter merges the files.
func New(source string, destination string) *Metrics {
	reg := prometheus.NewRegistry()

	constLabels := prometheus.Labels{
		"source":      source,
		"destination": destination,
	}

	m := &Metrics{
		registry: reg,
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "snapshoot_entries_total",
			Help:        "Entries materialized into the snapshot, by action",
			ConstLabels: constLabels,
		}, []string{"action"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "snapshoot_bytes_total",
			Help:        "Bytes processed, by kind (copied, linked, hashed)",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "snapshoot_run_duration_seconds",
			Help:        "Duration of the latest run",
			ConstLabels: constLabels,
		}),
		runSucceeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "snapshoot_run_succeeded",
			Help:        "1 if the latest run succeeded, 0 otherwise",
			ConstLabels: constLabels,
		}),
		lastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "snapshoot_last_success_timestamp_seconds",
			Help:        "Unix time of the latest successful run",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(m.entries)
	reg.MustRegister(m.bytes)
	reg.MustRegister(m.runDuration)
	reg.MustRegister(m.runSucceeded)

	return m
}

// call once per Metrics. stats is nil for a failed run. a failed run doesn't export last success timestamp,
// since we don't know it and 0 would look like "never".
func (m *Metrics) ObserveRun(stats *snapengine.Stats, started time.Time, finished time.Time) {
	m.runDuration.Set(finished.Sub(started).Seconds())

	if stats == nil {
		m.runSucceeded.Set(0)
		return
	}

	m.runSucceeded.Set(1)
	m.lastSuccessTime.Set(float64(finished.Unix()))
	m.registry.MustRegister(m.lastSuccessTime)

	m.entries.WithLabelValues("directory").Add(float64(stats.Directories))
	m.entries.WithLabelValues("copied").Add(float64(stats.FilesCopied))
	m.entries.WithLabelValues("linked").Add(float64(stats.FilesLinked))
	m.entries.WithLabelValues("symlink").Add(float64(stats.Symlinks))
	m.entries.WithLabelValues("skipped").Add(float64(stats.Skipped))

	m.bytes.WithLabelValues("copied").Add(float64(stats.BytesCopied))
	m.bytes.WithLabelValues("linked").Add(float64(stats.BytesLinked))
	m.bytes.WithLabelValues("hashed").Add(float64(stats.BytesHashed))
}

// atomic (temp file + rename), so the collector never sees a half-written file
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
