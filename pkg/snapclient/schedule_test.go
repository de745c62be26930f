package snapclient

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestJobMetricsTextfile(t *testing.T) {
	assert.EqualString(t, jobMetricsTextfile("/var/lib/node_exporter/snapshoot.prom", "job0"), "/var/lib/node_exporter/snapshoot-job0.prom")
	assert.EqualString(t, jobMetricsTextfile("/tmp/metrics", "job1"), "/tmp/metrics-job1")
	assert.EqualString(t, jobMetricsTextfile("", "job0"), "")
}

func TestScheduledJobsKeepEachOthersMetrics(t *testing.T) {
	parent := t.TempDir()
	metricsDir := t.TempDir()

	conf := &Config{
		MetricsTextfile: filepath.Join(metricsDir, "snapshoot.prom"),
	}

	for _, name := range []string{"photos", "docs"} {
		source := filepath.Join(parent, name)
		destination := filepath.Join(parent, "backup-"+name)
		assert.Assert(t, os.Mkdir(source, 0755) == nil)
		assert.Assert(t, os.Mkdir(destination, 0755) == nil)

		conf.Jobs = append(conf.Jobs, JobConfig{Source: source, Destination: destination})
	}

	for idx, jobConf := range conf.Jobs {
		opts := jobShootOptions(conf, jobConf, []string{"job0", "job1"}[idx])
		opts.Now = clockAt(2026, 10, 19)

		_, _, err := Shoot(context.Background(), opts, nil)
		assert.Assert(t, err == nil)
	}

	for idx, name := range []string{"photos", "docs"} {
		content, err := os.ReadFile(filepath.Join(metricsDir, []string{"snapshoot-job0.prom", "snapshoot-job1.prom"}[idx]))
		assert.Assert(t, err == nil)
		assert.Assert(t, strings.Contains(
			string(content),
			`snapshoot_run_succeeded{destination="`+filepath.Join(parent, "backup-"+name)+`",source="`+filepath.Join(parent, name)+`"} 1`))
	}

	_, err := os.Stat(conf.MetricsTextfile)
	assert.Assert(t, os.IsNotExist(err))
}
