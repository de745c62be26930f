package snapclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/snapshoot/pkg/scheduler"
	"github.com/spf13/cobra"
)

func scheduleEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Takes snapshots of configured jobs on their schedules, until stopped",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context, logger *log.Logger) error {
				conf, err := ReadConfig()
				if err != nil {
					return err
				}

				return runSchedule(ctx, conf, time.Now(), logger)
			}))
		},
	}
}

func runSchedule(ctx context.Context, conf *Config, now time.Time, logger *log.Logger) error {
	jobs, err := scheduledJobs(conf, now)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		logex.Levels(logex.NonNil(logger)).Info.Printf("%s: next run at %s", job.Description, job.NextRun.Format(time.RFC3339))
	}

	return scheduler.New(jobs, logger).Run(ctx)
}

func scheduledJobs(conf *Config, now time.Time) ([]*scheduler.Job, error) {
	if len(conf.Jobs) == 0 {
		return nil, errors.New("no jobs in config file")
	}

	jobs := []*scheduler.Job{}

	for idx, jobConf := range conf.Jobs {
		jobID := fmt.Sprintf("job%d", idx)
		opts := jobShootOptions(conf, jobConf, jobID)

		job, err := scheduler.NewJob(
			jobID,
			jobConf.Source,
			jobConf.ScheduleOrDefault(),
			func(ctx context.Context, logger *log.Logger) error {
				stats, today, err := Shoot(ctx, opts, logger)
				if err != nil {
					return err
				}

				logex.Levels(logger).Info.Println(oneLineSummary(today, *stats))

				return nil
			},
			now)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

func jobShootOptions(conf *Config, jobConf JobConfig, jobID string) ShootOptions {
	return ShootOptions{
		Source:           jobConf.Source,
		Destination:      jobConf.Destination,
		MetricsTextfile:  jobMetricsTextfile(conf.MetricsTextfile, jobID),
		LvmSnapshotSize:  conf.LvmSnapshotSize,
		PreserveMetadata: conf.PreserveMetadataOrDefault(),
	}
}

// each write replaces the whole textfile, so jobs sharing one would erase each other's
// metrics. "/var/lib/node_exporter/snapshoot.prom" => ".../snapshoot-job0.prom"
func jobMetricsTextfile(metricsTextfile string, jobID string) string {
	if metricsTextfile == "" {
		return ""
	}

	ext := filepath.Ext(metricsTextfile)

	return strings.TrimSuffix(metricsTextfile, ext) + "-" + jobID + ext
}
