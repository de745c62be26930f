package snapclient

import (
	"context"
	"log"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/snapshoot/pkg/fssnapshot"
	"github.com/function61/snapshoot/pkg/snapdate"
	"github.com/function61/snapshoot/pkg/snapengine"
	"github.com/function61/snapshoot/pkg/snaphash"
	"github.com/function61/snapshoot/pkg/snapinit"
	"github.com/function61/snapshoot/pkg/snapmetrics"
)

type ShootOptions struct {
	Source           string // absolute
	Destination      string // absolute
	LvmSnapshotSize  string
	MetricsTextfile  string
	PreserveMetadata bool
	Now              func() time.Time // nil = time.Now
}

// Takes today's snapshot of Source into Destination. Guard, date resolution and
// engine run in that fixed order, any failure stops the run.
func Shoot(ctx context.Context, opts ShootOptions, logger *log.Logger) (*snapengine.Stats, string, error) {
	logl := logex.Levels(logex.NonNil(logger))

	started := time.Now()

	stats, today, err := shootInternal(ctx, opts, logger)

	if opts.MetricsTextfile != "" {
		metrics := snapmetrics.New(opts.Source, opts.Destination)
		metrics.ObserveRun(stats, started, time.Now())

		if errMetrics := metrics.WriteTextfile(opts.MetricsTextfile); errMetrics != nil {
			logl.Error.Printf("writing metrics: %v", errMetrics)
		}
	}

	return stats, today, err
}

func shootInternal(ctx context.Context, opts ShootOptions, logger *log.Logger) (*snapengine.Stats, string, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := snapinit.Initialize(opts.Source, opts.Destination, logex.Prefix("init", logger)); err != nil {
		return nil, "", err
	}

	snapshotter, err := fssnapshot.New(opts.LvmSnapshotSize, logex.Prefix("fssnapshot", logger))
	if err != nil {
		return nil, "", err
	}

	// take filesystem snapshot, so our reads within the source tree are atomic
	snapshot, err := snapshotter.Snapshot(opts.Source)
	if err != nil {
		return nil, "", err
	}

	defer func() { // always release snapshot
		if err := snapshotter.Release(*snapshot); err != nil {
			logex.Levels(logex.NonNil(logger)).Error.Printf("releasing source snapshot: %v", err)
		}
	}()

	resolver := snapdate.NewWithClock(now, logex.Prefix("snapdate", logger))

	yesterday, err := resolver.PreviousSnapshot(opts.Destination)
	if err != nil {
		return nil, "", err
	}

	today, err := resolver.CreateTodaySnapshot(opts.Destination)
	if err != nil {
		return nil, "", err
	}

	engine := snapengine.New(
		snaphash.New(),
		snapengine.Options{PreserveMetadata: opts.PreserveMetadata},
		logex.Prefix("engine", logger))

	// now read the source from within the snapshot (and not the actual source)
	stats, err := engine.Build(ctx, snapshot.OriginInSnapshotPath, yesterday, today)
	if err != nil {
		return nil, today, err
	}

	return stats, today, nil
}
