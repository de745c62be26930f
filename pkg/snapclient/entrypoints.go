// CLI for taking incremental snapshots
package snapclient

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func shootEntrypoint() *cobra.Command {
	source := ""
	destination := ""
	metricsTextfile := ""
	lvmSnapshotSize := ""
	noPreserveMetadata := false

	cmd := &cobra.Command{
		Use:   "shoot",
		Short: "Takes today's snapshot of source into destination",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context, logger *log.Logger) error {
				conf, err := ReadConfig()
				if err != nil {
					return err
				}

				opts, err := shootOptionsFromFlagsAndConfig(
					source,
					destination,
					metricsTextfile,
					lvmSnapshotSize,
					noPreserveMetadata,
					conf)
				if err != nil {
					return err
				}

				stats, today, err := Shoot(ctx, opts, logger)
				if err != nil {
					return err
				}

				if isatty.IsTerminal(os.Stdout.Fd()) {
					printSummary(os.Stdout, today, *stats)
				} else {
					logex.Levels(logger).Info.Println(oneLineSummary(today, *stats))
				}

				return nil
			}))
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", source, "Source folder (required)")
	cmd.Flags().StringVarP(&destination, "destination", "d", destination, "Destination folder (required)")
	cmd.Flags().StringVarP(&metricsTextfile, "metrics-textfile", "", metricsTextfile, "Write Prometheus metrics to this file")
	cmd.Flags().StringVarP(&lvmSnapshotSize, "lvm-snapshot-size", "", lvmSnapshotSize, "Read source from an LVM snapshot of this size (like 1G)")
	cmd.Flags().BoolVarP(&noPreserveMetadata, "no-preserve-metadata", "", noPreserveMetadata, "Don't copy permissions, xattrs & timestamps")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")

	return cmd
}

// flags win over config
func shootOptionsFromFlagsAndConfig(
	source string,
	destination string,
	metricsTextfile string,
	lvmSnapshotSize string,
	noPreserveMetadata bool,
	conf *Config,
) (ShootOptions, error) {
	sourceAbs, err := filepath.Abs(source)
	if err != nil {
		return ShootOptions{}, err
	}

	destinationAbs, err := filepath.Abs(destination)
	if err != nil {
		return ShootOptions{}, err
	}

	opts := ShootOptions{
		Source:           sourceAbs,
		Destination:      destinationAbs,
		MetricsTextfile:  conf.MetricsTextfile,
		LvmSnapshotSize:  conf.LvmSnapshotSize,
		PreserveMetadata: conf.PreserveMetadataOrDefault() && !noPreserveMetadata,
	}

	if metricsTextfile != "" {
		opts.MetricsTextfile = metricsTextfile
	}

	if lvmSnapshotSize != "" {
		opts.LvmSnapshotSize = lvmSnapshotSize
	}

	return opts, nil
}

func Entrypoints() []*cobra.Command {
	return []*cobra.Command{
		shootEntrypoint(),
		lsEntrypoint(),
		scheduleEntrypoint(),
		configPrintEntrypoint(),
	}
}

func wrapWithStopSupport(fn func(ctx context.Context, logger *log.Logger) error) error {
	rootLogger := logex.StandardLogger()

	return fn(osutil.CancelOnInterruptOrTerminate(rootLogger), rootLogger)
}
