//go:build linux

package fssnapshot

import (
	"log"
)

func lvmSnapshotterIfSupported(snapshotSize string, logger *log.Logger) (Snapshotter, error) {
	return LvmSnapshotter(snapshotSize, logger), nil
}
