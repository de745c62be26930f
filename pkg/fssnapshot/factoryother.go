//go:build !linux

package fssnapshot

import (
	"errors"
	"log"
)

func lvmSnapshotterIfSupported(string, *log.Logger) (Snapshotter, error) {
	return nil, errors.New("LVM snapshots are only supported on Linux")
}
