// Filesystem snapshotting, so a snapshot run reads the source tree as it was at one
// point in time even if it is being written to meanwhile
package fssnapshot

import (
	"log"
)

type Snapshot struct {
	ID                    string // opaque platform-specific string (do not use for anything)
	OriginInSnapshotPath  string // path used to access origin in snapshot
	OriginPath            string // snapshot taken from
	SnapshotRootMountPath string // path used to access the snapshotted root
}

type Snapshotter interface {
	Snapshot(path string) (*Snapshot, error)
	Release(Snapshot) error
}

// lvmSnapshotSize "" means no snapshotting (reads go directly to the origin)
func New(lvmSnapshotSize string, logger *log.Logger) (Snapshotter, error) {
	if lvmSnapshotSize == "" {
		return NullSnapshotter(), nil
	}

	return lvmSnapshotterIfSupported(lvmSnapshotSize, logger)
}
