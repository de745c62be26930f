//go:build linux

// must exclude from other builds due to syscall.Mount(), syscall.Unmount()

package fssnapshot

// snapshots on Linux using LVM. requires root and free extents in the volume group.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/function61/gokit/logex"
	"github.com/function61/snapshoot/pkg/snaptypes"
	"github.com/prometheus/procfs"
)

const (
	lvmSnapshotMountBase = "/mnt"
)

func LvmSnapshotter(snapshotSize string, logger *log.Logger) Snapshotter {
	return &lvmSnapshotter{snapshotSize, logex.Levels(logex.NonNil(logger))}
}

type lvmSnapshotter struct {
	snapshotSize string // in lvcreate syntax, like "1G"
	log          *logex.Leveled
}

func (l *lvmSnapshotter) Snapshot(path string) (*Snapshot, error) {
	procSelf, err := procfs.Self()
	if err != nil {
		return nil, err
	}

	mounts, err := procSelf.MountStats()
	if err != nil {
		return nil, err
	}

	mountOfOrigin := mountForPath(path, mounts)
	if mountOfOrigin == nil {
		return nil, fmt.Errorf("unable to resolve mount for %s", path)
	}

	snapshotID := randomSnapID()

	lvcreateOutput, err := exec.Command(
		"lvcreate",
		"--snapshot",
		"--size", l.snapshotSize,
		"--name", snapshotID,
		mountOfOrigin.Device).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("lvcreate: %w, output: %s", err, lvcreateOutput)
	}

	// we don't know the *device name* of the snapshot before using this command
	lvsOutput, err := exec.Command(
		"lvs",
		"--noheadings",
		"--options", "lv_name,lv_path").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("lvs: %w, output: %s", err, lvsOutput)
	}

	snapshotDevicePath, err := devicePathFromLvsOutput(snapshotID, lvsOutput)
	if err != nil {
		return nil, fmt.Errorf("lvs output: %w", err)
	}
	if snapshotDevicePath == "" {
		return nil, errors.New("failed to resolve snapshot path from lvs output")
	}

	completedSuccessfully := false

	defer func() {
		if completedSuccessfully {
			return
		}

		l.log.Info.Printf("cleaning up snapshot %s", snapshotID)

		if err := deleteLvmSnapshot(snapshotDevicePath); err != nil {
			l.log.Error.Printf("deleteLvmSnapshot: %v", err)
		}
	}()

	snapshotMountPath := filepath.Join(lvmSnapshotMountBase, snapshotID)

	if err := os.MkdirAll(snapshotMountPath, 0700); err != nil {
		return nil, snaptypes.WrapOp("mkdir", snapshotMountPath, err)
	}

	defer func() {
		if completedSuccessfully {
			return
		}

		if err := os.Remove(snapshotMountPath); err != nil {
			l.log.Error.Printf("removing mount path: %v", err)
		}
	}()

	// read-only, we're only ever reading the source
	if err := syscall.Mount(snapshotDevicePath, snapshotMountPath, mountOfOrigin.Type, syscall.MS_RDONLY, ""); err != nil {
		return nil, snaptypes.WrapOp("mount", snapshotMountPath, err)
	}

	completedSuccessfully = true // cancel cleanups

	l.log.Info.Printf("source %s snapshotted at %s", path, snapshotMountPath)

	return &Snapshot{
		ID:                    snapshotDevicePath,
		OriginPath:            path,
		OriginInSnapshotPath:  originPathInSnapshot(path, mountOfOrigin.Mount, snapshotMountPath),
		SnapshotRootMountPath: snapshotMountPath,
	}, nil
}

func (l *lvmSnapshotter) Release(snapshot Snapshot) error {
	if err := syscall.Unmount(snapshot.SnapshotRootMountPath, 0); err != nil {
		return snaptypes.WrapOp("unmount", snapshot.SnapshotRootMountPath, err)
	}

	if err := os.Remove(snapshot.SnapshotRootMountPath); err != nil {
		return snaptypes.WrapOp("remove", snapshot.SnapshotRootMountPath, err)
	}

	return deleteLvmSnapshot(snapshot.ID)
}

func deleteLvmSnapshot(snapshotPath string) error {
	removeOutput, err := exec.Command("lvremove", "--force", snapshotPath).CombinedOutput()
	if err != nil {
		return fmt.Errorf("lvremove %s: %w, output: %s", snapshotPath, err, removeOutput)
	}

	return nil
}

// longest mount point that is path itself or one of its parents
func mountForPath(path string, mounts []*procfs.Mount) *procfs.Mount {
	var longestMatchingMount *procfs.Mount = nil

	for _, mount := range mounts {
		if !isPathOrParent(mount.Mount, path) || (longestMatchingMount != nil && len(mount.Mount) <= len(longestMatchingMount.Mount)) {
			continue
		}

		longestMatchingMount = mount
	}

	return longestMatchingMount
}

func isPathOrParent(mountPoint string, path string) bool {
	if mountPoint == "/" {
		return strings.HasPrefix(path, "/")
	}

	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}

// see test for output example
var devicePathFromLvsOutputRe = regexp.MustCompile("^  ([^ ]+) +(.+)")

// "" (and no error) if name is not in the output
func devicePathFromLvsOutput(name string, output []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewBuffer(output))
	for scanner.Scan() {
		matches := devicePathFromLvsOutputRe.FindStringSubmatch(scanner.Text())
		if matches == nil {
			continue
		}

		if matches[1] == name {
			return matches[2], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	return "", nil
}
