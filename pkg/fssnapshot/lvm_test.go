//go:build linux

package fssnapshot

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/prometheus/procfs"
)

func TestOriginPathInSnapshot(t *testing.T) {
	sp := "/mnt/snap1"

	assert.EqualString(t, originPathInSnapshot("/home/vagrant/photos", "/", sp), "/mnt/snap1/home/vagrant/photos")
	assert.EqualString(t, originPathInSnapshot("/home/vagrant/photos", "/home", sp), "/mnt/snap1/vagrant/photos")
	assert.EqualString(t, originPathInSnapshot("/home/vagrant/photos", "/home/vagrant", sp), "/mnt/snap1/photos")
	assert.EqualString(t, originPathInSnapshot("/home/vagrant/photos", "/home/vagrant/photos", sp), "/mnt/snap1")
}

func TestMountForPath(t *testing.T) {
	mounts := []*procfs.Mount{
		{Mount: "/home"},
		{Mount: "/"},
		{Mount: "/var/logs"},
	}

	assert.EqualString(t, mountForPath("/home/vagrant", mounts).Mount, "/home")
	assert.EqualString(t, mountForPath("/home", mounts).Mount, "/home")
	assert.EqualString(t, mountForPath("/homeless/shelter", mounts).Mount, "/")
	assert.EqualString(t, mountForPath("/root/.ssh/authorized_keys", mounts).Mount, "/")
	assert.EqualString(t, mountForPath("/var/logs/httpd/access.log", mounts).Mount, "/var/logs")
	assert.Assert(t, mountForPath("x", mounts) == nil)
}

func TestDevicePathFromLvsOutput(t *testing.T) {
	output := []byte(`  root   /dev/vagrant-vg/root
  snap1  /dev/vagrant-vg/snap1
  swap_1 /dev/vagrant-vg/swap_1
`)

	for _, tc := range []struct {
		name       string
		devicePath string
	}{
		{"root", "/dev/vagrant-vg/root"},
		{"snap1", "/dev/vagrant-vg/snap1"},
		{"swap_1", "/dev/vagrant-vg/swap_1"},
		{"notfound", ""},
	} {
		devicePath, err := devicePathFromLvsOutput(tc.name, output)
		assert.Assert(t, err == nil)
		assert.EqualString(t, devicePath, tc.devicePath)
	}
}

func TestDevicePathFromLvsOutputScanError(t *testing.T) {
	// longer than bufio.Scanner accepts for one line
	output := []byte("  " + strings.Repeat("x", bufio.MaxScanTokenSize) + " /dev/vagrant-vg/x\n")

	_, err := devicePathFromLvsOutput("snap1", output)
	assert.Assert(t, errors.Is(err, bufio.ErrTooLong))
}
