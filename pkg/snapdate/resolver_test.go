package snapdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/function61/snapshoot/pkg/snaptypes"
)

func TestYesterday(t *testing.T) {
	for _, tc := range []struct {
		now       time.Time
		yesterday string
	}{
		{time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local), "2026-10-18"},
		{time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), "2026-02-28"},
		{time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local), "2024-02-29"},
		{time.Date(2026, 1, 1, 0, 30, 0, 0, time.Local), "2025-12-31"},
	} {
		t.Run(tc.yesterday, func(t *testing.T) {
			yesterday, err := fixedClock(tc.now).Yesterday()
			assert.Assert(t, err == nil)
			assert.EqualString(t, yesterday, tc.yesterday)
		})
	}
}

func TestYesterdayUnderflow(t *testing.T) {
	_, err := fixedClock(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)).Yesterday()
	assert.Assert(t, errors.Is(err, snaptypes.ErrDateComputation))

	_, err = fixedClock(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)).PreviousSnapshot(t.TempDir())
	assert.Assert(t, errors.Is(err, snaptypes.ErrDateComputation))
}

func TestPreviousSnapshot(t *testing.T) {
	destination := t.TempDir()
	resolver := fixedClock(time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local))

	previous, err := resolver.PreviousSnapshot(destination)
	assert.Assert(t, err == nil)
	assert.EqualString(t, previous, "")

	assert.Assert(t, os.Mkdir(filepath.Join(destination, "2026-10-17"), 0755) == nil)

	// only yesterday counts, not the latest one
	previous, err = resolver.PreviousSnapshot(destination)
	assert.Assert(t, err == nil)
	assert.EqualString(t, previous, "")

	assert.Assert(t, os.Mkdir(filepath.Join(destination, "2026-10-18"), 0755) == nil)

	previous, err = resolver.PreviousSnapshot(destination)
	assert.Assert(t, err == nil)
	assert.EqualString(t, previous, filepath.Join(destination, "2026-10-18"))
}

func TestPreviousSnapshotMustBeDirectory(t *testing.T) {
	destination := t.TempDir()
	resolver := fixedClock(time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local))

	assert.Assert(t, os.WriteFile(filepath.Join(destination, "2026-10-18"), nil, 0644) == nil)

	previous, err := resolver.PreviousSnapshot(destination)
	assert.Assert(t, err == nil)
	assert.EqualString(t, previous, "")
}

func TestCreateTodaySnapshot(t *testing.T) {
	destination := t.TempDir()
	resolver := fixedClock(time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local))

	today, err := resolver.CreateTodaySnapshot(destination)
	assert.Assert(t, err == nil)
	assert.EqualString(t, today, filepath.Join(destination, "2026-10-19"))

	entries, err := os.ReadDir(today)
	assert.Assert(t, err == nil)
	assert.Assert(t, len(entries) == 0)

	// second run on the same day
	_, err = resolver.CreateTodaySnapshot(destination)
	assert.Assert(t, errors.Is(err, snaptypes.ErrAlreadyExists))
	assert.Assert(t, errors.Is(err, snaptypes.ErrIo))
}

func TestList(t *testing.T) {
	destination := t.TempDir()

	for _, name := range []string{"2026-10-19", "2025-12-31", "2026-01-02", "not-a-date", "2026-13-01"} {
		assert.Assert(t, os.Mkdir(filepath.Join(destination, name), 0755) == nil)
	}
	assert.Assert(t, os.WriteFile(filepath.Join(destination, "2026-10-18"), nil, 0644) == nil)
	assert.Assert(t, os.WriteFile(filepath.Join(destination, ".photos.snapshoot"), nil, 0400) == nil)

	dates, err := List(destination)
	assert.Assert(t, err == nil)
	assert.EqualString(t, fmt.Sprintf("%v", dates), "[2025-12-31 2026-01-02 2026-10-19]")
}

func TestIsSnapshotName(t *testing.T) {
	assert.Assert(t, IsSnapshotName("2026-10-19"))
	assert.Assert(t, !IsSnapshotName("2026-10-19x"))
	assert.Assert(t, !IsSnapshotName("2026-1-9"))
	assert.Assert(t, !IsSnapshotName("2026-02-30"))
}

func fixedClock(now time.Time) *Resolver {
	return NewWithClock(func() time.Time { return now }, nil)
}
