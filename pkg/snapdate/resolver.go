// Resolves dated snapshot directories ("2006-01-02") under a destination root
package snapdate

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/snapshoot/pkg/snaptypes"
	"github.com/samber/lo"
)

type Resolver struct {
	now func() time.Time
	log *logex.Leveled
}

func New(logger *log.Logger) *Resolver {
	return NewWithClock(time.Now, logger)
}

// now() is interpreted in its own location, i.e. pass local time for local dates
func NewWithClock(now func() time.Time, logger *log.Logger) *Resolver {
	return &Resolver{
		now: now,
		log: logex.Levels(logex.NonNil(logger)),
	}
}

func (r *Resolver) Today() string {
	return r.now().Format(snaptypes.DateFormat)
}

func (r *Resolver) Yesterday() (string, error) {
	now := r.now()

	// AddDate() normalizes instead of failing, so detect calendar underflow ourselves
	yesterday := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, now.Location())
	if yesterday.Year() < 1 {
		return "", fmt.Errorf("%w: day before %s", snaptypes.ErrDateComputation, now.Format(snaptypes.DateFormat))
	}

	return yesterday.Format(snaptypes.DateFormat), nil
}

// returns "" if there is no snapshot for yesterday (the case for the very first run)
func (r *Resolver) PreviousSnapshot(destination string) (string, error) {
	yesterday, err := r.Yesterday()
	if err != nil {
		return "", err
	}

	folder := filepath.Join(destination, yesterday)

	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Info.Printf("no previous snapshot %s", folder)
			return "", nil
		}

		return "", snaptypes.WrapOp("stat", folder, err)
	}

	if !info.IsDir() {
		r.log.Error.Printf("previous snapshot %s is not a directory, ignoring", folder)
		return "", nil
	}

	return folder, nil
}

// creates today's (empty) snapshot directory. fails with ErrAlreadyExists if a run
// was already performed today.
func (r *Resolver) CreateTodaySnapshot(destination string) (string, error) {
	folder := filepath.Join(destination, r.Today())

	if err := os.Mkdir(folder, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %w", snaptypes.ErrAlreadyExists, snaptypes.WrapOp("mkdir", folder, err))
		}

		return "", snaptypes.WrapOp("mkdir", folder, err)
	}

	r.log.Info.Printf("Snapshot folder '%s' created", folder)

	return folder, nil
}

// names of dated snapshot directories under destination, oldest first
func List(destination string) ([]string, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return nil, snaptypes.WrapOp("readdir", destination, err)
	}

	dates := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		return entry.Name(), entry.IsDir() && IsSnapshotName(entry.Name())
	})

	sort.Strings(dates) // fixed-width dates sort chronologically

	return dates, nil
}

func IsSnapshotName(name string) bool {
	parsed, err := time.Parse(snaptypes.DateFormat, name)
	return err == nil && parsed.Format(snaptypes.DateFormat) == name
}
