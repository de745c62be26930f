// Binds a destination directory to exactly one source directory by way of a read-only
// marker file, so unrelated backup sets never get mixed.
package snapinit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/logex"
	"github.com/function61/snapshoot/pkg/snaptypes"
	"github.com/samber/lo"
)

// Validates source & destination and marks destination as belonging to source.
// Re-running with the same source is a no-op.
//
// Must run before any dated snapshot directory is created, since a first-time binding
// requires destination to be empty.
func Initialize(source string, destination string, logger *log.Logger) error {
	logl := logex.Levels(logex.NonNil(logger))

	if err := validateDirectory(source); err != nil {
		return err
	}
	if err := validateDirectory(destination); err != nil {
		return err
	}

	if filepath.Base(source) == string(filepath.Separator) {
		return fmt.Errorf("%w: cannot derive marker name from %s", snaptypes.ErrInvalidInput, source)
	}

	markerName := MarkerName(source)
	markerPath := filepath.Join(destination, markerName)

	entries, err := os.ReadDir(destination)
	if err != nil {
		return snaptypes.WrapOp("readdir", destination, err)
	}

	otherMarkers := lo.Filter(entries, func(entry os.DirEntry, _ int) bool {
		return entry.Type().IsRegular() && isMarkerName(entry.Name()) && entry.Name() != markerName
	})
	if len(otherMarkers) > 0 {
		return fmt.Errorf("%w: %s has %s", snaptypes.ErrDestinationConflict, destination, otherMarkers[0].Name())
	}

	markerExists, err := fileexists.Exists(markerPath)
	if err != nil {
		return snaptypes.WrapOp("stat", markerPath, err)
	}

	if markerExists {
		logl.Info.Println("Snapshoot already initialized")
		return nil
	}

	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", snaptypes.ErrDestinationNotEmpty, destination)
	}

	if err := createMarker(markerPath); err != nil {
		return err
	}

	logl.Info.Printf("Snapshoot successfully initialized for %s", source)

	return nil
}

// ".<source basename>.snapshoot"
func MarkerName(source string) string {
	return fmt.Sprintf(".%s.%s", filepath.Base(filepath.Clean(source)), snaptypes.MarkerSuffix)
}

// name of the marker file in destination, or "" if destination is not bound to a source
func BoundMarker(destination string) (string, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return "", snaptypes.WrapOp("readdir", destination, err)
	}

	marker, found := lo.Find(entries, func(entry os.DirEntry) bool {
		return entry.Type().IsRegular() && isMarkerName(entry.Name())
	})
	if !found {
		return "", nil
	}

	return marker.Name(), nil
}

func isMarkerName(name string) bool {
	return strings.HasPrefix(name, ".") && filepath.Ext(name) == "."+snaptypes.MarkerSuffix
}

// the marker only counts as created once it is read-only. if we can't get it there,
// it's removed so the next run doesn't mistake it for a valid one.
func createMarker(markerPath string) error {
	marker, err := os.OpenFile(markerPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0400)
	if err != nil {
		return snaptypes.WrapOp("create marker", markerPath, err)
	}

	completedSuccessfully := false
	defer func() {
		if !completedSuccessfully {
			_ = os.Remove(markerPath)
		}
	}()

	if err := marker.Close(); err != nil {
		return snaptypes.WrapOp("create marker", markerPath, err)
	}

	if err := os.Chmod(markerPath, 0400); err != nil {
		return snaptypes.WrapOp("chmod marker", markerPath, err)
	}

	completedSuccessfully = true

	return nil
}

func validateDirectory(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: source and destination folder must be an absolute path: %s", snaptypes.ErrInvalidInput, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: source and destination folder must exist: %s", snaptypes.ErrInvalidInput, path)
		}

		return snaptypes.WrapOp("stat", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: source and destination folder must be a directory: %s", snaptypes.ErrInvalidInput, path)
	}

	return nil
}
