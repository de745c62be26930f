// Builds a point-in-time snapshot of a source tree. Files unchanged since the previous
// snapshot become symlinks into it (content-identity links), everything else is copied.
package snapengine

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/function61/gokit/logex"
	"github.com/function61/snapshoot/pkg/snaphash"
	"github.com/function61/snapshoot/pkg/snaptypes"
)

type Options struct {
	// keep permission bits, user.* xattrs and access/modification times of copies
	PreserveMetadata bool
}

func DefaultOptions() Options {
	return Options{
		PreserveMetadata: true,
	}
}

type Engine struct {
	hasher *snaphash.Hasher
	opts   Options
	log    *logex.Leveled
}

func New(hasher *snaphash.Hasher, opts Options, logger *log.Logger) *Engine {
	return &Engine{
		hasher: hasher,
		opts:   opts,
		log:    logex.Levels(logex.NonNil(logger)),
	}
}

// one directory level to process. yesterday is "" when there is no counterpart in the
// previous snapshot (= fresh materialization of this subtree)
type frame struct {
	source    string
	yesterday string
	today     string
}

// applied after all content has been written, so read-only source directories can
// still be populated in today's snapshot
type dirFixup struct {
	path string
	info fs.FileInfo
}

// per-run state. the Engine itself is stateless across runs.
type run struct {
	*Engine
	storeRoot string // resolved parent of yesterday's root. content-identity links must point inside it
	stats     *Stats
	fixups    []dirFixup
}

// Mirrors sourceRoot into todayRoot, which must exist and be empty. yesterdayRoot is
// the previous snapshot to reconcile against, or "" if there is none.
//
// Any failure aborts the whole run, leaving todayRoot partially written.
func (e *Engine) Build(
	ctx context.Context,
	sourceRoot string,
	yesterdayRoot string,
	todayRoot string,
) (*Stats, error) {
	r := &run{
		Engine: e,
		stats:  &Stats{},
	}

	var err error
	if sourceRoot, err = filepath.Abs(sourceRoot); err != nil {
		return nil, err
	}
	if todayRoot, err = filepath.Abs(todayRoot); err != nil {
		return nil, err
	}

	if yesterdayRoot != "" {
		if yesterdayRoot, err = filepath.Abs(yesterdayRoot); err != nil {
			return nil, err
		}

		r.storeRoot, err = filepath.EvalSymlinks(filepath.Dir(yesterdayRoot))
		if err != nil {
			return nil, snaptypes.WrapOp("resolve", filepath.Dir(yesterdayRoot), err)
		}

		e.log.Info.Printf("reconciling against %s", yesterdayRoot)
	} else {
		e.log.Info.Println("no previous snapshot, copying everything")
	}

	hashedBefore := e.hasher.BytesHashed()

	// explicit work stack instead of recursion so tree depth doesn't grow the call stack
	stack := []frame{{source: sourceRoot, yesterday: yesterdayRoot, today: todayRoot}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := r.processDirectory(ctx, current)
		if err != nil {
			return nil, err
		}

		stack = append(stack, children...)
	}

	if err := r.applyDirFixups(); err != nil {
		return nil, err
	}

	r.stats.BytesHashed = e.hasher.BytesHashed() - hashedBefore

	return r.stats, nil
}

// materializes every entry directly under current.source. returns subdirectories that
// still need processing.
func (r *run) processDirectory(ctx context.Context, current frame) ([]frame, error) {
	entries, err := os.ReadDir(current.source)
	if err != nil {
		return nil, snaptypes.WrapOp("readdir", current.source, err)
	}

	children := []frame{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var child *frame
		var err error
		if current.yesterday == "" {
			child, err = r.materializeFresh(current, entry)
		} else {
			child, err = r.materializeReconciling(ctx, current, entry)
		}
		if err != nil {
			return nil, err
		}

		if child != nil {
			children = append(children, *child)
		}
	}

	return children, nil
}

func (r *run) materializeFresh(current frame, entry fs.DirEntry) (*frame, error) {
	sourcePath := filepath.Join(current.source, entry.Name())
	todayPath := filepath.Join(current.today, entry.Name())

	info, err := entry.Info()
	if err != nil {
		return nil, snaptypes.WrapOp("lstat", sourcePath, err)
	}

	switch snaptypes.KindFromMode(info.Mode()) {
	case snaptypes.KindDirectory:
		if err := r.makeDirectory(todayPath, info); err != nil {
			return nil, err
		}

		return &frame{source: sourcePath, yesterday: "", today: todayPath}, nil
	case snaptypes.KindSymlink:
		return nil, r.recreateSymlink(sourcePath, todayPath)
	case snaptypes.KindRegular:
		return nil, r.copyFile(sourcePath, todayPath, info)
	default:
		r.skip(sourcePath, info)
		return nil, nil
	}
}

func (r *run) materializeReconciling(ctx context.Context, current frame, entry fs.DirEntry) (*frame, error) {
	sourcePath := filepath.Join(current.source, entry.Name())
	yesterdayPath := filepath.Join(current.yesterday, entry.Name())
	todayPath := filepath.Join(current.today, entry.Name())

	yesterdayInfo, err := os.Lstat(yesterdayPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) { // new since yesterday
			return r.materializeFresh(current, entry)
		}

		return nil, snaptypes.WrapOp("lstat", yesterdayPath, err)
	}

	info, err := entry.Info()
	if err != nil {
		return nil, snaptypes.WrapOp("lstat", sourcePath, err)
	}

	sourceKind := snaptypes.KindFromMode(info.Mode())

	switch sourceKind {
	case snaptypes.KindDirectory:
		if !yesterdayInfo.IsDir() {
			r.log.Debug.Printf("%s was %s yesterday, now directory", sourcePath, snaptypes.KindFromMode(yesterdayInfo.Mode()))

			return r.materializeFresh(current, entry)
		}

		if err := r.makeDirectory(todayPath, info); err != nil {
			return nil, err
		}

		return &frame{source: sourcePath, yesterday: yesterdayPath, today: todayPath}, nil
	case snaptypes.KindRegular:
		linkTarget, isCandidate, err := r.linkCandidate(yesterdayPath, yesterdayInfo)
		if err != nil {
			return nil, err
		}

		if !isCandidate {
			r.log.Debug.Printf("%s was %s yesterday, now file", sourcePath, snaptypes.KindFromMode(yesterdayInfo.Mode()))

			return nil, r.copyFile(sourcePath, todayPath, info)
		}

		// both digests computed concurrently. nothing is written before both are known.
		same, err := r.hasher.Equal(ctx, sourcePath, linkTarget)
		if err != nil {
			return nil, err
		}

		if !same {
			return nil, r.copyFile(sourcePath, todayPath, info)
		}

		return nil, r.linkUnchanged(linkTarget, todayPath, info)
	default: // symlinks and special files never get content-identity links
		return r.materializeFresh(current, entry)
	}
}

// decides which file in the store an unchanged source file could be linked to.
//
// yesterday's entry is usually a real file, but if it's itself a content-identity link
// (unchanged for 2+ days) we link to the file that holds the bytes. otherwise chains
// would grow one hop per day until hitting the kernel's symlink resolution limit.
func (r *run) linkCandidate(yesterdayPath string, yesterdayInfo fs.FileInfo) (string, bool, error) {
	switch snaptypes.KindFromMode(yesterdayInfo.Mode()) {
	case snaptypes.KindRegular:
		return yesterdayPath, true, nil
	case snaptypes.KindSymlink:
		resolved, err := filepath.EvalSymlinks(yesterdayPath)
		if err != nil { // dangling or looping symlink copied from source. not ours.
			r.log.Debug.Printf("not a content-identity link %s: %v", yesterdayPath, err)
			return "", false, nil
		}

		if !isWithin(r.storeRoot, resolved) {
			return "", false, nil
		}

		resolvedInfo, err := os.Lstat(resolved)
		if err != nil {
			return "", false, snaptypes.WrapOp("lstat", resolved, err)
		}

		return resolved, resolvedInfo.Mode().IsRegular(), nil
	default:
		return "", false, nil
	}
}

func (r *run) skip(sourcePath string, info fs.FileInfo) {
	r.log.Info.Printf("skipping special file %s (%s)", sourcePath, info.Mode().Type())

	r.stats.Skipped++
}

func (r *run) applyDirFixups() error {
	// reverse order = deepest directories first
	for i := len(r.fixups) - 1; i >= 0; i-- {
		if err := r.restoreMetadata(r.fixups[i].path, r.fixups[i].info); err != nil {
			return err
		}
	}

	return nil
}

func isWithin(root string, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
