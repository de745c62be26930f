package snapengine

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"

	"github.com/djherbis/times"
	"github.com/function61/snapshoot/pkg/snaptypes"
	"github.com/pkg/xattr"
)

const (
	userXattrPrefix = "user."
)

func (r *run) makeDirectory(todayPath string, info fs.FileInfo) error {
	perm := fs.FileMode(0777)
	if r.opts.PreserveMetadata {
		// owner needs to write into it until the subtree is done. final permissions
		// are restored in applyDirFixups()
		perm = 0700
	}

	if err := os.Mkdir(todayPath, perm); err != nil {
		return snaptypes.WrapOp("mkdir", todayPath, err)
	}

	if r.opts.PreserveMetadata {
		r.fixups = append(r.fixups, dirFixup{path: todayPath, info: info})
	}

	r.log.Debug.Printf("mkdir %s", todayPath)

	r.stats.Directories++

	return nil
}

// target is copied as-is, i.e. it is not resolved or validated
func (r *run) recreateSymlink(sourcePath string, todayPath string) error {
	target, err := os.Readlink(sourcePath)
	if err != nil {
		return snaptypes.WrapOp("readlink", sourcePath, err)
	}

	if err := os.Symlink(target, todayPath); err != nil {
		return snaptypes.WrapOp("symlink", todayPath, err)
	}

	r.log.Debug.Printf("symlink %s -> %s", todayPath, target)

	r.stats.Symlinks++

	return nil
}

func (r *run) linkUnchanged(storedPath string, todayPath string, info fs.FileInfo) error {
	if err := os.Symlink(storedPath, todayPath); err != nil {
		return snaptypes.WrapOp("symlink", todayPath, err)
	}

	r.log.Debug.Printf("unchanged %s -> %s", todayPath, storedPath)

	r.stats.FilesLinked++
	r.stats.BytesLinked += info.Size()

	return nil
}

func (r *run) copyFile(sourcePath string, todayPath string, info fs.FileInfo) error {
	written, err := r.copyFileInternal(sourcePath, todayPath)
	if err != nil {
		return snaptypes.WrapOp("copy", sourcePath, err)
	}

	if r.opts.PreserveMetadata {
		if err := r.restoreMetadata(todayPath, info); err != nil {
			return err
		}
	}

	r.log.Debug.Printf("copied %s", todayPath)

	r.stats.FilesCopied++
	r.stats.BytesCopied += written

	return nil
}

func (r *run) copyFileInternal(sourcePath string, todayPath string) (int64, error) {
	source, err := os.Open(sourcePath)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	// O_EXCL: today's root is ours alone, so an existing file means something is badly wrong
	target, err := os.OpenFile(todayPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(target, source)
	if err != nil {
		target.Close()
		return written, err
	}

	if r.opts.PreserveMetadata {
		// before chmod, since the copy may become read-only
		if err := copyUserXattrs(sourcePath, target); err != nil {
			target.Close()
			return written, err
		}
	}

	return written, target.Close()
}

// permission bits + access/modification times
func (r *run) restoreMetadata(todayPath string, info fs.FileInfo) error {
	if err := os.Chmod(todayPath, info.Mode().Perm()); err != nil {
		return snaptypes.WrapOp("chmod", todayPath, err)
	}

	ts := times.Get(info)

	if err := os.Chtimes(todayPath, ts.AccessTime(), ts.ModTime()); err != nil {
		return snaptypes.WrapOp("chtimes", todayPath, err)
	}

	return nil
}

// only the user namespace: the others (security.*, trusted.*, system.*) mostly need
// privileges and aren't portable across filesystems
func copyUserXattrs(sourcePath string, target *os.File) error {
	names, err := xattr.LList(sourcePath)
	if err != nil {
		if xattrUnsupported(err) {
			return nil
		}

		return err
	}

	for _, name := range names {
		if !strings.HasPrefix(name, userXattrPrefix) {
			continue
		}

		value, err := xattr.LGet(sourcePath, name)
		if err != nil {
			return err
		}

		if err := xattr.FSet(target, name, value); err != nil {
			if xattrUnsupported(err) { // target filesystem can't store them
				return nil
			}

			return err
		}
	}

	return nil
}

func xattrUnsupported(err error) bool {
	var xattrErr *xattr.Error
	if errors.As(err, &xattrErr) {
		err = xattrErr.Err
	}

	return errors.Is(err, syscall.ENOTSUP)
}
