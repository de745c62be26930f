// Computes content digests of files, used for deciding content equality between a
// source file and its counterpart in the previous snapshot
package snaphash

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/function61/snapshoot/pkg/snaptypes"
	"github.com/minio/sha256-simd"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkSize = 64 * 1024
)

type Hasher struct {
	chunkSize   int
	bytesHashed atomic.Int64
}

func New() *Hasher {
	return NewWithChunkSize(DefaultChunkSize)
}

func NewWithChunkSize(chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Hasher{chunkSize: chunkSize}
}

// total bytes read by all digest computations so far. safe to call concurrently.
func (h *Hasher) BytesHashed() int64 {
	return h.bytesHashed.Load()
}

// reads the file at path to end-of-stream. symlinks are followed.
func (h *Hasher) Digest(ctx context.Context, path string) (snaptypes.Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return snaptypes.Digest{}, snaptypes.WrapOp("hash", path, err)
	}
	defer file.Close()

	digest, err := h.DigestReader(ctx, file)
	if err != nil {
		return snaptypes.Digest{}, snaptypes.WrapOp("hash", path, err)
	}

	return digest, nil
}

// for when you don't have a file but you have a stream
func (h *Hasher) DigestReader(ctx context.Context, content io.Reader) (snaptypes.Digest, error) {
	fullContentHash := sha256.New()
	buf := make([]byte, h.chunkSize)

	for {
		select {
		case <-ctx.Done():
			return snaptypes.Digest{}, ctx.Err()
		default:
		}

		n, errRead := content.Read(buf)
		if n > 0 {
			// hash.Hash.Write never returns an error
			_, _ = fullContentHash.Write(buf[:n])
			h.bytesHashed.Add(int64(n))
		}

		if errRead == io.EOF {
			break
		}
		if errRead != nil {
			return snaptypes.Digest{}, errRead
		}
	}

	digest := snaptypes.Digest{}
	copy(digest[:], fullContentHash.Sum(nil))

	return digest, nil
}

// computes all digests concurrently. results are in the order of paths. if any single
// computation fails, the whole batch fails and no results are returned.
func (h *Hasher) DigestMany(ctx context.Context, paths []string) ([]snaptypes.Digest, error) {
	digests := make([]snaptypes.Digest, len(paths))

	tasks, tasksCtx := errgroup.WithContext(ctx)

	for idx, path := range paths {
		idx, path := idx, path // pin

		tasks.Go(func() (err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					err = fmt.Errorf("%w: hashing %s: %v", snaptypes.ErrTaskFailure, path, recovered)
				}
			}()

			digest, err := h.Digest(tasksCtx, path)
			if err != nil {
				return err
			}

			// each task writes only its own slot
			digests[idx] = digest

			return nil
		})
	}

	if err := tasks.Wait(); err != nil {
		return nil, err
	}

	return digests, nil
}

// whole-content equality of two files. both digests are computed concurrently.
func (h *Hasher) Equal(ctx context.Context, pathA string, pathB string) (bool, error) {
	digests, err := h.DigestMany(ctx, []string{pathA, pathB})
	if err != nil {
		return false, err
	}

	return digests[0].Equal(digests[1]), nil
}
