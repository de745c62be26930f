package snaptypes

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestDigestEqual(t *testing.T) {
	a, _ := DigestFromHex("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b, _ := DigestFromHex("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	assert.Assert(t, a.Equal(*a))
	assert.Assert(t, !a.Equal(*b))
	assert.EqualString(t, b.AsHex(), "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
}

func TestDigestFromHexBad(t *testing.T) {
	_, err := DigestFromHex("aabb")
	assert.Assert(t, err == ErrBadDigest)

	_, err = DigestFromHex("not hex")
	assert.Assert(t, err == ErrBadDigest)
}

func TestKindFromMode(t *testing.T) {
	for _, tc := range []struct {
		mode     fs.FileMode
		expected string
	}{
		{0644, "file"},
		{fs.ModeDir | 0755, "directory"},
		{fs.ModeSymlink | 0777, "symlink"},
		{fs.ModeNamedPipe | 0644, "other"},
		{fs.ModeSocket, "other"},
		{fs.ModeDevice | fs.ModeCharDevice, "other"},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			assert.EqualString(t, KindFromMode(tc.mode).String(), tc.expected)
		})
	}
}

func TestOpError(t *testing.T) {
	err := WrapOp("copy", "/tmp/foo", os.ErrNotExist)

	assert.EqualString(t, err.Error(), "copy /tmp/foo: file does not exist")
	assert.Assert(t, errors.Is(err, ErrIo))
	assert.Assert(t, errors.Is(err, fs.ErrNotExist))
	assert.Assert(t, !errors.Is(err, ErrTaskFailure))

	assert.Assert(t, WrapOp("copy", "/tmp/foo", nil) == nil)
}
