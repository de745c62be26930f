// Types shared by the snapshot packages
package snaptypes

import (
	"bytes"
	"encoding/hex"
	"io/fs"
)

const (
	DigestSize = 32

	// marker file in destination root is named ".<source basename>.<MarkerSuffix>"
	MarkerSuffix = "snapshoot"

	// snapshot directories are named by local calendar date
	DateFormat = "2006-01-02"
)

// SHA-256 over the full content of a file
type Digest [DigestSize]byte

func DigestFromHex(serialized string) (*Digest, error) {
	raw, err := hex.DecodeString(serialized)
	if err != nil || len(raw) != DigestSize {
		return nil, ErrBadDigest
	}

	d := Digest{}
	copy(d[:], raw)
	return &d, nil
}

func (d Digest) AsHex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.AsHex()
}

func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d[:], other[:])
}

type EntryKind int

const (
	KindOther EntryKind = iota // fifo, socket, device
	KindDirectory
	KindRegular
	KindSymlink
)

// classifies with lstat semantics, i.e. a symlink to a directory is KindSymlink
func KindFromMode(mode fs.FileMode) EntryKind {
	switch {
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegular:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}
