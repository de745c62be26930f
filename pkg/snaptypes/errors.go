package snaptypes

import (
	"errors"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDestinationConflict = errors.New("destination folder already initialized for another source")
	ErrDestinationNotEmpty = errors.New("destination folder must be empty")
	ErrDateComputation     = errors.New("cannot compute date")
	ErrAlreadyExists       = errors.New("already exists")
	ErrIo                  = errors.New("I/O error")
	ErrTaskFailure         = errors.New("task failed")
	ErrBadDigest           = errors.New("bad digest")
)

// filesystem operation that failed. errors.Is(err, ErrIo) matches it, and it unwraps
// to the underlying OS error so errors.Is(err, fs.ErrNotExist) etc. keep working.
type OpError struct {
	Op   string // "copy", "mkdir", "readlink", "symlink", "hash", ...
	Path string
	Err  error
}

func (o *OpError) Error() string {
	return o.Op + " " + o.Path + ": " + o.Err.Error()
}

func (o *OpError) Unwrap() error {
	return o.Err
}

func (o *OpError) Is(target error) bool {
	return target == ErrIo
}

// returns nil if err is nil
func WrapOp(op string, path string, err error) error {
	if err == nil {
		return nil
	}

	return &OpError{Op: op, Path: path, Err: err}
}
