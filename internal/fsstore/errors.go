package fsstore

import "errors"

var (
	ErrInvalidPath     = errors.New("fsstore: invalid path")
	ErrLockTimeout     = errors.New("fsstore: timed out waiting for lock")
	ErrLockUnavailable = errors.New("fsstore: cannot acquire lock")
	ErrWriteFailed     = errors.New("fsstore: write failed")
)
