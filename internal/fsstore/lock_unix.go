//go:build !windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// withLockFile uses a non-blocking flock in a poll loop so that waiting
// can be cancelled through ctx.
func withLockFile(ctx context.Context, path string, fn func() error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrLockUnavailable, path, err)
	}
	defer f.Close()

	fd := int(f.Fd())
	for {
		held, err := tryFlock(fd)
		if err != nil {
			return fmt.Errorf("%w: flock %s: %v", ErrLockUnavailable, path, err)
		}
		if held {
			break
		}
		if err := sleepOrDone(ctx, path); err != nil {
			return err
		}
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	writeHolder(f)
	return fn()
}

func tryFlock(fd int) (bool, error) {
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EAGAIN):
			return false, nil
		default:
			return false, err
		}
	}
}
