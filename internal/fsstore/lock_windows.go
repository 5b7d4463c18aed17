//go:build windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// withLockFile treats exclusive creation of path as holding the lock and
// removes the file on release.
func withLockFile(ctx context.Context, path string, fn func() error) error {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
		switch {
		case err == nil:
			defer func() {
				_ = f.Close()
				_ = os.Remove(path)
			}()
			writeHolder(f)
			return fn()
		case !errors.Is(err, os.ErrExist):
			return fmt.Errorf("%w: create %s: %v", ErrLockUnavailable, path, err)
		}
		if err := sleepOrDone(ctx, path); err != nil {
			return err
		}
	}
}
