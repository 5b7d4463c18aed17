package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxLockNameLen   = 120
	lockPollInterval = 25 * time.Millisecond
)

// BuildLockPath maps name to a .lck file under dir. Names may only use
// lowercase letters, digits, '.', '_' and '-', and may not start or end
// with a dot.
func BuildLockPath(dir string, name string) (string, error) {
	dir, err := normalizePath(dir)
	if err != nil {
		return "", err
	}
	if err := checkLockName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, strings.TrimSpace(name)+".lck"), nil
}

// WithLock runs fn while holding an exclusive lock on path, creating the
// parent directory if needed. It gives up with ErrLockTimeout once ctx is done.
func WithLock(ctx context.Context, path string, fn func() error) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := EnsureDir(filepath.Dir(path), defaultDirPerm); err != nil {
		return err
	}
	return withLockFile(ctx, path, fn)
}

func checkLockName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fmt.Errorf("%w: empty lock name", ErrInvalidPath)
	case len(name) > maxLockNameLen:
		return fmt.Errorf("%w: lock name longer than %d", ErrInvalidPath, maxLockNameLen)
	case name[0] == '.' || name[len(name)-1] == '.':
		return fmt.Errorf("%w: lock name %q starts or ends with a dot", ErrInvalidPath, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: lock name %q has invalid character %q", ErrInvalidPath, name, r)
		}
	}
	return nil
}

// lockHolder is written into a held lock file so a stuck lock can be traced
// back to its process.
type lockHolder struct {
	PID   int       `json:"pid"`
	Host  string    `json:"host"`
	Since time.Time `json:"since"`
}

func writeHolder(f *os.File) {
	host, _ := os.Hostname()
	data, err := json.Marshal(lockHolder{PID: os.Getpid(), Host: host, Since: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := f.Truncate(0); err != nil {
		return
	}
	_, _ = f.WriteAt(append(data, '\n'), 0)
}

// sleepOrDone waits one poll interval, or returns ErrLockTimeout when ctx
// ends first.
func sleepOrDone(ctx context.Context, path string) error {
	t := time.NewTimer(lockPollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockTimeout, path, ctx.Err())
	case <-t.C:
		return nil
	}
}
