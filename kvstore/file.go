package kvstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quailyquaily/albumbot/internal/fsstore"
)

// File keeps one file per key under Dir. It is meant for single-host
// deployments and local development; writers to the same key are serialized
// through an advisory lock so concurrent processes never interleave bytes.
type File struct {
	dir     string
	lockDir string
}

func NewFile(dir string) (*File, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("missing file.dir")
	}
	dir = filepath.Clean(dir)
	if err := fsstore.EnsureDir(dir, 0o700); err != nil {
		return nil, err
	}
	return &File{dir: dir, lockDir: filepath.Join(dir, ".fslocks")}, nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := f.pathFor(key)
	if err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	data, ok, err := fsstore.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *File) Put(ctx context.Context, key string, value []byte) error {
	path, err := f.pathFor(key)
	if err != nil {
		return err
	}
	return f.withKeyLock(ctx, key, func() error {
		return fsstore.WriteFileAtomic(path, value, fsstore.FileOptions{})
	})
}

func (f *File) Delete(ctx context.Context, key string) error {
	path, err := f.pathFor(key)
	if err != nil {
		return err
	}
	return f.withKeyLock(ctx, key, func() error {
		return fsstore.RemoveFile(path)
	})
}

func (f *File) pathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q is not a safe file name", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key), nil
}

func (f *File) withKeyLock(ctx context.Context, key string, fn func() error) error {
	sum := sha256.Sum256([]byte(key))
	lockPath, err := fsstore.BuildLockPath(f.lockDir, "kv-"+hex.EncodeToString(sum[:8]))
	if err != nil {
		return err
	}
	return fsstore.WithLock(ctx, lockPath, fn)
}
