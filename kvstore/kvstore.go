// Package kvstore is the remote key-value collaborator that published albums
// and the allocation counter live in. Backends offer only unconditional reads,
// writes and deletes of opaque byte values; nothing here is versioned.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("kvstore: key not found")
	ErrInvalidKey = errors.New("kvstore: invalid key")
)

const maxKeyLen = 512

type Store interface {
	// Get returns ErrNotFound when nothing is stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ValidateKey accepts printable ASCII keys up to 512 bytes.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if len(key) > maxKeyLen {
		return fmt.Errorf("%w: key longer than %d bytes", ErrInvalidKey, maxKeyLen)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < 0x21 || c > 0x7e {
			return fmt.Errorf("%w: byte 0x%02x at %d", ErrInvalidKey, c, i)
		}
	}
	return nil
}
