package kvstore

import (
	"context"
	"time"
)

const DefaultTimeout = 10 * time.Second

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call on next. An unresponsive backend surfaces
// context.DeadlineExceeded instead of blocking the caller.
func WithTimeout(next Store, timeout time.Duration) Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutStore{next: next, timeout: timeout}
}

func (s *timeoutStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Get(ctx, key)
}

func (s *timeoutStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Put(ctx, key, value)
}

func (s *timeoutStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Delete(ctx, key)
}

func (s *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}
