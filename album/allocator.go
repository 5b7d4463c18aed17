package album

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/albumbot/internal/retryutil"
	"github.com/quailyquaily/albumbot/kvstore"
)

const (
	DefaultAllocateAttempts = 3
	defaultAllocateBackoff  = 100 * time.Millisecond
)

var (
	errCounterConflict = errors.New("counter changed after write")
	errCodeTaken       = errors.New("code already holds a record")
)

type AllocatorOptions struct {
	CounterKey  string
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger
}

// Allocator hands out sequential album codes from a counter record in a store
// that only supports unconditional get and put.
//
// Within the process all calls are serialized by mu. Writers outside the
// process are detected optimistically: every write is read back, and the
// fresh code is also checked for an existing record. Either mismatch restarts
// the cycle, up to MaxAttempts times.
type Allocator struct {
	store  kvstore.Store
	key    string
	policy retryutil.Policy
	logger *slog.Logger
	mu     sync.Mutex
}

func NewAllocator(store kvstore.Store, opts AllocatorOptions) (*Allocator, error) {
	if store == nil {
		return nil, fmt.Errorf("allocator: store is required")
	}
	key := strings.TrimSpace(opts.CounterKey)
	if key == "" {
		key = DefaultCounterKey
	}
	if _, ok := ParseCode(key); ok {
		return nil, fmt.Errorf("allocator: counter key %q collides with the code namespace", key)
	}
	if err := kvstore.ValidateKey(key); err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultAllocateAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultAllocateBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		store:  store,
		key:    key,
		policy: retryutil.Policy{Attempts: attempts, Delay: backoff},
		logger: logger,
	}, nil
}

func (a *Allocator) CounterKey() string {
	return a.key
}

// Allocate returns a code no other call has returned. It fails with
// ErrAllocationFailed after exhausting its attempts or ErrStoreUnavailable
// when the store cannot be reached.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var code string
	err := retryutil.Do(ctx, a.policy, func(ctx context.Context, attempt int) error {
		current, err := a.readCounter(ctx)
		if err != nil {
			return err
		}
		next := current + 1
		if err := a.store.Put(ctx, a.key, []byte(strconv.FormatInt(next, 10))); err != nil {
			return storeError("write counter", err)
		}
		verified, err := a.readCounter(ctx)
		if err != nil {
			return err
		}
		if verified != next {
			a.logger.Warn("album_allocate_conflict",
				"attempt", attempt,
				"wrote", next,
				"read_back", verified,
			)
			return retryutil.Retryable(errCounterConflict)
		}
		candidate := FormatCode(next)
		_, err = a.store.Get(ctx, candidate)
		switch {
		case err == nil:
			a.logger.Warn("album_allocate_code_taken", "attempt", attempt, "code", candidate)
			return retryutil.Retryable(errCodeTaken)
		case !errors.Is(err, kvstore.ErrNotFound):
			return storeError("check code "+candidate, err)
		}
		code = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, retryutil.ErrExhausted) {
			return "", fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrStoreUnavailable) {
			return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, ctxErr)
		}
		return "", err
	}
	a.logger.Debug("album_code_allocated", "code", code)
	return code, nil
}

// Current reads the counter without changing it.
func (a *Allocator) Current(ctx context.Context) (int64, error) {
	return a.readCounter(ctx)
}

func (a *Allocator) readCounter(ctx context.Context) (int64, error) {
	raw, err := a.store.Get(ctx, a.key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return 0, nil
		}
		return 0, storeError("read counter", err)
	}
	text := strings.TrimSpace(string(raw))
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil || n < 0 {
		a.logger.Warn("album_counter_invalid", "key", a.key, "value", text)
		return 0, nil
	}
	return n, nil
}
