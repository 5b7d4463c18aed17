package kvstore

import (
	"context"
	"sync"
)

// Memory is a process-local Store. The hooks let tests interleave foreign
// writes or inject failures around individual operations.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte

	// BeforeGet runs before each Get; a non-nil error is returned as-is.
	BeforeGet func(key string) error
	// AfterPut runs after a successful Put, outside the store lock.
	AfterPut func(key string, value []byte)
	// BeforePut runs before each Put; a non-nil error aborts the write.
	BeforePut func(key string, value []byte) error
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if m.BeforeGet != nil {
		if err := m.BeforeGet(key); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if m.BeforePut != nil {
		if err := m.BeforePut(key, value); err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	if m.AfterPut != nil {
		m.AfterPut(key, value)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Set writes without running hooks.
func (m *Memory) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = append([]byte(nil), value...)
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
