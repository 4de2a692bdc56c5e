package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

var errTxnDone = errors.New("transaction already finished")

// Memory is an in-process Store. A transaction holds the store lock from
// Begin until Commit or Rollback.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Begin(ctx context.Context) (Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	return &memTxn{store: m, writes: make(map[string][]byte)}, nil
}

func (m *Memory) Close() error {
	return nil
}

type memTxn struct {
	store  *Memory
	writes map[string][]byte
	done   bool
}

func (t *memTxn) Load(ctx context.Context, key string) ([]byte, error) {
	if t.done {
		return nil, errTxnDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := t.writes[key]; ok {
		return clone(v), nil
	}
	if v, ok := t.store.data[key]; ok {
		return clone(v), nil
	}
	return nil, ErrNotFound
}

func (t *memTxn) Save(ctx context.Context, key string, value []byte) error {
	if t.done {
		return errTxnDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.writes[key] = clone(value)
	return nil
}

func (t *memTxn) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	if t.done {
		return errTxnDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	merged := make(map[string][]byte)
	for k, v := range t.store.data {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k, v := range t.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn(k, clone(merged[k])); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTxn) Commit() error {
	if t.done {
		return errTxnDone
	}
	for k, v := range t.writes {
		t.store.data[k] = v
	}
	t.finish()
	return nil
}

func (t *memTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memTxn) finish() {
	t.done = true
	t.writes = nil
	t.store.mu.Unlock()
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
