package store

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Load when a key has no value.
var ErrNotFound = errors.New("key not found")

// KV is the load/save contract the ledger persists through.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	// Scan calls fn for every key starting with prefix, in key order.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}

// Txn is a KV whose writes become visible only on Commit. Rollback after
// Commit is a no-op, so callers can always defer it.
type Txn interface {
	KV
	Commit() error
	Rollback() error
}

// Store opens transactions. Transactions on one Store are serialized.
type Store interface {
	Begin(ctx context.Context) (Txn, error)
	Close() error
}
