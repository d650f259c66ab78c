package interfaces

import (
	"context"
	"time"
)

// KeyValuePair is the stored record for one namespaced blob
type KeyValuePair struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyValueStorage is the durable blob port the engine persists through.
// The engine assumes nothing beyond read-all/write-all of a value under a
// namespaced key; capped-list semantics live above this interface.
type KeyValueStorage interface {
	// Get retrieves the blob stored under key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the blob under key, creating or replacing it
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the blob under key, or ErrKeyNotFound
	Delete(ctx context.Context, key string) error

	// Has reports whether key exists
	Has(ctx context.Context, key string) (bool, error)
}

// StorageManager provides access to storage implementations
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	Close() error
}
