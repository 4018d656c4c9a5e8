// Package store provides the namespaced key-value store the engine persists
// into. Values are JSON blobs; keys follow the "entity:<id>" convention.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no record exists under the key.
var ErrKeyNotFound = errors.New("key not found")

// UpdateFunc receives the current value under a key (nil if the key does not
// exist) and returns the value to write. Returning an error aborts the update
// without writing anything.
type UpdateFunc func(current []byte) ([]byte, error)

// MultiUpdateFunc receives the current values for a set of keys (absent keys
// are missing from the map) and returns the values to write. Keys absent from
// the returned map are left untouched.
type MultiUpdateFunc func(current map[string][]byte) (map[string][]byte, error)

// Store is the persistence contract of the engine.
//
// Update and UpdateMulti execute the whole read-modify-write as one atomic
// unit. They are the only safe way to mutate records that concurrent requests
// may touch: the pointsAwarded idempotency guard and the level order swap both
// depend on it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) ([][]byte, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	UpdateMulti(ctx context.Context, keys []string, fn MultiUpdateFunc) error
}
