package storage

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned by Set when the backend cannot hold the value.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KeyValueStore is a persistent, origin-scoped string store.
// All values are strings; structured data is JSON-encoded by callers.
type KeyValueStore interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key. It returns ErrQuotaExceeded (possibly wrapped)
	// when the write would push the store past its capacity.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Keys lists all keys in ascending order.
	Keys() ([]string, error)
}

// Backend is a KeyValueStore that holds resources.
type Backend interface {
	KeyValueStore
	Close() error
}

// entrySize is the number of bytes an entry counts against a quota.
func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func quotaError(key string, need, limit int64) error {
	return fmt.Errorf("%w: writing %q needs %d bytes, limit is %d", ErrQuotaExceeded, key, need, limit)
}
