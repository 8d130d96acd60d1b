package storage

import (
	"errors"

	"github.com/avast/retry-go/v4"
)

// Evictor frees space in a store, usually by dropping the catalog cache.
type Evictor func() error

// SetWithEviction writes value under key. When the store reports
// ErrQuotaExceeded it runs evict once and retries the write once.
// Any other error, or a second quota failure, is returned as is.
func SetWithEviction(kv KeyValueStore, key, value string, evict Evictor) error {
	var evictErr error
	err := retry.Do(
		func() error { return kv.Set(key, value) },
		retry.Attempts(2),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return evict != nil && errors.Is(err, ErrQuotaExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			if n == 0 {
				evictErr = evict()
			}
		}),
	)
	if err != nil && evictErr != nil {
		return errors.Join(err, evictErr)
	}
	return err
}
