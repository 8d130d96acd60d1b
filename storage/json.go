package storage

import (
	"encoding/json"
	"fmt"
)

// ParseError reports a stored value that is not valid JSON for its schema.
// Readers treat such values as absent.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed value under %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadJSON decodes the value under key into v. found is false when the key is
// absent; a value that fails to decode yields a *ParseError.
func ReadJSON(kv KeyValueStore, key string, v any) (found bool, err error) {
	raw, ok, err := kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, &ParseError{Key: key, Err: err}
	}
	return true, nil
}

// EncodeJSON marshals v for storage.
func EncodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value: %w", err)
	}
	return string(data), nil
}

// WriteJSON encodes v and stores it under key with SetWithEviction.
func WriteJSON(kv KeyValueStore, key string, v any, evict Evictor) error {
	value, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	return SetWithEviction(kv, key, value, evict)
}
