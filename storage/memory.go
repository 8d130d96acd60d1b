package storage

import (
	"sort"
	"sync"
)

// MemoryStore keeps entries in process memory. It is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]string
	used     int64
	maxBytes int64
}

// NewMemoryStore creates a memory store. maxBytes <= 0 disables the quota.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]string),
		maxBytes: maxBytes,
	}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used
	if old, ok := m.entries[key]; ok {
		used -= entrySize(key, old)
	}
	used += entrySize(key, value)
	if m.maxBytes > 0 && used > m.maxBytes {
		return quotaError(key, used, m.maxBytes)
	}

	m.entries[key] = value
	m.used = used
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used reports how many bytes currently count against the quota.
func (m *MemoryStore) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func (m *MemoryStore) Close() error {
	return nil
}
