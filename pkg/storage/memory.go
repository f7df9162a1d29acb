// ABOUTME: In-memory Store adapter for tests and ephemeral embedding
// ABOUTME: Copies values on the way in and out so callers never share buffers

package storage

import "sync"

// MemoryStore is a map-backed Store. It never fails and keeps nothing
// across process restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get retrieves a value by key.
func (ms *MemoryStore) Get(key string) ([]byte, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	val, ok := ms.records[key]
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// Set inserts or replaces a value.
func (ms *MemoryStore) Set(key string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	ms.records[key] = stored
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (ms *MemoryStore) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.records, key)
	return nil
}

// Len reports the number of stored records.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return len(ms.records)
}
