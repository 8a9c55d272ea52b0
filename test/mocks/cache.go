// Package mocks provides in-memory stand-ins for external dependencies.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCache is an in-memory implementation of cache.Cache.
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data map[string]string
	mu   sync.RWMutex

	// Fail makes every call return an error.
	Fail bool
}

var errMockCache = errors.New("mock cache failure")

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
	}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Fail {
		return "", errMockCache
	}
	return m.data[key], nil // "" for missing keys, like the Redis wrapper
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errMockCache
	}

	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		return errors.New("mock cache stores strings and bytes only")
	}
	// Note: expiration is ignored in mock (no TTL implementation)
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errMockCache
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Has reports whether key is stored (useful for tests)
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[key]
	return exists
}

// Health always returns nil for mock
func (m *MockCache) Health(ctx context.Context) error {
	if m.Fail {
		return errMockCache
	}
	return nil
}

// Close is a no-op for mock
func (m *MockCache) Close() error {
	return nil
}

// Clear resets the mock cache (useful for tests)
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
}
