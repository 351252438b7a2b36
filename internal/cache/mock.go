package cache

import (
	"context"
	"sort"
	"sync"
)

// MockClient simulates Redis in memory. It backs tests and `serve --offline`.
type MockClient struct {
	mu     sync.RWMutex
	sets   map[string]map[string]struct{}
	hashes map[string]map[string]string
}

// NewMockClient initializes an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		sets:   make(map[string]map[string]struct{}),
		hashes: make(map[string]map[string]string),
	}
}

// ReplaceHashes applies the whole replacement under one lock.
func (m *MockClient) ReplaceHashes(_ context.Context, setKey string, members []string, hashes map[string]map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, setKey)
	set := make(map[string]struct{}, len(members))
	for _, member := range members {
		set[member] = struct{}{}
	}
	m.sets[setKey] = set
	for key, fields := range hashes {
		delete(m.sets, key)
		hash := make(map[string]string, len(fields))
		for k, v := range fields {
			hash[k] = v
		}
		m.hashes[key] = hash
	}
	return nil
}

// SMembers lists set members in sorted order.
func (m *MockClient) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

// HGetAll returns a copy of the hash, empty when missing.
func (m *MockClient) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// Ping always succeeds.
func (m *MockClient) Ping(context.Context) error {
	return nil
}

// Keys returns the number of stored keys.
func (m *MockClient) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sets) + len(m.hashes)
}
