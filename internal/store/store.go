// Package store provides key-value storage backends for BioFlow client state.
//
// It includes an in-memory store used by tests and scratch profiles, and
// persistent SQLite, PostgreSQL and Redis backends selected by DSN.
package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Store is a flat string key-value store scoped to one profile namespace.
// Every Set is a full-value overwrite.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key in the namespace in ascending order.
	Keys(ctx context.Context) ([]string, error)
	// Clear removes every key in the namespace.
	Clear(ctx context.Context) error
	Close() error
}

// InMemoryStore is a simple in-memory Store.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[string]string)}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	slog.Debug("InMemoryStore Set succeeded", "key", key, "bytes", len(value))
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *InMemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	slog.Debug("InMemoryStore Clear succeeded")
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
