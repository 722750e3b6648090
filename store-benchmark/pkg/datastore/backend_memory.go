package datastore

import (
	"context"
	"sync"
)

// memoryNamespaces are shared by every DataStore of the process that names
// the same namespace, so goroutine ranks see one store.
var (
	memoryMu         sync.Mutex
	memoryNamespaces = map[string]*MemoryBackend{}
)

// MemoryBackend keeps every key in a map.
type MemoryBackend struct {
	name string
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend returns a private, unnamed memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func openMemory(_ context.Context, cfg *ConnectionConfig, _ string) (Backend, error) {
	name := cfg.Memory.Name
	if name == "" {
		name = "default"
	}
	memoryMu.Lock()
	defer memoryMu.Unlock()
	b, ok := memoryNamespaces[name]
	if !ok {
		b = NewMemoryBackend()
		b.name = name
		memoryNamespaces[name] = b
	}
	return b, nil
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *MemoryBackend) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; ok {
		return false, nil
	}
	b.data[key] = append([]byte(nil), value...)
	return true, nil
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok, nil
}

// keyCount returns the number of keys.
func (b *MemoryBackend) keyCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Shutdown drops a named namespace; later connections start empty.
func (b *MemoryBackend) Shutdown(context.Context) error {
	if b.name == "" {
		return nil
	}
	memoryMu.Lock()
	defer memoryMu.Unlock()
	if memoryNamespaces[b.name] == b {
		delete(memoryNamespaces, b.name)
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
