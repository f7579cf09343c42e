// Package memory 提供进程内的块存储，主要给测试和 "storage.type: memory" 使用
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"gridstream/pkg/storage"
)

type Store struct {
	mu     sync.RWMutex
	chunks map[string][]byte
}

func New() *Store {
	return &Store{chunks: make(map[string][]byte)}
}

func (m *Store) Put(_ context.Context, key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	// 拷贝一份，调用方之后可以复用 data
	m.mu.Lock()
	m.chunks[key] = bytes.Clone(data)
	m.mu.Unlock()
	return nil
}

func (m *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.chunks[key]
	m.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Store) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[key]
	return ok, nil
}

func (m *Store) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.chunks, key)
	m.mu.Unlock()
	return nil
}

// Len 返回当前块数量
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}
