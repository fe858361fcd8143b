package storage

import (
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. It backs tests and headless sessions
// where nothing should outlive the process.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Get(key string, out any) (bool, error) {
	m.mu.RLock()
	blob, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := sonic.Unmarshal(blob, out); err != nil {
		return false, errors.Wrapf(err, "[Get] decoding blob %q", key)
	}
	return true, nil
}

func (m *Memory) Set(key string, value any) error {
	blob, err := sonic.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "[Set] encoding blob %q", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blob
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = make(map[string][]byte)
	return nil
}
