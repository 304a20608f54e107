package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation using a Go map.
//
// Records are cloned on the way in and on the way out so callers can
// never alias the stored embedding. Suitable for serving; pair with
// snapshots (see SaveSnapshot/LoadSnapshot) for durability.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Voiceprint
}

// NewMemoryStore creates a new in-memory voiceprint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Voiceprint),
	}
}

// Put inserts or replaces the voiceprint for vp.Username.
// The whole record is swapped under the write lock, so a concurrent
// reader sees either the old voiceprint or the new one.
func (m *MemoryStore) Put(_ context.Context, vp Voiceprint) error {
	vp.Embedding = vp.Embedding.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[vp.Username] = vp
	return nil
}

// Get returns the voiceprint for a username, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, username string) (Voiceprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vp, ok := m.data[username]
	if !ok {
		return Voiceprint{}, ErrNotFound
	}
	vp.Embedding = vp.Embedding.Clone()
	return vp, nil
}

// List returns metadata for every enrolled user.
func (m *MemoryStore) List(_ context.Context) ([]UserInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]UserInfo, 0, len(m.data))
	for _, vp := range m.data {
		infos = append(infos, UserInfo{
			Username:   vp.Username,
			EnrolledAt: vp.EnrolledAt,
			ClipCount:  vp.ClipCount,
		})
	}
	return infos, nil
}

// All returns an independent copy of every voiceprint.
func (m *MemoryStore) All(_ context.Context) ([]Voiceprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vps := make([]Voiceprint, 0, len(m.data))
	for _, vp := range m.data {
		vp.Embedding = vp.Embedding.Clone()
		vps = append(vps, vp)
	}
	return vps, nil
}

// Delete removes the voiceprint for a username, or ErrNotFound.
func (m *MemoryStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[username]; !ok {
		return ErrNotFound
	}
	delete(m.data, username)
	return nil
}

// Len returns the number of enrolled users.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data), nil
}

// replaceAll swaps the full contents of the store. Used by snapshot load.
func (m *MemoryStore) replaceAll(vps []Voiceprint) {
	data := make(map[string]Voiceprint, len(vps))
	for _, vp := range vps {
		vp.Embedding = vp.Embedding.Clone()
		data[vp.Username] = vp
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = data
}
