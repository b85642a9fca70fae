package proof

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore хранит подтверждения в памяти процесса.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Artifact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Artifact)}
}

func (m *MemoryStore) Put(_ context.Context, a Artifact) (string, error) {
	if err := Validate(a); err != nil {
		return "", err
	}

	ref := "memory://" + uuid.NewString() + extension(a.ContentType)
	a.Data = append([]byte(nil), a.Data...)

	m.mu.Lock()
	m.objects[ref] = a
	m.mu.Unlock()

	return ref, nil
}

// Get возвращает сохранённое подтверждение.
func (m *MemoryStore) Get(ref string) (Artifact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.objects[ref]
	return a, ok
}
