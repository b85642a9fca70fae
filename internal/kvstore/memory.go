package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore хранит значения в памяти процесса.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	hub     *hub
	now     func() time.Time
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		hub:     newHub(),
		now:     time.Now,
	}
}

// Get возвращает значение ключа, если оно существует и не истекло.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lookup(key)
	return v, ok, nil
}

func (m *MemoryStore) lookup(key string) ([]byte, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

func (m *MemoryStore) store(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
}

// Set сохраняет значение и уведомляет подписчиков.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.store(key, value, ttl)
	m.mu.Unlock()

	m.hub.notify(Change{Key: key, Value: value, Origin: "memory"})
	return nil
}

// Remove удаляет ключ. Удаление отсутствующего ключа не является ошибкой.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()

	if existed {
		m.hub.notify(Change{Key: key, Removed: true, Origin: "memory"})
	}
	return nil
}

// Take возвращает значение и удаляет ключ под блокировкой хранилища.
func (m *MemoryStore) Take(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	value, ok := m.lookup(key)
	delete(m.entries, key)
	m.mu.Unlock()

	if ok {
		m.hub.notify(Change{Key: key, Removed: true, Origin: "memory"})
	}
	return value, ok, nil
}

// Update выполняет fn под блокировкой хранилища.
func (m *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	m.mu.Lock()
	old, ok := m.lookup(key)
	value, err := fn(old, ok)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.store(key, value, ttl)
	m.mu.Unlock()

	m.hub.notify(Change{Key: key, Value: value, Origin: "memory"})
	return nil
}

// Subscribe регистрирует обработчик изменений ключа.
func (m *MemoryStore) Subscribe(key string, fn func(Change)) func() {
	return m.hub.subscribe(key, fn)
}
