// Package kvstore содержит абстракцию разделяемого хранилища ключ-значение
// с уведомлениями об изменениях и её реализации.
package kvstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrConflict возвращается, если атомарное обновление не удалось выполнить из-за конкурентной записи.
var ErrConflict = errors.New("concurrent update conflict")

// Change описывает изменение значения ключа.
type Change struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
	Origin  string `json:"origin"`
}

// UpdateFunc вычисляет новое значение ключа по текущему.
type UpdateFunc func(old []byte, ok bool) ([]byte, error)

// Store описывает контракт хранилища ключ-значение.
//
// Каждая запись синхронно уведомляет подписчиков текущего процесса до возврата из метода.
// Реализации, разделяемые между процессами, дополнительно доставляют изменения подписчикам
// других процессов.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set сохраняет значение. Нулевой ttl означает бессрочное хранение.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	// Take атомарно читает и удаляет значение: из конкурентных вызовов значение получит только один.
	Take(ctx context.Context, key string) ([]byte, bool, error)
	// Update атомарно заменяет значение ключа результатом fn.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Subscribe(key string, fn func(Change)) (unsubscribe func())
}

type hub struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func(Change)
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]func(Change))}
}

func (h *hub) subscribe(key string, fn func(Change)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]func(Change))
	}
	h.subs[key][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			h.mu.Unlock()
		})
	}
}

func (h *hub) notify(c Change) {
	h.mu.RLock()
	fns := make([]func(Change), 0, len(h.subs[c.Key]))
	for _, fn := range h.subs[c.Key] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

type namespaced struct {
	store  Store
	prefix string
}

// Namespace возвращает представление хранилища, в котором все ключи предварены prefix.
func Namespace(s Store, prefix string) Store {
	return &namespaced{store: s, prefix: prefix + ":"}
}

func (n *namespaced) key(k string) string {
	return n.prefix + k
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.store.Get(ctx, n.key(key))
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.store.Set(ctx, n.key(key), value, ttl)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.key(key))
}

func (n *namespaced) Take(ctx context.Context, key string) ([]byte, bool, error) {
	return n.store.Take(ctx, n.key(key))
}

func (n *namespaced) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	return n.store.Update(ctx, n.key(key), ttl, fn)
}

func (n *namespaced) Subscribe(key string, fn func(Change)) func() {
	return n.store.Subscribe(n.key(key), func(c Change) {
		c.Key = strings.TrimPrefix(c.Key, n.prefix)
		fn(c)
	})
}
