// Package broadcast связывает ключ хранилища с типизированными наблюдателями,
// которые получают каждое изменение вне зависимости от того, какое представление его записало.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/kvstore"
)

// Topic публикует значения типа T в один ключ хранилища.
type Topic[T any] struct {
	store  kvstore.Store
	key    string
	logger *zap.Logger
}

// NewTopic создаёт тему поверх ключа key.
func NewTopic[T any](store kvstore.Store, key string, logger *zap.Logger) *Topic[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Topic[T]{store: store, key: key, logger: logger}
}

// Key возвращает ключ хранилища темы.
func (t *Topic[T]) Key() string {
	return t.key
}

// Publish сохраняет значение; наблюдатели уведомляются хранилищем.
func (t *Topic[T]) Publish(ctx context.Context, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.key, err)
	}
	if err := t.store.Set(ctx, t.key, payload, 0); err != nil {
		return fmt.Errorf("publish %s: %w", t.key, err)
	}
	return nil
}

// Subscribe регистрирует наблюдателя. Удаление ключа и нечитаемые значения наблюдателю не передаются.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	return t.store.Subscribe(t.key, func(c kvstore.Change) {
		if c.Removed {
			return
		}
		var v T
		if err := json.Unmarshal(c.Value, &v); err != nil {
			t.logger.Warn("drop malformed broadcast", zap.String("key", t.key), zap.Error(err))
			return
		}
		fn(v)
	})
}
