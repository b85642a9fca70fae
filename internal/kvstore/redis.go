package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	changesChannel   = "kv:changes"
	maxUpdateRetries = 10
)

// RedisStore хранит значения в Redis и рассылает изменения через канал Redis Pub/Sub,
// чтобы подписчики всех экземпляров сервиса видели записи друг друга.
type RedisStore struct {
	client *goredis.Client
	logger *zap.Logger
	origin string
	hub    *hub

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRedisStore создаёт хранилище поверх клиента Redis.
func NewRedisStore(client *goredis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		logger: logger,
		origin: uuid.NewString(),
		hub:    newHub(),
		ready:  make(chan struct{}),
	}
}

// Get возвращает значение ключа.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

// Set сохраняет значение и уведомляет подписчиков.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	r.emit(ctx, Change{Key: key, Value: value})
	return nil
}

// Remove удаляет ключ.
func (r *RedisStore) Remove(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	if n > 0 {
		r.emit(ctx, Change{Key: key, Removed: true})
	}
	return nil
}

// Take читает и удаляет ключ одной командой GETDEL.
func (r *RedisStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis getdel %q: %w", key, err)
	}
	r.emit(ctx, Change{Key: key, Removed: true})
	return value, true, nil
}

// Update выполняет оптимистичную транзакцию WATCH/MULTI и повторяет её при конфликте.
func (r *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	var written []byte

	txf := func(tx *goredis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		ok := true
		if err != nil {
			if !errors.Is(err, goredis.Nil) {
				return err
			}
			ok = false
		}

		value, err := fn(old, ok)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		if err == nil {
			written = value
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			r.emit(ctx, Change{Key: key, Value: written})
			return nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("redis update %q: %w", key, err)
	}

	return fmt.Errorf("redis update %q: %w", key, ErrConflict)
}

// Subscribe регистрирует обработчик изменений ключа.
func (r *RedisStore) Subscribe(key string, fn func(Change)) func() {
	return r.hub.subscribe(key, fn)
}

func (r *RedisStore) emit(ctx context.Context, c Change) {
	c.Origin = r.origin
	r.hub.notify(c)

	payload, err := json.Marshal(c)
	if err != nil {
		r.logger.Warn("encode kv change", zap.Error(err), zap.String("key", c.Key))
		return
	}
	if err := r.client.Publish(ctx, changesChannel, payload).Err(); err != nil {
		r.logger.Warn("publish kv change", zap.Error(err), zap.String("key", c.Key))
	}
}

// Ready закрывается, когда подписка на изменения других экземпляров установлена.
func (r *RedisStore) Ready() <-chan struct{} {
	return r.ready
}

// Run доставляет локальным подписчикам изменения, сделанные другими экземплярами,
// до отмены контекста.
func (r *RedisStore) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, changesChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe kv changes: %w", err)
	}
	r.readyOnce.Do(func() { close(r.ready) })

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.logger.Warn("decode kv change", zap.Error(err))
				continue
			}
			if c.Origin == r.origin {
				continue
			}
			r.hub.notify(c)
		}
	}
}
