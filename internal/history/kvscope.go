package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/model"
)

var errDuplicate = errors.New("order already recorded")

// KVScope хранит историю как JSON-массив в одном ключе хранилища.
type KVScope struct {
	kv     kvstore.Store
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewKVScope создаёт область истории в ключе key. Нулевой ttl означает долговременное хранение.
func NewKVScope(kv kvstore.Store, key string, ttl time.Duration, logger *zap.Logger) *KVScope {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVScope{kv: kv, key: key, ttl: ttl, logger: logger}
}

// Load читает историю, пропуская повреждённые записи по одной.
func (s *KVScope) Load(ctx context.Context) ([]model.PurchaseOrder, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !ok {
		return nil, nil
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		s.logger.Warn("corrupt order history", zap.String("key", s.key), zap.Error(err))
		return nil, nil
	}

	orders := make([]model.PurchaseOrder, 0, len(entries))
	for i, entry := range entries {
		o, ok := decodeOrder(entry)
		if !ok {
			s.logger.Warn("skip corrupt order entry", zap.String("key", s.key), zap.Int("index", i))
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Append атомарно добавляет заказ в начало массива, если его там ещё нет.
// Нечитаемые записи сохраняются без изменений.
func (s *KVScope) Append(ctx context.Context, order model.PurchaseOrder) (bool, error) {
	encoded, err := json.Marshal(order)
	if err != nil {
		return false, fmt.Errorf("encode order: %w", err)
	}

	err = s.kv.Update(ctx, s.key, s.ttl, func(old []byte, ok bool) ([]byte, error) {
		var entries []json.RawMessage
		if ok {
			entries, err = decodeEntries(old)
			if err != nil {
				s.logger.Warn("overwrite unreadable order history", zap.String("key", s.key), zap.Error(err))
				entries = nil
			}
		}

		for _, entry := range entries {
			if existing, ok := decodeOrder(entry); ok && existing.ID == order.ID {
				return nil, errDuplicate
			}
		}

		entries = append([]json.RawMessage{encoded}, entries...)
		return json.Marshal(entries)
	})
	if errors.Is(err, errDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append %s: %w", s.key, err)
	}
	return true, nil
}

func decodeEntries(raw []byte) ([]json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func decodeOrder(entry json.RawMessage) (model.PurchaseOrder, bool) {
	var o model.PurchaseOrder
	if err := json.Unmarshal(entry, &o); err != nil || o.ID == "" {
		return model.PurchaseOrder{}, false
	}
	return o, true
}
