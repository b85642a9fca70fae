package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/model"
)

// LastPurchase хранит снимок только что завершённого заказа для страницы подтверждения.
type LastPurchase struct {
	kv  kvstore.Store
	ttl time.Duration
}

// NewLastPurchase создаёт хранилище снимка в пространстве ключей вкладки.
func NewLastPurchase(kv kvstore.Store, ttl time.Duration) *LastPurchase {
	return &LastPurchase{kv: kv, ttl: ttl}
}

// Commit сохраняет снимок заказа.
func (l *LastPurchase) Commit(ctx context.Context, order model.PurchaseOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode last purchase: %w", err)
	}
	if err := l.kv.Set(ctx, KeyLastPurchase, payload, l.ttl); err != nil {
		return fmt.Errorf("save last purchase: %w", err)
	}
	return nil
}

// Consume возвращает снимок и удаляет его, чтобы обновление страницы не показало его повторно.
// Снимок достаётся только одному из конкурентных читателей.
// Повреждённый снимок удаляется и считается отсутствующим.
func (l *LastPurchase) Consume(ctx context.Context) (model.PurchaseOrder, bool, error) {
	raw, ok, err := l.kv.Take(ctx, KeyLastPurchase)
	if err != nil {
		return model.PurchaseOrder{}, false, fmt.Errorf("take last purchase: %w", err)
	}
	if !ok {
		return model.PurchaseOrder{}, false, nil
	}

	order, valid := decodeOrder(raw)
	return order, valid, nil
}
