// Package history хранит завершённые заказы посетителя в двух областях хранения
// (долговременной и сессионной) и объединяет их при чтении.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/broadcast"
	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/model"
)

const (
	KeyDurable      = "orders.history"
	KeySession      = "orders.historySessionScoped"
	KeyChanged      = "orders.changed"
	KeyLastPurchase = "session.lastPurchase"
)

var (
	// ErrOrderNotFound возвращается, если заказ отсутствует в истории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrder возвращается при попытке сохранить заказ без идентификатора.
	ErrInvalidOrder = errors.New("order id is required")
)

// Scope описывает одну область хранения истории заказов.
type Scope interface {
	Load(ctx context.Context) ([]model.PurchaseOrder, error)
	// Append добавляет заказ, если заказа с таким идентификатором ещё нет, и сообщает, был ли он добавлен.
	Append(ctx context.Context, order model.PurchaseOrder) (bool, error)
}

// Notice сообщает открытым представлениям об изменении истории.
type Notice struct {
	OrderID string    `json:"orderId"`
	At      time.Time `json:"at"`
}

// Store объединяет долговременную и сессионную области истории.
type Store struct {
	durable Scope
	session Scope
	changed *broadcast.Topic[Notice]
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore создаёт хранилище истории. Сессионная область может отсутствовать.
// Уведомления об изменениях публикуются в notify.
func NewStore(durable, session Scope, notify kvstore.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		durable: durable,
		session: session,
		changed: broadcast.NewTopic[Notice](notify, KeyChanged, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Append сохраняет заказ в обеих областях. Повторное добавление заказа с тем же идентификатором ничего не меняет.
// Запись в сессионную область выполняется и при сбое долговременной; ошибка долговременной
// области возвращается после обеих попыток.
func (s *Store) Append(ctx context.Context, order model.PurchaseOrder) error {
	if order.ID == "" {
		return ErrInvalidOrder
	}

	inserted, durableErr := s.durable.Append(ctx, order)
	if durableErr != nil {
		s.logger.Warn("append durable history", zap.Error(durableErr), zap.String("order", order.ID))
		durableErr = fmt.Errorf("append durable history: %w", durableErr)
	}

	if s.session != nil {
		sessionInserted, err := s.session.Append(ctx, order)
		if err != nil {
			s.logger.Warn("append session history", zap.Error(err), zap.String("order", order.ID))
		}
		inserted = inserted || sessionInserted
	}

	if inserted {
		if err := s.changed.Publish(ctx, Notice{OrderID: order.ID, At: s.now().UTC()}); err != nil {
			s.logger.Warn("notify history change", zap.Error(err), zap.String("order", order.ID))
		}
	}
	return durableErr
}

// List перечитывает обе области и возвращает объединённую историю, новые заказы первыми.
// Недоступная область пропускается.
func (s *Store) List(ctx context.Context) []model.PurchaseOrder {
	durable, err := s.durable.Load(ctx)
	if err != nil {
		s.logger.Warn("load durable history", zap.Error(err))
	}

	var session []model.PurchaseOrder
	if s.session != nil {
		session, err = s.session.Load(ctx)
		if err != nil {
			s.logger.Warn("load session history", zap.Error(err))
		}
	}

	orders := Merge(durable, session)
	SortNewestFirst(orders)
	return orders
}

// Find возвращает заказ по идентификатору.
func (s *Store) Find(ctx context.Context, id string) (model.PurchaseOrder, error) {
	for _, o := range s.List(ctx) {
		if o.ID == id {
			return o, nil
		}
	}
	return model.PurchaseOrder{}, ErrOrderNotFound
}

// Subscribe регистрирует наблюдателя изменений истории.
func (s *Store) Subscribe(fn func(Notice)) (unsubscribe func()) {
	return s.changed.Subscribe(fn)
}

// Merge возвращает объединение списков без повторов идентификаторов.
// При совпадении идентификаторов сохраняется первая встреченная запись.
func Merge(a, b []model.PurchaseOrder) []model.PurchaseOrder {
	seen := make(map[string]struct{}, len(a)+len(b))
	res := make([]model.PurchaseOrder, 0, len(a)+len(b))

	for _, list := range [][]model.PurchaseOrder{a, b} {
		for _, o := range list {
			if _, ok := seen[o.ID]; ok {
				continue
			}
			seen[o.ID] = struct{}{}
			res = append(res, o)
		}
	}
	return res
}

// SortNewestFirst упорядочивает заказы по убыванию времени создания, при равенстве по идентификатору.
func SortNewestFirst(orders []model.PurchaseOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}
