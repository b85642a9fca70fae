package history

import (
	"context"

	"github.com/mmeshcher/uc-storefront/internal/model"
)

// OrderRepository описывает долговременный архив заказов.
type OrderRepository interface {
	AppendOrder(ctx context.Context, visitorID string, order model.PurchaseOrder) (bool, error)
	ListOrders(ctx context.Context, visitorID string) ([]model.PurchaseOrder, error)
}

type repositoryScope struct {
	repo      OrderRepository
	visitorID string
}

// NewRepositoryScope возвращает долговременную область истории посетителя в архиве заказов.
func NewRepositoryScope(repo OrderRepository, visitorID string) Scope {
	return &repositoryScope{repo: repo, visitorID: visitorID}
}

func (s *repositoryScope) Load(ctx context.Context) ([]model.PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, s.visitorID)
}

func (s *repositoryScope) Append(ctx context.Context, order model.PurchaseOrder) (bool, error) {
	return s.repo.AppendOrder(ctx, s.visitorID, order)
}
