// Package service связывает хранилища посетителя, каталог, оформление покупки и чеки
// в операции, которые вызывают HTTP-обработчики.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/catalog"
	"github.com/mmeshcher/uc-storefront/internal/checkout"
	"github.com/mmeshcher/uc-storefront/internal/currency"
	"github.com/mmeshcher/uc-storefront/internal/history"
	"github.com/mmeshcher/uc-storefront/internal/identity"
	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/locale"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/proof"
	"github.com/mmeshcher/uc-storefront/internal/receipt"
)

// Visitor определяет посетителя и открытую им вкладку.
type Visitor struct {
	ID  string
	Tab string
}

func (v Visitor) owner() string {
	return v.ID + ":" + v.Tab
}

// EventKind описывает тип события для открытых представлений.
type EventKind string

const (
	EventLocale EventKind = "locale"
	EventOrders EventKind = "orders"
)

// Event доставляется открытым представлениям посетителя.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
}

// Exporter выгружает чек в файл.
type Exporter interface {
	Export(r receipt.Receipt) (proof.Artifact, error)
}

// Options задаёт зависимости сервиса.
type Options struct {
	KV            kvstore.Store
	Checkout      *checkout.Service
	Formatter     *currency.Formatter
	Exporter      Exporter
	Orders        history.OrderRepository
	DefaultLocale model.LocaleSelection
	SessionTTL    time.Duration
	Logger        *zap.Logger
}

// Service содержит операции витрины, выполняемые от имени посетителя.
type Service struct {
	kv            kvstore.Store
	checkout      *checkout.Service
	formatter     *currency.Formatter
	exporter      Exporter
	orders        history.OrderRepository
	defaultLocale model.LocaleSelection
	sessionTTL    time.Duration
	logger        *zap.Logger
}

// NewService создаёт сервис витрины.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		kv:            opts.KV,
		checkout:      opts.Checkout,
		formatter:     opts.Formatter,
		exporter:      opts.Exporter,
		orders:        opts.Orders,
		defaultLocale: opts.DefaultLocale,
		sessionTTL:    ttl,
		logger:        logger,
	}
}

func (s *Service) visitorKV(v Visitor) kvstore.Store {
	return kvstore.Namespace(s.kv, "visitor:"+v.ID)
}

func (s *Service) tabKV(v Visitor) kvstore.Store {
	return kvstore.Namespace(s.visitorKV(v), "tab:"+v.Tab)
}

func (s *Service) identity(v Visitor) *identity.Store {
	return identity.NewStore(s.visitorKV(v), s.logger)
}

func (s *Service) locale(v Visitor) *locale.Context {
	return locale.NewContext(s.visitorKV(v), s.defaultLocale, s.logger)
}

func (s *Service) history(v Visitor) *history.Store {
	var durable history.Scope
	if s.orders != nil {
		durable = history.NewRepositoryScope(s.orders, v.ID)
	} else {
		durable = history.NewKVScope(s.visitorKV(v), history.KeyDurable, 0, s.logger)
	}
	session := history.NewKVScope(s.tabKV(v), history.KeySession, s.sessionTTL, s.logger)
	return history.NewStore(durable, session, s.visitorKV(v), s.logger)
}

func (s *Service) lastPurchase(v Visitor) *history.LastPurchase {
	return history.NewLastPurchase(s.tabKV(v), s.sessionTTL)
}

func (s *Service) scope(v Visitor) checkout.Scope {
	return checkout.Scope{
		Owner:        v.owner(),
		Identity:     s.identity(v),
		History:      s.history(v),
		LastPurchase: s.lastPurchase(v),
	}
}

// Catalog возвращает все пакеты каталога.
func (s *Service) Catalog() []model.Package {
	return catalog.All()
}

// Package возвращает пакет по идентификатору.
func (s *Service) Package(id string) (model.Package, error) {
	return catalog.FindPackage(id)
}

// PaymentMethodEnabled сообщает, принимается ли способ оплаты.
func (s *Service) PaymentMethodEnabled(m model.PaymentMethod) bool {
	return s.checkout.MethodEnabled(m)
}

func (s *Service) GetIdentity(ctx context.Context, v Visitor) (model.Identity, bool) {
	return s.identity(v).Get(ctx)
}

func (s *Service) SetIdentity(ctx context.Context, v Visitor, playerID, username string) (model.Identity, error) {
	return s.identity(v).Set(ctx, playerID, username)
}

func (s *Service) ClearIdentity(ctx context.Context, v Visitor) error {
	return s.identity(v).Clear(ctx)
}

func (s *Service) GetLocale(ctx context.Context, v Visitor) model.LocaleSelection {
	return s.locale(v).Get(ctx)
}

func (s *Service) SetLocale(ctx context.Context, v Visitor, sel model.LocaleSelection) (model.LocaleSelection, error) {
	return s.locale(v).Set(ctx, sel)
}

func (s *Service) StartCheckout(ctx context.Context, v Visitor, packageID string) (checkout.Session, error) {
	return s.checkout.Start(ctx, s.scope(v), packageID)
}

func (s *Service) GetCheckout(_ context.Context, v Visitor, sessionID string) (checkout.Session, error) {
	return s.checkout.Get(v.owner(), sessionID)
}

func (s *Service) VerifyIdentity(ctx context.Context, v Visitor, sessionID, playerID, username string) (checkout.Session, error) {
	return s.checkout.VerifyIdentity(ctx, v.owner(), sessionID, playerID, username)
}

func (s *Service) Proceed(ctx context.Context, v Visitor, sessionID string) (checkout.Session, error) {
	return s.checkout.Proceed(ctx, v.owner(), sessionID)
}

func (s *Service) SelectMethod(ctx context.Context, v Visitor, sessionID string, m model.PaymentMethod) (checkout.Session, error) {
	return s.checkout.SelectMethod(ctx, v.owner(), sessionID, m)
}

func (s *Service) AttachProof(ctx context.Context, v Visitor, sessionID string, a proof.Artifact) (checkout.Session, error) {
	return s.checkout.AttachProof(ctx, v.owner(), sessionID, a)
}

func (s *Service) Submit(ctx context.Context, v Visitor, sessionID string) (checkout.Session, error) {
	return s.checkout.Submit(ctx, v.owner(), sessionID)
}

func (s *Service) Cancel(ctx context.Context, v Visitor, sessionID string) (checkout.Session, error) {
	return s.checkout.Cancel(ctx, v.owner(), sessionID)
}

// Orders возвращает историю заказов посетителя, новые первыми.
func (s *Service) Orders(ctx context.Context, v Visitor) []model.PurchaseOrder {
	return s.history(v).List(ctx)
}

// LastPurchase возвращает только что завершённый во вкладке заказ. Снимок выдаётся один раз.
func (s *Service) LastPurchase(ctx context.Context, v Visitor) (model.PurchaseOrder, bool, error) {
	return s.lastPurchase(v).Consume(ctx)
}

// Receipt строит чек заказа. Пустой currencyCode означает валюту из выбранной локали.
func (s *Service) Receipt(ctx context.Context, v Visitor, orderID, currencyCode string) (receipt.Receipt, error) {
	order, err := s.history(v).Find(ctx, orderID)
	if err != nil {
		return receipt.Receipt{}, err
	}

	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if currencyCode == "" {
		currencyCode = s.GetLocale(ctx, v).CurrencyCode
	}

	return receipt.Build(order, currencyCode, s.formatter), nil
}

// ReceiptImage выгружает чек заказа в файл.
func (s *Service) ReceiptImage(ctx context.Context, v Visitor, orderID, currencyCode string) (proof.Artifact, error) {
	r, err := s.Receipt(ctx, v, orderID, currencyCode)
	if err != nil {
		return proof.Artifact{}, err
	}

	art, err := s.exporter.Export(r)
	if err != nil {
		return proof.Artifact{}, fmt.Errorf("export receipt %s: %w", orderID, err)
	}
	return art, nil
}

// Subscribe доставляет fn смены локали и истории заказов посетителя,
// сделанные в любом представлении.
func (s *Service) Subscribe(v Visitor, fn func(Event)) (unsubscribe func()) {
	unsubLocale := s.locale(v).Subscribe(func(sel model.LocaleSelection) {
		fn(Event{Kind: EventLocale, Payload: sel})
	})
	unsubOrders := s.history(v).Subscribe(func(n history.Notice) {
		fn(Event{Kind: EventOrders, Payload: n})
	})

	return func() {
		unsubLocale()
		unsubOrders()
	}
}
