// Package model содержит доменные сущности витрины игровой валюты.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package описывает неизменяемую позицию каталога.
type Package struct {
	ID            string          `json:"id"`
	Game          string          `json:"game"`
	BaseAmount    int64           `json:"baseAmount"`
	BonusAmount   int64           `json:"bonusAmount"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	DiscountLabel string          `json:"discountLabel"`
	BonusLabel    string          `json:"bonusLabel,omitempty"`
}

// TotalAmount возвращает количество единиц валюты с учётом бонуса.
func (p Package) TotalAmount() int64 {
	return p.BaseAmount + p.BonusAmount
}

// Identity содержит подтверждённые идентификатор игрока и его имя.
type Identity struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

// LocaleSelection описывает выбранные страну и валюту отображения цен.
type LocaleSelection struct {
	CountryCode  string `json:"countryCode"`
	CurrencyCode string `json:"currencyCode"`
}

// PaymentMethod описывает способ оплаты.
type PaymentMethod string

const (
	PaymentMobileTransfer PaymentMethod = "mobile-transfer"
	PaymentCard           PaymentMethod = "card"
	PaymentExternalWallet PaymentMethod = "external-wallet"
)

// PaymentMethods перечисляет все известные способы оплаты в порядке отображения.
var PaymentMethods = []PaymentMethod{PaymentMobileTransfer, PaymentCard, PaymentExternalWallet}

// Valid сообщает, является ли способ оплаты известным.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMobileTransfer, PaymentCard, PaymentExternalWallet:
		return true
	}
	return false
}

// Label возвращает название способа оплаты для чеков.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMobileTransfer:
		return "Mobile Payment"
	case PaymentCard:
		return "Credit Card"
	case PaymentExternalWallet:
		return "PayPal"
	}
	return string(m)
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const OrderStatusCompleted OrderStatus = "Completed"

// PurchaseOrder описывает завершённую покупку. После создания не изменяется.
type PurchaseOrder struct {
	ID            string          `json:"id"`
	PackageID     string          `json:"packageId"`
	BaseAmount    int64           `json:"baseAmount"`
	BonusAmount   int64           `json:"bonusAmount"`
	Price         decimal.Decimal `json:"price"`
	PlayerID      string          `json:"playerId"`
	Username      string          `json:"username"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
	Status        OrderStatus     `json:"status"`
}

// Phase описывает состояние сессии покупки.
type Phase string

const (
	PhasePackageSelected  Phase = "PackageSelected"
	PhaseAwaitingIdentity Phase = "AwaitingIdentity"
	PhaseAwaitingPayment  Phase = "AwaitingPayment"
	PhaseProcessing       Phase = "Processing"
	PhaseFinalized        Phase = "Finalized"
	PhaseAborted          Phase = "Aborted"
)

// Terminal сообщает, является ли состояние конечным.
func (p Phase) Terminal() bool {
	return p == PhaseFinalized || p == PhaseAborted
}
