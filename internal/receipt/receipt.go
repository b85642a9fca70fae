// Package receipt строит чек по завершённому заказу.
package receipt

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/uc-storefront/internal/catalog"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/validation"
)

// Formatter пересчитывает и форматирует суммы в валюте отображения.
type Formatter interface {
	Convert(amountUSD decimal.Decimal, code string) decimal.Decimal
	FormatAmount(amount decimal.Decimal, code string) string
}

// Receipt это представление заказа для показа и выгрузки.
type Receipt struct {
	OrderID       string          `json:"orderId"`
	Number        string          `json:"receiptNumber"`
	PlayerID      string          `json:"playerId"`
	PlayerName    string          `json:"playerName"`
	PackageID     string          `json:"packageId"`
	Description   string          `json:"description"`
	Units         int64           `json:"units"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	SubtotalText  string          `json:"subtotalText"`
	TaxText       string          `json:"taxText"`
	TotalText     string          `json:"totalText"`
	IssuedAt      time.Time       `json:"issuedAt"`
}

// Build строит чек. Налог всегда нулевой, итог равен цене заказа в валюте отображения.
func Build(order model.PurchaseOrder, currencyCode string, f Formatter) Receipt {
	subtotal := f.Convert(order.Price, currencyCode).Round(2)
	tax := decimal.Zero
	total := subtotal.Add(tax)

	return Receipt{
		OrderID:       order.ID,
		Number:        Number(order.ID),
		PlayerID:      order.PlayerID,
		PlayerName:    order.Username,
		PackageID:     order.PackageID,
		Description:   describe(order),
		Units:         order.BaseAmount + order.BonusAmount,
		PaymentMethod: order.PaymentMethod.Label(),
		Status:        string(order.Status),
		Currency:      currencyCode,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		SubtotalText:  f.FormatAmount(subtotal, currencyCode),
		TaxText:       f.FormatAmount(tax, currencyCode),
		TotalText:     f.FormatAmount(total, currencyCode),
		IssuedAt:      order.CreatedAt,
	}
}

// Number возвращает номер чека для показа покупателю. Номер выводится из идентификатора заказа,
// поэтому стабилен, но не заменяет его: искать заказ нужно по идентификатору.
func Number(orderID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))

	digits := fmt.Sprintf("%08d", h.Sum32()%100_000_000)
	check, _ := validation.LuhnCheckDigit(digits)
	return "TXN-" + digits + string(check)
}

func describe(order model.PurchaseOrder) string {
	unit := "UC"
	if pkg, err := catalog.FindPackage(order.PackageID); err == nil && pkg.Game == catalog.GameHonorOfKing {
		unit = "Tokens"
	}
	if order.BonusAmount > 0 {
		return fmt.Sprintf("%d %s + %d bonus", order.BaseAmount, unit, order.BonusAmount)
	}
	return fmt.Sprintf("%d %s", order.BaseAmount, unit)
}
