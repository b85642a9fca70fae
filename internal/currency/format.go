// Package currency пересчитывает цены из долларов США в валюту отображения и форматирует их.
package currency

import (
	"strings"
	"sync"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Base это валюта, в которой хранятся цены каталога.
const Base = "USD"

// Курсы фиксированы и заданы относительно доллара США.
var defaultRates = map[string]string{
	"USD": "1.00",
	"EUR": "0.92",
	"CAD": "1.36",
	"GBP": "0.81",
	"AUD": "1.52",
	"BRL": "5.48",
	"CLP": "922.77",
	"COP": "4119.73",
	"MXN": "17.02",
	"PEN": "3.72",
	"UAH": "39.56",
	"TRY": "32.96",
	"AMD": "388.95",
	"BDT": "109.91",
	"BTN": "83.48",
	"KHR": "4090.90",
	"HKD": "7.81",
	"IDR": "15681.82",
	"KZT": "448.98",
	"KGS": "89.11",
	"LAK": "20613.60",
	"MYR": "4.65",
	"MMK": "2097.35",
	"MOP": "8.04",
	"MNT": "3453.17",
	"MVR": "15.45",
	"NZD": "1.65",
	"PKR": "278.55",
	"PHP": "56.63",
	"SGD": "1.35",
	"KRW": "1360.54",
	"LKR": "314.26",
	"TWD": "32.16",
	"THB": "36.28",
	"VND": "25235.20",
}

// Formatter пересчитывает и форматирует суммы. Безопасен для конкурентного использования.
type Formatter struct {
	tag language.Tag

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewFormatter создаёт форматтер для языка tag с встроенной таблицей курсов.
func NewFormatter(tag language.Tag) *Formatter {
	rates := make(map[string]decimal.Decimal, len(defaultRates))
	for code, rate := range defaultRates {
		rates[code] = decimal.RequireFromString(rate)
	}
	return &Formatter{tag: tag, rates: rates}
}

// Rate возвращает курс валюты code. Для неизвестной валюты курс равен 1.
func (f *Formatter) Rate(code string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if r, ok := f.rates[strings.ToUpper(code)]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// SetRates заменяет курсы перечисленных валют. Неположительные курсы игнорируются,
// курс базовой валюты всегда равен 1.
func (f *Formatter) SetRates(rates map[string]decimal.Decimal) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	updated := 0
	for code, rate := range rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == Base || !rate.IsPositive() {
			continue
		}
		f.rates[code] = rate
		updated++
	}
	return updated
}

// Convert пересчитывает сумму в долларах в валюту code.
func (f *Formatter) Convert(amountUSD decimal.Decimal, code string) decimal.Decimal {
	return amountUSD.Mul(f.Rate(code))
}

// Format пересчитывает сумму в долларах в валюту code и форматирует её с двумя знаками после запятой.
func (f *Formatter) Format(amountUSD decimal.Decimal, code string) string {
	return f.FormatAmount(f.Convert(amountUSD, code), code)
}

// FormatAmount форматирует сумму, уже выраженную в валюте code.
func (f *Formatter) FormatAmount(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	rounded := amount.Round(2)

	unit, err := currency.ParseISO(code)
	if err != nil {
		return rounded.StringFixed(2) + " " + code
	}

	p := message.NewPrinter(f.tag)
	symbol := p.Sprint(currency.Symbol(unit))
	number := p.Sprintf("%.2f", rounded.InexactFloat64())

	if isAlpha(symbol) {
		return symbol + " " + number
	}
	return symbol + number
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
