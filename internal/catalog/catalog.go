// Package catalog содержит статический каталог пакетов игровой валюты.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/uc-storefront/internal/model"
)

// ErrPackageNotFound возвращается, если пакет с указанным идентификатором отсутствует в каталоге.
var ErrPackageNotFound = errors.New("package not found")

const (
	GamePUBG        = "pubg-mobile"
	GameHonorOfKing = "honor-of-kings"
)

var packages = []model.Package{
	uc("60uc", 60, 0, "150", "150", "", ""),
	uc("10000uc", 10000, 700, "3000", "15000", "-78.8%", "7%"),
	uc("20000uc", 20000, 1400, "6000", "25000", "-75.9%", "7%"),
	uc("30000uc", 30000, 2400, "10000", "38000", "-73.5%", "8%"),
	uc("50000uc", 50000, 4000, "18750", "63000", "-70.2%", "8%"),
	uc("100000uc", 100000, 8000, "40250", "126250", "-68.1%", "8%"),
	uc("200000uc", 200000, 16000, "83250", "252500", "-67.0%", "8%"),
	uc("300000uc", 300000, 24000, "133250", "399750", "-66.7%", "8%"),
	uc("500000uc", 500000, 40000, "213750", "637500", "-66.4%", "8%"),
	uc("750000uc", 750000, 60000, "322000", "954000", "-66.2%", "8%"),
	uc("1000000uc", 1000000, 80000, "430000", "1265000", "-66.0%", "8%"),
	uc("2000000uc", 2000000, 160000, "860000", "2516000", "-65.8%", "8%"),

	tokens("8tokens", 8, 8, "0.1", "0.11", "100%"),
	tokens("16tokens", 16, 16, "0.2", "0.22", "100%"),
	tokens("23tokens", 23, 23, "0.29", "0.32", "100%"),
	tokens("80tokens", 80, 80, "0.99", "1.10", "100%"),
	tokens("240tokens", 240, 48, "2.99", "3.33", "20%"),
	tokens("400tokens", 400, 80, "4.99", "5.55", "20%"),
	tokens("560tokens", 560, 112, "6.99", "7.77", "20%"),
	tokens("800tokens", 800, 160, "9.99", "11.11", "20%"),
	tokens("1200tokens", 1200, 240, "14.99", "16.66", "20%"),
	tokens("2400tokens", 2400, 480, "29.99", "33.33", "20%"),
	tokens("4000tokens", 4000, 800, "49.99", "55.55", "20%"),
	tokens("8000tokens", 8000, 1600, "99.99", "111.11", "20%"),
}

var index = buildIndex(packages)

func buildIndex(list []model.Package) map[string]model.Package {
	m := make(map[string]model.Package, len(list))
	for _, p := range list {
		m[p.ID] = p
	}
	return m
}

// FindPackage возвращает пакет по идентификатору.
func FindPackage(id string) (model.Package, error) {
	p, ok := index[id]
	if !ok {
		return model.Package{}, ErrPackageNotFound
	}
	return p, nil
}

// All возвращает копию каталога в порядке отображения.
func All() []model.Package {
	res := make([]model.Package, len(packages))
	copy(res, packages)
	return res
}

func uc(id string, base, bonus int64, price, original, discount, bonusLabel string) model.Package {
	return model.Package{
		ID:            id,
		Game:          GamePUBG,
		BaseAmount:    base,
		BonusAmount:   bonus,
		Price:         decimal.RequireFromString(price),
		OriginalPrice: decimal.RequireFromString(original),
		DiscountLabel: discount,
		BonusLabel:    bonusLabel,
	}
}

func tokens(id string, base, bonus int64, price, original, bonusLabel string) model.Package {
	p := uc(id, base, bonus, price, original, "-10%", bonusLabel)
	p.Game = GameHonorOfKing
	return p
}
