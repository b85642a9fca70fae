// Package locale хранит выбранные посетителем страну и валюту отображения цен
// и оповещает об их смене все открытые представления.
package locale

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/broadcast"
	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/model"
)

// KeySelection задаёт ключ хранилища с выбранной локалью.
const KeySelection = "locale.selection"

// ErrInvalidLocale возвращается при некорректных кодах страны или валюты.
var ErrInvalidLocale = errors.New("country code must be 2 letters and currency code 3 letters")

// Default задаёт локаль по умолчанию.
var Default = model.LocaleSelection{CountryCode: "pk", CurrencyCode: "PKR"}

// Context предоставляет чтение и запись локали посетителя.
type Context struct {
	kv       kvstore.Store
	topic    *broadcast.Topic[model.LocaleSelection]
	fallback model.LocaleSelection
	logger   *zap.Logger
}

// NewContext создаёт контекст локали. Пустой fallback заменяется на Default.
func NewContext(kv kvstore.Store, fallback model.LocaleSelection, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalized, err := Normalize(fallback); err == nil {
		fallback = normalized
	} else {
		fallback = Default
	}
	return &Context{
		kv:       kv,
		topic:    broadcast.NewTopic[model.LocaleSelection](kv, KeySelection, logger),
		fallback: fallback,
		logger:   logger,
	}
}

// Get возвращает сохранённую локаль или значение по умолчанию,
// если локаль не выбрана или запись повреждена.
func (c *Context) Get(ctx context.Context) model.LocaleSelection {
	raw, ok, err := c.kv.Get(ctx, KeySelection)
	if err != nil {
		c.logger.Warn("read locale", zap.Error(err))
		return c.fallback
	}
	if !ok {
		return c.fallback
	}

	var sel model.LocaleSelection
	if err := json.Unmarshal(raw, &sel); err != nil {
		c.logger.Warn("corrupt locale record", zap.Error(err))
		return c.fallback
	}
	sel, err = Normalize(sel)
	if err != nil {
		c.logger.Warn("invalid locale record", zap.Error(err))
		return c.fallback
	}
	return sel
}

// Set сохраняет локаль целиком. Наблюдатели этого процесса уведомляются до возврата,
// наблюдатели других экземпляров узнают через канал изменений хранилища.
func (c *Context) Set(ctx context.Context, sel model.LocaleSelection) (model.LocaleSelection, error) {
	sel, err := Normalize(sel)
	if err != nil {
		return model.LocaleSelection{}, err
	}
	if err := c.topic.Publish(ctx, sel); err != nil {
		return model.LocaleSelection{}, err
	}
	return sel, nil
}

// Subscribe регистрирует наблюдателя смены локали.
func (c *Context) Subscribe(fn func(model.LocaleSelection)) (unsubscribe func()) {
	return c.topic.Subscribe(func(sel model.LocaleSelection) {
		if normalized, err := Normalize(sel); err == nil {
			fn(normalized)
		}
	})
}

// Normalize проверяет коды и приводит их к каноническому регистру.
func Normalize(sel model.LocaleSelection) (model.LocaleSelection, error) {
	country := strings.ToLower(strings.TrimSpace(sel.CountryCode))
	currency := strings.ToUpper(strings.TrimSpace(sel.CurrencyCode))
	if !isLetters(country, 2) || !isLetters(currency, 3) {
		return model.LocaleSelection{}, ErrInvalidLocale
	}
	return model.LocaleSelection{CountryCode: country, CurrencyCode: currency}, nil
}

func isLetters(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
