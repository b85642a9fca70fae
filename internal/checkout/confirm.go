package checkout

import (
	"context"
	"time"
)

// DefaultProcessingDelay это длительность обработки оплаты по умолчанию.
const DefaultProcessingDelay = 5 * time.Second

// DelayConfirmer подтверждает оплату по истечении фиксированной задержки.
type DelayConfirmer struct {
	Delay time.Duration
}

func (c DelayConfirmer) Confirm(ctx context.Context, _ Session) error {
	if c.Delay <= 0 {
		return nil
	}

	timer := time.NewTimer(c.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ConfirmerFunc позволяет использовать функцию как Confirmer.
type ConfirmerFunc func(ctx context.Context, s Session) error

func (f ConfirmerFunc) Confirm(ctx context.Context, s Session) error {
	return f(ctx, s)
}
