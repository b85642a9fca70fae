package rates

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source возвращает свежие курсы.
type Source interface {
	GetRates(ctx context.Context) (*Snapshot, error)
}

// Sink принимает обновлённые курсы.
type Sink interface {
	SetRates(rates map[string]decimal.Decimal) int
}

// Refresher периодически обновляет курсы форматтера из внешнего источника.
// Пока источник недоступен, используются последние известные курсы.
type Refresher struct {
	source   Source
	sink     Sink
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher создаёт обновление курсов с интервалом interval (по умолчанию час).
func NewRefresher(source Source, sink Sink, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{source: source, sink: sink, interval: interval, logger: logger}
}

// Run обновляет курсы сразу и затем с заданным интервалом до отмены ctx.
func (r *Refresher) Run(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh делает не больше двух попыток: повтор только после 429 с Retry-After.
func (r *Refresher) refresh(ctx context.Context) {
	for attempt := 0; attempt < 2; attempt++ {
		snap, err := r.source.GetRates(ctx)

		var limited *RateLimitedError
		switch {
		case err == nil:
			n := r.sink.SetRates(snap.Rates)
			r.logger.Info("exchange rates refreshed", zap.Int("currencies", n))
			return
		case errors.As(err, &limited) && limited.RetryAfter > 0:
			r.logger.Debug("exchange rates rate limited", zap.Duration("retry_after", limited.RetryAfter))
			timer := time.NewTimer(limited.RetryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		case errors.Is(err, ErrNoRates):
			return
		default:
			r.logger.Warn("fetch exchange rates", zap.Error(err))
			return
		}
	}
}
