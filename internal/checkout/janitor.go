package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/model"
)

// Evict удаляет сессии, не менявшиеся дольше TTL, и возвращает их количество.
// Сессии в обработке не удаляются.
func (s *Service) Evict() int {
	deadline := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.state.Phase == model.PhaseProcessing {
			continue
		}
		if sess.state.UpdatedAt.After(deadline) {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

// RunJanitor периодически удаляет устаревшие сессии до отмены ctx.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.logger.Info("checkout sessions evicted", zap.Int("count", n))
			}
		}
	}
}
