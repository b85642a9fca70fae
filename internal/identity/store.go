// Package identity хранит подтверждённую пару идентификатор игрока и имя для браузерной сессии посетителя.
package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/validation"
)

const (
	KeyPlayerID = "identity.playerId"
	KeyUsername = "identity.username"
)

// Store предоставляет доступ к идентичности посетителя.
type Store struct {
	kv     kvstore.Store
	logger *zap.Logger
}

// NewStore создаёт хранилище идентичности поверх пространства ключей посетителя.
func NewStore(kv kvstore.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, logger: logger}
}

// Get возвращает идентичность, только если сохранены и идентификатор, и имя.
// Идентификатор без имени считается устаревшим и удаляется при чтении.
func (s *Store) Get(ctx context.Context) (model.Identity, bool) {
	playerID, okID, err := s.kv.Get(ctx, KeyPlayerID)
	if err != nil {
		s.logger.Warn("read player id", zap.Error(err))
		return model.Identity{}, false
	}
	username, okName, err := s.kv.Get(ctx, KeyUsername)
	if err != nil {
		s.logger.Warn("read username", zap.Error(err))
		return model.Identity{}, false
	}

	if !okID || len(playerID) == 0 {
		return model.Identity{}, false
	}
	if !okName || len(username) == 0 {
		if err := s.kv.Remove(ctx, KeyPlayerID); err != nil {
			s.logger.Warn("clear stale player id", zap.Error(err))
		}
		return model.Identity{}, false
	}

	return model.Identity{PlayerID: string(playerID), Username: string(username)}, true
}

// Set проверяет и сохраняет идентичность.
func (s *Store) Set(ctx context.Context, playerID, username string) (model.Identity, error) {
	playerID, err := validation.PlayerID(playerID)
	if err != nil {
		return model.Identity{}, err
	}
	username, err = validation.Username(username)
	if err != nil {
		return model.Identity{}, err
	}

	// Имя пишется первым: читатель не должен увидеть новый идентификатор без имени.
	if err := s.kv.Set(ctx, KeyUsername, []byte(username), 0); err != nil {
		return model.Identity{}, fmt.Errorf("save username: %w", err)
	}
	if err := s.kv.Set(ctx, KeyPlayerID, []byte(playerID), 0); err != nil {
		return model.Identity{}, fmt.Errorf("save player id: %w", err)
	}

	return model.Identity{PlayerID: playerID, Username: username}, nil
}

// Clear удаляет идентичность. Повторный вызов не является ошибкой.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, KeyPlayerID); err != nil {
		return fmt.Errorf("clear player id: %w", err)
	}
	if err := s.kv.Remove(ctx, KeyUsername); err != nil {
		return fmt.Errorf("clear username: %w", err)
	}
	return nil
}
