package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/FurmanovVitaliy/extension-auth/pkg/clients/redis"
	"github.com/FurmanovVitaliy/logger"
)

func genSessionKey(sessionID string) string {
	return "server_session:session_id:" + sessionID
}

// CreateSession stores a refresh session until it expires.
func (s *Storage) CreateSession(ctx context.Context, session models.ProviderSession) error {
	const op = "redis.Storage.CreateSession"
	log := s.log.With(
		logger.StringAttr("operation", op),
		logger.StringAttr("session_id", session.ID),
	)

	key := genSessionKey(session.ID)
	if _, err := s.client.Get(ctx, key); err == nil {
		return fmt.Errorf("%s: %w", op, storage.ErrSessionAlreadyExists)
	} else if !errors.Is(err, redis.ErrKeyNotFound) {
		log.Error("failed to check session", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		log.Error("failed to marshal session", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.client.Set(ctx, key, string(data), time.Until(session.ExpiresAt)); err != nil {
		log.Error("failed to set session", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) SessionByID(ctx context.Context, sessionID string) (models.ProviderSession, error) {
	const op = "redis.Storage.SessionByID"

	data, err := s.client.Get(ctx, genSessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return models.ProviderSession{}, storage.ErrSessionNotFound
		}
		return models.ProviderSession{}, fmt.Errorf("%s: %w", op, err)
	}

	var session models.ProviderSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		s.log.Error("failed to unmarshal session data", logger.StringAttr("operation", op), logger.ErrAttr(err))
		return models.ProviderSession{}, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// RevokeSession marks the session revoked and keeps its remaining TTL.
func (s *Storage) RevokeSession(ctx context.Context, sessionID string) error {
	const op = "redis.Storage.RevokeSession"
	log := s.log.With(
		logger.StringAttr("operation", op),
		logger.StringAttr("session_id", sessionID),
	)

	session, err := s.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session.Status = models.SessionRevoked
	session.UpdatedAt = &now

	data, err := json.Marshal(session)
	if err != nil {
		log.Error("failed to marshal updated session", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	key := genSessionKey(sessionID)
	ttl, err := s.client.TTL(ctx, key)
	if err != nil {
		log.Error("failed to get session TTL", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, key, string(data), ttl); err != nil {
		log.Error("failed to update session in Redis", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("session successfully revoked")
	return nil
}
