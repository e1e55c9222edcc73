// internal/storage/redis/redis.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/FurmanovVitaliy/extension-auth/pkg/clients/redis"
	"github.com/FurmanovVitaliy/logger"
)

// Storage keeps each persisted-session entry under its own redis key:
// credentials:<namespace>:<key>.
type Storage struct {
	client    redis.RedisClient
	log       *slog.Logger
	namespace string
}

func genRedisKey(namespace, key string) string {
	return strings.Join([]string{"credentials", namespace, key}, ":")
}

func NewStorage(logger *slog.Logger, client redis.RedisClient, namespace string) *Storage {
	return &Storage{client: client, log: logger, namespace: namespace}
}

func (s *Storage) Save(ctx context.Context, c models.Credentials) error {
	const op = "redis.Storage.Save"
	log := s.log.With(
		logger.StringAttr("operation", op),
		logger.StringAttr("user_id", c.UserID),
	)

	values, err := storage.Encode(c)
	if err != nil {
		log.Error("failed to encode credentials", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, key := range storage.Keys {
		if err := s.client.Set(ctx, genRedisKey(s.namespace, key), values[key], 0); err != nil {
			log.Error("failed to set credential entry", logger.StringAttr("key", key), logger.ErrAttr(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Debug("credentials saved")
	return nil
}

func (s *Storage) Load(ctx context.Context) (models.Credentials, error) {
	const op = "redis.Storage.Load"
	log := s.log.With(
		logger.StringAttr("operation", op),
	)

	values := make(map[string]string, len(storage.Keys))
	for _, key := range storage.Keys {
		value, err := s.client.Get(ctx, genRedisKey(s.namespace, key))
		if err != nil {
			if errors.Is(err, redis.ErrKeyNotFound) {
				continue
			}
			log.Error("failed to get credential entry", logger.StringAttr("key", key), logger.ErrAttr(err))
			return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
		}
		values[key] = value
	}

	c, err := storage.Decode(values)
	if err != nil {
		if !errors.Is(err, storage.ErrCredentialsNotFound) {
			log.Error("stored credentials are corrupt", logger.ErrAttr(err))
		}
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	const op = "redis.Storage.Clear"

	keys := make([]string, 0, len(storage.Keys))
	for _, key := range storage.Keys {
		keys = append(keys, genRedisKey(s.namespace, key))
	}

	if err := s.client.Del(ctx, keys...); err != nil {
		s.log.Error("failed to delete credentials", logger.StringAttr("operation", op), logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
