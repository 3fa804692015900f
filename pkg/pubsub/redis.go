package pubsub

import (
	"context"
	"fmt"

	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type redisPublisher struct {
	client *redis.Client
	logger *logger.CanonicalLogger
}

func NewRedisPublisher(ctx context.Context, cfg RedisConfig, log *logger.CanonicalLogger) (Publisher, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Try a ping to validate connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Info("redis client initialized", logger.String("addr", addr))

	return &redisPublisher{
		client: client,
		logger: log,
	}, nil
}

// Publish publishes a message to a Redis channel
func (r *redisPublisher) Publish(ctx context.Context, channel string, message string) error {
	if err := r.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish message to redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *redisPublisher) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.WithError(err).Error("failed to close redis client")
		return err
	}
	return nil
}
