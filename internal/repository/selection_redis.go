package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisSelectionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSelectionRepository(client *redis.Client, ttl time.Duration) *RedisSelectionRepository {
	return &RedisSelectionRepository{
		client: client,
		ttl:    ttl,
	}
}

func selectionKey(sessionID string) string {
	return "selection:" + sessionID
}

func (r *RedisSelectionRepository) GetSelection(ctx context.Context, sessionID string) (*models.Selection, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, selectionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selection from redis: %w", err)
	}

	var sel models.Selection
	if err := json.Unmarshal([]byte(val), &sel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selection: %w", err)
	}
	return &sel, nil
}

func (r *RedisSelectionRepository) SetSelection(ctx context.Context, selection *models.Selection) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(selection)
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}
	if err := r.client.Set(ctx, selectionKey(selection.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set selection in redis: %w", err)
	}
	return nil
}

func (r *RedisSelectionRepository) ClearSelection(ctx context.Context, sessionID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, selectionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete selection from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
