package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"slotbook/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisBookingIDsKey = "bookings:ids"
	redisBookingPrefix = "booking:"
)

// RedisBookingStore keeps each record as a JSON value under booking:<id> and
// the insertion order in the bookings:ids list.
type RedisBookingStore struct {
	client *redis.Client
}

func NewRedisBookingStore(client *redis.Client) *RedisBookingStore {
	return &RedisBookingStore{client: client}
}

func bookingKey(id string) string {
	return redisBookingPrefix + id
}

func (s *RedisBookingStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	ids, err := s.client.LRange(ctx, redisBookingIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list booking ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = bookingKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	records := make([]models.BookingRecord, 0, len(values))
	for i, val := range values {
		raw, ok := val.(string)
		if !ok {
			// listed id without a value; keep it visible so the index can quarantine it
			records = append(records, models.BookingRecord{models.FieldID: ids[i]})
			continue
		}
		var rec models.BookingRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			records = append(records, models.BookingRecord{models.FieldID: ids[i]})
			continue
		}
		records = append(records, rec.WithID(ids[i]))
	}
	return records, nil
}

func (s *RedisBookingStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	id := uuid.New().String()
	data, err := json.Marshal(record.WithID(id))
	if err != nil {
		return "", fmt.Errorf("failed to marshal booking: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, bookingKey(id), data, 0)
		pipe.RPush(ctx, redisBookingIDsKey, id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save booking: %w", err)
	}
	return id, nil
}

func (s *RedisBookingStore) RemoveByID(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, bookingKey(id))
		pipe.LRem(ctx, redisBookingIDsKey, 0, id)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}
