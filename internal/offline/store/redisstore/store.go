// Package redisstore provides the Redis-backed ItemStore. A device-local
// Redis instance gives the offline queue durability across kiosk restarts.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"medkiosk/internal/offline/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
)

const (
	// itemsKey holds item bodies as JSON, keyed by item ID.
	itemsKey = "offline:items"
	// orderKey ranks item IDs by priority then enqueue time.
	orderKey = "offline:order"
)

type RedisItemStore struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisItemStore {
	return &RedisItemStore{client: client}
}

// score encodes priority rank and enqueue time in one sortable value:
// ascending order is sync order, the maximum is the eviction victim.
func score(item *models.Item) float64 {
	return float64(item.Priority.Rank())*1e12 + float64(item.EnqueuedAt.Unix())
}

func (s *RedisItemStore) Put(ctx context.Context, item *models.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode offline item: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, itemsKey, item.ID.String(), body)
	pipe.ZAdd(ctx, orderKey, redis.Z{Score: score(item), Member: item.ID.String()})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisItemStore) Items(ctx context.Context) ([]*models.Item, error) {
	ids, err := s.client.ZRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	bodies, err := s.client.HMGet(ctx, itemsKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*models.Item, 0, len(bodies))
	for _, body := range bodies {
		raw, ok := body.(string)
		if !ok {
			// Order entry without a body; skip rather than fail the cycle.
			continue
		}
		var item models.Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("decode offline item: %w", err)
		}
		items = append(items, &item)
	}
	return items, nil
}

func (s *RedisItemStore) Update(ctx context.Context, item *models.Item) error {
	exists, err := s.client.HExists(ctx, itemsKey, item.ID.String()).Result()
	if err != nil {
		return err
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode offline item: %w", err)
	}
	return s.client.HSet(ctx, itemsKey, item.ID.String(), body).Err()
}

func (s *RedisItemStore) Remove(ctx context.Context, itemID id.ItemID) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, itemsKey, itemID.String())
	pipe.ZRem(ctx, orderKey, itemID.String())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisItemStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, orderKey).Result()
	return int(n), err
}

func (s *RedisItemStore) EvictLowest(ctx context.Context) (*models.Item, error) {
	ids, err := s.client.ZRevRange(ctx, orderKey, 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, sentinel.ErrNotFound
	}
	victimID := ids[0]

	body, err := s.client.HGet(ctx, itemsKey, victimID).Result()
	if errors.Is(err, redis.Nil) {
		s.client.ZRem(ctx, orderKey, victimID)
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var item models.Item
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return nil, fmt.Errorf("decode offline item: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, itemsKey, victimID)
	pipe.ZRem(ctx, orderKey, victimID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return &item, nil
}
