//go:build integration

package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medkiosk/internal/offline/models"
	"medkiosk/internal/offline/store/redisstore"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
	"medkiosk/pkg/testutil/containers"
)

type RedisItemStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *redisstore.RedisItemStore
}

func TestRedisItemStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisItemStoreSuite))
}

func (s *RedisItemStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = redisstore.New(s.redis.Client)
}

func (s *RedisItemStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisItemStoreSuite) item(priority models.Priority, enqueuedAt time.Time) *models.Item {
	return &models.Item{
		ID:         id.NewItemID(),
		Type:       models.ItemCheckIn,
		Priority:   priority,
		Payload:    []byte(`{"k":"v"}`),
		MaxRetries: 3,
		EnqueuedAt: enqueuedAt,
	}
}

func (s *RedisItemStoreSuite) TestPutAndItems_Ordering() {
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	oldNormal := s.item(models.PriorityNormal, base)
	newNormal := s.item(models.PriorityNormal, base.Add(time.Minute))
	critical := s.item(models.PriorityCritical, base.Add(2*time.Minute))

	for _, it := range []*models.Item{newNormal, critical, oldNormal} {
		s.Require().NoError(s.store.Put(ctx, it))
	}

	items, err := s.store.Items(ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal(critical.ID, items[0].ID)
	s.Equal(oldNormal.ID, items[1].ID)
	s.Equal(newNormal.ID, items[2].ID)
}

func (s *RedisItemStoreSuite) TestUpdatePersistsRetries() {
	ctx := context.Background()
	item := s.item(models.PriorityNormal, time.Now().UTC())
	s.Require().NoError(s.store.Put(ctx, item))

	item.Retries = 2
	s.Require().NoError(s.store.Update(ctx, item))

	items, err := s.store.Items(ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(2, items[0].Retries)
}

func (s *RedisItemStoreSuite) TestUpdate_MissingItem() {
	err := s.store.Update(context.Background(), s.item(models.PriorityNormal, time.Now()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisItemStoreSuite) TestRemoveAndLen() {
	ctx := context.Background()
	item := s.item(models.PriorityHigh, time.Now().UTC())
	s.Require().NoError(s.store.Put(ctx, item))

	n, err := s.store.Len(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Require().NoError(s.store.Remove(ctx, item.ID))
	s.Require().NoError(s.store.Remove(ctx, item.ID))

	n, err = s.store.Len(ctx)
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *RedisItemStoreSuite) TestEvictLowest() {
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	critical := s.item(models.PriorityCritical, base)
	oldLow := s.item(models.PriorityLow, base)
	newLow := s.item(models.PriorityLow, base.Add(time.Minute))

	for _, it := range []*models.Item{critical, oldLow, newLow} {
		s.Require().NoError(s.store.Put(ctx, it))
	}

	victim, err := s.store.EvictLowest(ctx)
	s.Require().NoError(err)
	s.Equal(newLow.ID, victim.ID)

	n, err := s.store.Len(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *RedisItemStoreSuite) TestEvictLowest_Empty() {
	_, err := s.store.EvictLowest(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
