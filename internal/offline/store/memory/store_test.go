package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medkiosk/internal/offline/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
)

func item(priority models.Priority, enqueuedAt time.Time) *models.Item {
	return &models.Item{
		ID:         id.NewItemID(),
		Type:       models.ItemAnalytics,
		Priority:   priority,
		MaxRetries: 3,
		EnqueuedAt: enqueuedAt,
	}
}

func TestItems_OrderedByPriorityThenAge(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	oldNormal := item(models.PriorityNormal, base)
	newNormal := item(models.PriorityNormal, base.Add(time.Minute))
	critical := item(models.PriorityCritical, base.Add(2*time.Minute))

	for _, it := range []*models.Item{newNormal, critical, oldNormal} {
		require.NoError(t, store.Put(ctx, it))
	}

	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, critical.ID, items[0].ID)
	assert.Equal(t, oldNormal.ID, items[1].ID)
	assert.Equal(t, newNormal.ID, items[2].ID)
}

func TestEvictLowest_PrefersYoungestOfLowestPriority(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	critical := item(models.PriorityCritical, base)
	oldLow := item(models.PriorityLow, base)
	newLow := item(models.PriorityLow, base.Add(time.Minute))

	for _, it := range []*models.Item{critical, oldLow, newLow} {
		require.NoError(t, store.Put(ctx, it))
	}

	victim, err := store.EvictLowest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newLow.ID, victim.ID)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEvictLowest_EmptyQueue(t *testing.T) {
	_, err := New().EvictLowest(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdate_MissingItem(t *testing.T) {
	err := New().Update(context.Background(), item(models.PriorityNormal, time.Now()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
