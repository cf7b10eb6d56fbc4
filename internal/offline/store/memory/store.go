// Package memory provides the in-memory ItemStore used in unit tests and as
// the degraded-mode fallback when no local Redis is available.
package memory

import (
	"context"
	"sort"
	"sync"

	"medkiosk/internal/offline/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
)

type InMemoryItemStore struct {
	mu    sync.RWMutex
	items map[id.ItemID]*models.Item
}

func New() *InMemoryItemStore {
	return &InMemoryItemStore{items: make(map[id.ItemID]*models.Item)}
}

func (s *InMemoryItemStore) Put(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *InMemoryItemStore) Items(_ context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		copied := *item
		items = append(items, &copied)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority.Rank() != items[j].Priority.Rank() {
			return items[i].Priority.Rank() < items[j].Priority.Rank()
		}
		return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
	})
	return items, nil
}

func (s *InMemoryItemStore) Update(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; !exists {
		return sentinel.ErrNotFound
	}
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *InMemoryItemStore) Remove(_ context.Context, itemID id.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, itemID)
	return nil
}

func (s *InMemoryItemStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// EvictLowest drops the lowest-priority item, preferring the most recently
// enqueued within that priority so the oldest deferred work survives.
func (s *InMemoryItemStore) EvictLowest(_ context.Context) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victim *models.Item
	for _, item := range s.items {
		if victim == nil {
			victim = item
			continue
		}
		if item.Priority.Rank() > victim.Priority.Rank() ||
			(item.Priority.Rank() == victim.Priority.Rank() && item.EnqueuedAt.After(victim.EnqueuedAt)) {
			victim = item
		}
	}
	if victim == nil {
		return nil, sentinel.ErrNotFound
	}
	delete(s.items, victim.ID)
	return victim, nil
}
