// Package history provides HistoryRecorder implementations backed by memory, SQL
// databases (via gorm) and Redis.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mhpenta/imagestudio"
)

// MemoryStore is an in-process recorder. Suitable for tests and single-process use.
type MemoryStore struct {
	items  map[string]map[string]*imagestudio.HistoryItem // userID -> id -> item
	owners map[string]string                              // id -> userID
	mu     sync.RWMutex
}

var _ imagestudio.HistoryRecorder = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]map[string]*imagestudio.HistoryItem),
		owners: make(map[string]string),
	}
}

func (s *MemoryStore) Save(ctx context.Context, item *imagestudio.HistoryItem) error {
	if err := validateItem(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.owners[item.ID]; taken {
		return fmt.Errorf("%w: %s", imagestudio.ErrHistoryExists, item.ID)
	}

	byID, ok := s.items[item.UserID]
	if !ok {
		byID = make(map[string]*imagestudio.HistoryItem)
		s.items[item.UserID] = byID
	}
	cp := *item
	byID[item.ID] = &cp
	s.owners[item.ID] = item.UserID
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID string) ([]*imagestudio.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.items[userID]
	out := make([]*imagestudio.HistoryItem, 0, len(byID))
	for _, item := range byID {
		cp := *item
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.items[userID]
	if _, ok := byID[id]; !ok {
		return imagestudio.ErrHistoryNotFound
	}
	delete(byID, id)
	delete(s.owners, id)
	return nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.items[userID] {
		delete(s.owners, id)
	}
	delete(s.items, userID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// sortNewestFirst orders by timestamp descending, ties broken by ID for stability.
func sortNewestFirst(items []*imagestudio.HistoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ID > items[j].ID
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}
