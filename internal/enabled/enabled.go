package enabled

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Persister stores the enabled chat ids durably. Save always receives the
// complete set.
type Persister interface {
	Load(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, ids []int64) error
}

// Set is the set of chat ids under active tracking. A mutation is only
// committed in memory after the persister accepted it.
type Set struct {
	mu        sync.RWMutex
	ids       []int64
	index     map[int64]struct{}
	persister Persister
	logger    *zap.Logger
}

// Load builds a Set from the persister's current contents.
func Load(ctx context.Context, persister Persister, logger *zap.Logger) (*Set, error) {
	ids, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled chats: %w", err)
	}

	s := &Set{
		index:     make(map[int64]struct{}, len(ids)),
		persister: persister,
		logger:    logger,
	}
	for _, id := range ids {
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	logger.Info("Loaded enabled chats", zap.Int("count", len(s.ids)))
	return s, nil
}

// Enable adds the chat. It reports false when the chat was already enabled.
func (s *Set) Enable(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[chatID]; ok {
		return false, nil
	}
	next := append(append(make([]int64, 0, len(s.ids)+1), s.ids...), chatID)
	if err := s.persister.Save(ctx, next); err != nil {
		return false, fmt.Errorf("failed to enable chat %d: %w", chatID, err)
	}
	s.ids = next
	s.index[chatID] = struct{}{}
	s.logger.Info("Tracking enabled", zap.Int64("chat_id", chatID))
	return true, nil
}

// Disable removes the chat. It reports false when the chat was not enabled.
func (s *Set) Disable(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[chatID]; !ok {
		return false, nil
	}
	next := make([]int64, 0, len(s.ids))
	for _, id := range s.ids {
		if id != chatID {
			next = append(next, id)
		}
	}
	if err := s.persister.Save(ctx, next); err != nil {
		return false, fmt.Errorf("failed to disable chat %d: %w", chatID, err)
	}
	s.ids = next
	delete(s.index, chatID)
	s.logger.Info("Tracking disabled", zap.Int64("chat_id", chatID))
	return true, nil
}

func (s *Set) Contains(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[chatID]
	return ok
}

// List returns the enabled ids in the order they were enabled.
func (s *Set) List() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.ids...)
}

// MemoryPersister keeps the set only for the lifetime of the process.
type MemoryPersister struct {
	mu  sync.Mutex
	ids []int64
}

func NewMemoryPersister(initial ...int64) *MemoryPersister {
	return &MemoryPersister{ids: append([]int64(nil), initial...)}
}

func (p *MemoryPersister) Load(ctx context.Context) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.ids...), nil
}

func (p *MemoryPersister) Save(ctx context.Context, ids []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append([]int64(nil), ids...)
	return nil
}
