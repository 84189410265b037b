package conversation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists conversations. Updates are last-write-wins per document.
type Store interface {
	Create(ctx context.Context, c *Conversation) error
	FindByID(ctx context.Context, id string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	// DeleteTemporary removes every temporary conversation of userID except keepID.
	DeleteTemporary(ctx context.Context, userID, keepID string) (int64, error)
	// CountHistory counts completed, non-temporary conversations of userID.
	CountHistory(ctx context.Context, userID string) (int64, error)
	// ListHistory pages over the same set as CountHistory, newest first.
	ListHistory(ctx context.Context, userID string, skip, limit int) ([]Summary, error)
}

// MemoryStore implements Store in process memory. Used when no database is configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Conversation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Conversation)}
}

func (s *MemoryStore) Create(_ context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := Validate(c); err != nil {
		return err
	}

	s.mu.Lock()
	s.items[c.ID] = c.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, c *Conversation) error {
	if err := Validate(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; !ok {
		return ErrNotFound
	}
	s.items[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) DeleteTemporary(_ context.Context, userID, keepID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, item := range s.items {
		if id == keepID || item.UserID != userID || !item.IsTemporary {
			continue
		}
		delete(s.items, id)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) CountHistory(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.history(userID))), nil
}

func (s *MemoryStore) ListHistory(_ context.Context, userID string, skip, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.history(userID)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(matches) {
		return []Summary{}, nil
	}
	end := len(matches)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}

	out := make([]Summary, 0, end-skip)
	for _, item := range matches[skip:end] {
		out = append(out, item.Summarize())
	}
	return out, nil
}

// history must be called with s.mu held.
func (s *MemoryStore) history(userID string) []*Conversation {
	var matches []*Conversation
	for _, item := range s.items {
		if item.UserID == userID && item.IsCompleted && !item.IsTemporary {
			matches = append(matches, item)
		}
	}
	return matches
}
