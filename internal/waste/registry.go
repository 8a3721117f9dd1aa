package waste

import (
	"context"
	"sync"
	"time"

	"recircuit.org/internal/ids"
)

// NewItemInput carries the fields accepted at submission time.
type NewItemInput struct {
	OwnerID     string
	Description string
	Operation   Operation
	Location    string
}

// Mutator applies an in-place change to an item record. It runs under the
// registry's write lock and must not block.
type Mutator func(*Item)

// Registry is canonical storage for submitted items. CompareAndUpdate is the
// sole mutation primitive; everything else is a snapshot read or a terminal
// delete.
type Registry interface {
	Create(ctx context.Context, in NewItemInput) (Item, error)
	Get(ctx context.Context, id string) (Item, error)
	List(ctx context.Context, statusFilter *Status) ([]Item, error)
	Delete(ctx context.Context, id string) error
	CompareAndUpdate(ctx context.Context, id string, expected Status, mutate Mutator) (Item, error)
}

// InMemory implements Registry with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewInMemory creates an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{items: make(map[string]*Item)}
}

var _ Registry = (*InMemory)(nil)

func (s *InMemory) Create(ctx context.Context, in NewItemInput) (Item, error) {
	if in.OwnerID == "" || in.Description == "" || in.Location == "" {
		return Item{}, ErrInvalidInput
	}
	if _, err := ParseOperation(string(in.Operation)); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := &Item{
		ID:          ids.New(),
		OwnerID:     in.OwnerID,
		Description: in.Description,
		Operation:   in.Operation,
		Status:      StatusPending,
		Location:    in.Location,
		CreatedAt:   time.Now().UTC(),
	}
	s.items[item.ID] = item
	return *item, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return *item, nil
}

func (s *InMemory) List(ctx context.Context, statusFilter *Status) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if statusFilter != nil && item.Status != *statusFilter {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// CompareAndUpdate applies mutate only when the record's current status equals
// expected. The status check and the mutation commit under one lock, so two
// racing callers with the same precondition cannot both win.
func (s *InMemory) CompareAndUpdate(ctx context.Context, id string, expected Status, mutate Mutator) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	if item.Status != expected {
		return Item{}, ErrConflict
	}
	mutate(item)
	return *item, nil
}
