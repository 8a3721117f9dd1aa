package auth

import (
	"context"
	"strings"
	"sync"
)

// Directory resolves subject ids to registered accounts. Registration itself
// happens in an external system; this service only reads.
type Directory interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// MemoryDirectory is a Directory backed by a seeded in-process map, used when
// no database is configured and in tests.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]*User
}

// NewMemoryDirectory builds a directory from the given users.
func NewMemoryDirectory(users ...*User) *MemoryDirectory {
	d := &MemoryDirectory{
		byID:    make(map[string]*User, len(users)),
		byEmail: make(map[string]*User, len(users)),
	}
	for _, u := range users {
		d.byID[u.ID] = u
		d.byEmail[strings.ToLower(u.Email)] = u
	}
	return d
}

var _ Directory = (*MemoryDirectory)(nil)

func (d *MemoryDirectory) Find(ctx context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}
