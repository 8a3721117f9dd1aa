package auth

import (
	"context"
	"sync"
	"time"
)

// Denylist is the append-only revocation registry. Once Revoke returns, every
// subsequent IsRevoked call for that token observes the revocation, including
// from concurrent callers. Entries are never removed within a credential's
// validity window.
type Denylist interface {
	Revoke(ctx context.Context, token string) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryDenylist implements Denylist with an in-process map. The single mutex
// makes the insert and every later lookup linearizable per token.
type MemoryDenylist struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewMemoryDenylist creates an empty denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time)}
}

var _ Denylist = (*MemoryDenylist)(nil)

// Revoke records the token. Revoking twice has the same effect as once; the
// first revocation timestamp is kept.
func (d *MemoryDenylist) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredentials
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.revoked[token]; !ok {
		d.revoked[token] = time.Now().UTC()
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.revoked[token]
	return ok, nil
}
