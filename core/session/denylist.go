package session

import (
	"context"
	"sync"
	"time"
)

// Denylist remembers revoked tokens and subjects until their TTL expires.
type Denylist interface {
	Revoke(ctx context.Context, key string, ttl time.Duration) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}

func TokenKey(tokenID string) string     { return "jti:" + tokenID }
func SubjectKey(subjectID string) string { return "sub:" + subjectID }

type MemoryDenylist struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{expires: make(map[string]time.Time)}
}

func (d *MemoryDenylist) Revoke(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expires[key] = nowFunc().Add(ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.expires[key]
	if !ok {
		return false, nil
	}
	if !nowFunc().Before(exp) {
		delete(d.expires, key)
		return false, nil
	}
	return true, nil
}
