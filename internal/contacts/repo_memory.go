package contacts

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository for tests and msgctl simulate.
// The mutex makes FindOrCreate atomic, mirroring the Postgres ON CONFLICT contract.
type MemoryRepo struct {
	mu      sync.Mutex
	byID    map[string]Contact
	byPhone map[string]string // tenant_id|phone -> id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Contact{}, byPhone: map[string]string{}}
}

func (r *MemoryRepo) FindOrCreate(ctx context.Context, c Contact) (Contact, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := c.TenantID + "|" + c.Phone
	if id, ok := r.byPhone[key]; ok {
		return cloneContact(r.byID[id]), false, nil
	}
	c = cloneContact(c)
	r.byID[c.ID] = c
	r.byPhone[key] = c.ID
	return cloneContact(c), true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, id string) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.TenantID != tenantID {
		return Contact{}, ErrNotFound
	}
	return cloneContact(c), nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, tenantID, id string, status Status, at time.Time) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.TenantID != tenantID {
		return Contact{}, ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = at
	r.byID[id] = c
	return cloneContact(c), nil
}

// All returns a snapshot of every stored contact.
func (r *MemoryRepo) All() []Contact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Contact, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, cloneContact(c))
	}
	return out
}

func cloneContact(c Contact) Contact {
	c.Tags = append([]string(nil), c.Tags...)
	return c
}
