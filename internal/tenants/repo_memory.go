package tenants

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu      sync.Mutex
	tenants map[string]Tenant
	numbers map[string]string // number -> tenant id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tenants: map[string]Tenant{}, numbers: map[string]string{}}
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) ResolveByNumber(ctx context.Context, number string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.numbers[number]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, t Tenant, numbers []string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range numbers {
		if owner, ok := r.numbers[n]; ok && owner != t.ID {
			return Tenant{}, ErrNumberTaken
		}
	}
	if prev, ok := r.tenants[t.ID]; ok {
		t.CreatedAt = prev.CreatedAt
	}
	r.tenants[t.ID] = t
	for _, n := range numbers {
		r.numbers[n] = t.ID
	}
	return t, nil
}
