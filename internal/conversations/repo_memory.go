package conversations

import (
	"context"
	"sort"
	"sync"
	"time"

	"messaging-platform/internal/taxonomy"
)

// MemoryRepo is an in-memory repository for tests and msgctl simulate.
type MemoryRepo struct {
	mu     sync.Mutex
	byID   map[string]Conversation
	active map[string]string // contact_id|channel -> id of the active conversation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Conversation{}, active: map[string]string{}}
}

func activeKey(contactID string, ch Channel) string { return contactID + "|" + string(ch) }

func (r *MemoryRepo) FindOrCreateActive(ctx context.Context, c Conversation) (Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := activeKey(c.ContactID, c.Channel)
	if id, ok := r.active[key]; ok {
		return r.byID[id], false, nil
	}
	r.byID[c.ID] = c
	r.active[key] = c.ID
	return c, true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, id string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.TenantID != tenantID {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Annotate(ctx context.Context, tenantID, id string, intent taxonomy.Intent, sentiment taxonomy.Sentiment, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Intent = intent
	c.Sentiment = sentiment
	c.UpdatedAt = at
	r.byID[id] = c
	return nil
}

func (r *MemoryRepo) Transition(ctx context.Context, tenantID, id string, from []Status, to Status, at time.Time) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.TenantID != tenantID {
		return Conversation{}, ErrNotFound
	}
	matched := false
	for _, s := range from {
		if c.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return Conversation{}, ErrConflict
	}
	c.Status = to
	c.UpdatedAt = at
	r.byID[id] = c
	if !to.Active() {
		key := activeKey(c.ContactID, c.Channel)
		if r.active[key] == id {
			delete(r.active, key)
		}
	}
	return c, nil
}

func (r *MemoryRepo) Touch(ctx context.Context, tenantID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
		r.byID[id] = c
	}
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, from, to time.Time) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conversation
	for _, c := range r.byID {
		if c.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && c.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ForContact returns every conversation of a contact, oldest first.
func (r *MemoryRepo) ForContact(contactID string) []Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conversation
	for _, c := range r.byID {
		if c.ContactID == contactID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
