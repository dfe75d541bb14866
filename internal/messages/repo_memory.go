package messages

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory append-only repository for tests and msgctl simulate.
type MemoryRepo struct {
	mu       sync.Mutex
	seq      int64
	rows     []Message
	external map[string]struct{} // tenant_id|external_id
	latest   map[string]time.Time // conversation_id -> newest created_at
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{external: map[string]struct{}{}, latest: map[string]time.Time{}}
}

func (r *MemoryRepo) AppendInbound(ctx context.Context, m Message) (Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ExternalID != "" {
		key := m.TenantID + "|" + m.ExternalID
		if _, dup := r.external[key]; dup {
			return Message{}, false, nil
		}
		r.external[key] = struct{}{}
	}
	return r.appendLocked(m), true, nil
}

func (r *MemoryRepo) Append(ctx context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(m), nil
}

func (r *MemoryRepo) appendLocked(m Message) Message {
	if last := r.latest[m.ConversationID]; m.CreatedAt.Before(last) {
		m.CreatedAt = last
	}
	r.latest[m.ConversationID] = m.CreatedAt
	r.seq++
	m.Seq = r.seq
	r.rows = append(r.rows, m)
	return m
}

func (r *MemoryRepo) SeenExternal(ctx context.Context, tenantID, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.external[tenantID+"|"+externalID]
	return ok, nil
}

func (r *MemoryRepo) ListRecent(ctx context.Context, tenantID, conversationID string, limit int, beforeSeq int64) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var picked []Message
	for i := len(r.rows) - 1; i >= 0 && len(picked) < limit; i-- {
		m := r.rows[i]
		if m.TenantID != tenantID || m.ConversationID != conversationID {
			continue
		}
		if beforeSeq > 0 && m.Seq >= beforeSeq {
			continue
		}
		picked = append(picked, m)
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked, nil
}

// All returns every stored message in insertion order.
func (r *MemoryRepo) All() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.rows))
	copy(out, r.rows)
	return out
}

// ForConversation returns a conversation's messages in insertion order.
func (r *MemoryRepo) ForConversation(conversationID string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.rows {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}
