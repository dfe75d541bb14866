package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryTransport records sends instead of delivering them. Set Fail to make every
// send return an error.
type MemoryTransport struct {
	mu   sync.Mutex
	sent []OutboundRequest
	fail error
}

func NewMemoryTransport() *MemoryTransport { return &MemoryTransport{} }

func (t *MemoryTransport) Name() string { return "memory" }

func (t *MemoryTransport) Send(ctx context.Context, req OutboundRequest) (SendResult, error) {
	if err := req.validate(); err != nil {
		return SendResult{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail != nil {
		return SendResult{}, t.fail
	}
	t.sent = append(t.sent, req)
	return SendResult{ExternalID: fmt.Sprintf("MM%06d", len(t.sent)), Status: "queued"}, nil
}

// Fail makes subsequent sends return err; nil restores delivery.
func (t *MemoryTransport) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		t.fail = nil
		return
	}
	t.fail = errors.Join(errors.New("transport: memory send failed"), err)
}

func (t *MemoryTransport) Sent() []OutboundRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]OutboundRequest, len(t.sent))
	copy(out, t.sent)
	return out
}
