package messages

import "context"

// Repository is the append-only persistence contract for messages.
//
// AppendInbound is insert-if-absent on (tenant_id, external_id) when ExternalID is set:
// it returns created=false, and stores nothing, when that delivery was already recorded.
// Both append methods assign Seq and never store a CreatedAt earlier than the newest
// message already in the conversation, so Seq and CreatedAt agree on order.
type Repository interface {
	AppendInbound(ctx context.Context, m Message) (Message, bool, error)
	Append(ctx context.Context, m Message) (Message, error)
	SeenExternal(ctx context.Context, tenantID, externalID string) (bool, error)
	// ListRecent returns up to limit messages of a conversation, oldest first, ending with
	// the newest message whose Seq is below beforeSeq (0 means no bound).
	ListRecent(ctx context.Context, tenantID, conversationID string, limit int, beforeSeq int64) ([]Message, error)
}
