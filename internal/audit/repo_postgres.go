package audit

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo writes to audit_events, which only ever sees INSERTs.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
	id, tenant_id, type, actor_user_id, actor_role, ip_address,
	contact_id, conversation_id, message_id, message, metadata, created_at
) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
	NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, NULLIF($11, '')::jsonb, $12)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.ContactID,
		e.ConversationID,
		e.MessageID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, f Filter) ([]Event, error) {
	const q = `
SELECT id, tenant_id, type, COALESCE(actor_user_id, ''), COALESCE(actor_role, ''), COALESCE(ip_address, ''),
	COALESCE(contact_id, ''), COALESCE(conversation_id, ''), COALESCE(message_id, ''),
	message, COALESCE(metadata::text, ''), created_at
FROM audit_events
WHERE tenant_id = $1
	AND ($2 = '' OR type = $2)
	AND ($3 = '' OR conversation_id = $3)
	AND ($4 = '' OR contact_id = $4)
	AND created_at >= $5
ORDER BY created_at DESC, id DESC
LIMIT $6
`
	since := f.Since
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}
	rows, err := r.db.QueryContext(ctx, q, tenantID, string(f.Type), f.ConversationID, f.ContactID, since, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.Type,
			&e.ActorUserID,
			&e.ActorRole,
			&e.IPAddress,
			&e.ContactID,
			&e.ConversationID,
			&e.MessageID,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
