package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"messaging-platform/pkg/utils"
)

// PostgresRepo stores messages in an insert-only table. seq is a bigserial and
// messages_external_idx is UNIQUE (tenant_id, external_id) WHERE external_id <> ''.
// created_at never goes backwards within a conversation.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const insertMessage = `
INSERT INTO messages (
	id, tenant_id, conversation_id, contact_id, direction, sender, type, body,
	intent, sentiment, external_id, delivery_status, delivery_error, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, NULLIF($13, ''),
	GREATEST($14::timestamptz, COALESCE((SELECT max(created_at) FROM messages WHERE conversation_id = $3), $14::timestamptz))
)
`

// lockConversation serializes appends to one conversation so that seq and
// created_at advance together.
const lockConversation = `SELECT 1 FROM conversations WHERE id = $1 AND tenant_id = $2 FOR UPDATE`

func insertArgs(m Message) []any {
	return []any{
		m.ID,
		m.TenantID,
		m.ConversationID,
		m.ContactID,
		m.Direction,
		m.Sender,
		m.Type,
		m.Body,
		m.Intent,
		m.Sentiment,
		m.ExternalID,
		m.DeliveryStatus,
		m.DeliveryError,
		m.CreatedAt,
	}
}

func (r *PostgresRepo) AppendInbound(ctx context.Context, m Message) (Message, bool, error) {
	q := insertMessage + `
ON CONFLICT (tenant_id, external_id) WHERE external_id <> '' DO NOTHING
RETURNING seq, created_at
`
	created := true
	err := r.appendLocked(ctx, m.TenantID, m.ConversationID, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, q, insertArgs(m)...).Scan(&m.Seq, &m.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			created = false
			return nil
		}
		return err
	})
	if err != nil {
		return Message{}, false, err
	}
	if !created {
		return Message{}, false, nil
	}
	return m, true, nil
}

func (r *PostgresRepo) Append(ctx context.Context, m Message) (Message, error) {
	q := insertMessage + ` RETURNING seq, created_at`
	err := r.appendLocked(ctx, m.TenantID, m.ConversationID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, q, insertArgs(m)...).Scan(&m.Seq, &m.CreatedAt)
	})
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

func (r *PostgresRepo) appendLocked(ctx context.Context, tenantID, conversationID string, insert func(tx *sql.Tx) error) error {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, lockConversation, conversationID, tenantID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return insert(tx)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return insertError(err)
	}
	return err
}

// insertError maps constraint failures: a missing conversation or contact, or an
// external id already used by another message of the tenant.
func insertError(err error) error {
	switch {
	case utils.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case utils.IsUniqueViolation(err), utils.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	default:
		return err
	}
}

func (r *PostgresRepo) SeenExternal(ctx context.Context, tenantID, externalID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM messages WHERE tenant_id = $1 AND external_id = $2 AND external_id <> '')`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, tenantID, externalID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *PostgresRepo) ListRecent(ctx context.Context, tenantID, conversationID string, limit int, beforeSeq int64) ([]Message, error) {
	const q = `
SELECT id, tenant_id, conversation_id, contact_id, direction, sender, type, body,
	COALESCE(intent, ''), COALESCE(sentiment, ''), external_id, delivery_status,
	COALESCE(delivery_error, ''), seq, created_at
FROM (
	SELECT * FROM messages
	WHERE tenant_id = $1 AND conversation_id = $2 AND ($4::bigint = 0 OR seq < $4::bigint)
	ORDER BY seq DESC
	LIMIT $3
) recent
ORDER BY seq ASC
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, conversationID, limit, beforeSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.ConversationID,
			&m.ContactID,
			&m.Direction,
			&m.Sender,
			&m.Type,
			&m.Body,
			&m.Intent,
			&m.Sentiment,
			&m.ExternalID,
			&m.DeliveryStatus,
			&m.DeliveryError,
			&m.Seq,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
