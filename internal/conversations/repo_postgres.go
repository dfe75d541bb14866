package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"messaging-platform/internal/taxonomy"
	"messaging-platform/pkg/utils"
)

// PostgresRepo relies on the partial unique index
// conversations_one_active_idx ON conversations (contact_id, channel) WHERE status IN ('open','escalated').
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const conversationColumns = `id, tenant_id, contact_id, channel, business_address, status,
COALESCE(intent, ''), COALESCE(sentiment, ''), created_at, updated_at`

func (r *PostgresRepo) FindOrCreateActive(ctx context.Context, c Conversation) (Conversation, bool, error) {
	// The no-op DO UPDATE locks and returns the winning row when another delivery inserted first.
	const q = `
INSERT INTO conversations (id, tenant_id, contact_id, channel, business_address, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (contact_id, channel) WHERE status IN ('open', 'escalated')
DO UPDATE SET updated_at = conversations.updated_at
RETURNING ` + conversationColumns + `, (xmax = 0) AS created
`
	var out Conversation
	var created bool
	err := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.TenantID,
		c.ContactID,
		c.Channel,
		c.BusinessAddress,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(
		&out.ID,
		&out.TenantID,
		&out.ContactID,
		&out.Channel,
		&out.BusinessAddress,
		&out.Status,
		&out.Intent,
		&out.Sentiment,
		&out.CreatedAt,
		&out.UpdatedAt,
		&created,
	)
	if utils.IsForeignKeyViolation(err) || utils.IsCheckViolation(err) {
		return Conversation{}, false, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err != nil {
		return Conversation{}, false, err
	}
	return out, created, nil
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id string) (Conversation, error) {
	const q = `SELECT ` + conversationColumns + ` FROM conversations WHERE tenant_id = $1 AND id = $2`
	return scanConversation(r.db.QueryRowContext(ctx, q, tenantID, id))
}

func (r *PostgresRepo) Annotate(ctx context.Context, tenantID, id string, intent taxonomy.Intent, sentiment taxonomy.Sentiment, at time.Time) error {
	const q = `
UPDATE conversations SET intent = $3, sentiment = $4, updated_at = GREATEST(updated_at, $5)
WHERE tenant_id = $1 AND id = $2
`
	return execOne(ctx, r.db, q, tenantID, id, intent, sentiment, at)
}

func (r *PostgresRepo) Transition(ctx context.Context, tenantID, id string, from []Status, to Status, at time.Time) (Conversation, error) {
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = string(s)
	}
	const q = `
UPDATE conversations SET status = $3, updated_at = GREATEST(updated_at, $4)
WHERE tenant_id = $1 AND id = $2 AND status = ANY($5)
RETURNING ` + conversationColumns
	out, err := scanConversation(r.db.QueryRowContext(ctx, q, tenantID, id, to, at, names))
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing row from a status that moved underneath us.
		if _, getErr := r.Get(ctx, tenantID, id); getErr != nil {
			return Conversation{}, getErr
		}
		return Conversation{}, ErrConflict
	}
	return out, err
}

func (r *PostgresRepo) Touch(ctx context.Context, tenantID, id string, at time.Time) error {
	const q = `UPDATE conversations SET updated_at = GREATEST(updated_at, $3) WHERE tenant_id = $1 AND id = $2`
	return execOne(ctx, r.db, q, tenantID, id, at)
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, from, to time.Time) ([]Conversation, error) {
	const q = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(
			&c.ID,
			&c.TenantID,
			&c.ContactID,
			&c.Channel,
			&c.BusinessAddress,
			&c.Status,
			&c.Intent,
			&c.Sentiment,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConversation(row *sql.Row) (Conversation, error) {
	var c Conversation
	if err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.ContactID,
		&c.Channel,
		&c.BusinessAddress,
		&c.Status,
		&c.Intent,
		&c.Sentiment,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return c, nil
}

func execOne(ctx context.Context, db *sql.DB, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
