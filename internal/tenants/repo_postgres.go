package tenants

import (
	"context"
	"database/sql"
	"errors"

	"messaging-platform/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, id string) (Tenant, error) {
	const q = `
SELECT id, business_name, persona, industry, knowledge_base, escalation_rules,
	max_reply_length, pause_bot_on_escalation, created_at, updated_at
FROM tenants WHERE id = $1
`
	var t Tenant
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID,
		&t.BusinessName,
		&t.Persona,
		&t.Industry,
		&t.KnowledgeBase,
		&t.EscalationRules,
		&t.MaxReplyLength,
		&t.PauseBotOnEscalation,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	return t, err
}

func (r *PostgresRepo) ResolveByNumber(ctx context.Context, number string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT tenant_id FROM tenant_numbers WHERE number = $1`, number).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (r *PostgresRepo) Upsert(ctx context.Context, t Tenant, numbers []string) (Tenant, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO tenants (id, business_name, persona, industry, knowledge_base, escalation_rules,
	max_reply_length, pause_bot_on_escalation, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	business_name = EXCLUDED.business_name,
	persona = EXCLUDED.persona,
	industry = EXCLUDED.industry,
	knowledge_base = EXCLUDED.knowledge_base,
	escalation_rules = EXCLUDED.escalation_rules,
	max_reply_length = EXCLUDED.max_reply_length,
	pause_bot_on_escalation = EXCLUDED.pause_bot_on_escalation,
	updated_at = EXCLUDED.updated_at
RETURNING created_at
`
		if err := tx.QueryRowContext(ctx, q,
			t.ID,
			t.BusinessName,
			t.Persona,
			t.Industry,
			t.KnowledgeBase,
			t.EscalationRules,
			t.MaxReplyLength,
			t.PauseBotOnEscalation,
			t.CreatedAt,
			t.UpdatedAt,
		).Scan(&t.CreatedAt); err != nil {
			return err
		}

		for _, n := range numbers {
			// A number owned by another tenant matches no row in the conditional update.
			var owner string
			err := tx.QueryRowContext(ctx, `
INSERT INTO tenant_numbers (number, tenant_id) VALUES ($1, $2)
ON CONFLICT (number) DO UPDATE SET tenant_id = tenant_numbers.tenant_id
RETURNING tenant_id
`, n, t.ID).Scan(&owner)
			if err != nil {
				return err
			}
			if owner != t.ID {
				return ErrNumberTaken
			}
		}
		return nil
	})
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}
