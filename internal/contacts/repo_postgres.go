package contacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"messaging-platform/pkg/utils"
)

// PostgresRepo assumes the contacts table from db/migrations with
// UNIQUE (tenant_id, phone).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const contactColumns = `id, tenant_id, phone, COALESCE(display_name, ''), status, tags, created_at, updated_at`

func (r *PostgresRepo) FindOrCreate(ctx context.Context, c Contact) (Contact, bool, error) {
	// DO UPDATE (instead of DO NOTHING) makes the statement return the existing row even when
	// a concurrent insert committed after our snapshot. xmax = 0 only for freshly inserted rows.
	const q = `
INSERT INTO contacts (id, tenant_id, phone, display_name, status, tags, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
ON CONFLICT (tenant_id, phone)
DO UPDATE SET phone = EXCLUDED.phone
RETURNING ` + contactColumns + `, (xmax = 0) AS created
`
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return Contact{}, false, err
	}
	var out Contact
	var rawTags []byte
	var created bool
	if err := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.TenantID,
		c.Phone,
		c.DisplayName,
		c.Status,
		tags,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(
		&out.ID,
		&out.TenantID,
		&out.Phone,
		&out.DisplayName,
		&out.Status,
		&rawTags,
		&out.CreatedAt,
		&out.UpdatedAt,
		&created,
	); err != nil {
		return Contact{}, false, err
	}
	if err := json.Unmarshal(rawTags, &out.Tags); err != nil {
		return Contact{}, false, err
	}
	return out, created, nil
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id string) (Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND id = $2`
	return scanContact(r.db.QueryRowContext(ctx, q, tenantID, id))
}

func (r *PostgresRepo) SetStatus(ctx context.Context, tenantID, id string, status Status, at time.Time) (Contact, error) {
	const q = `
UPDATE contacts SET status = $3, updated_at = $4
WHERE tenant_id = $1 AND id = $2
RETURNING ` + contactColumns
	return scanContact(r.db.QueryRowContext(ctx, q, tenantID, id, status, at))
}

func scanContact(row *sql.Row) (Contact, error) {
	var c Contact
	var rawTags []byte
	if err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.Phone,
		&c.DisplayName,
		&c.Status,
		&rawTags,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		if utils.IsCheckViolation(err) {
			return Contact{}, ErrInvalidArgument
		}
		return Contact{}, err
	}
	if err := json.Unmarshal(rawTags, &c.Tags); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
