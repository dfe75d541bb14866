package tenants

import "context"

// Repository stores tenants and the business numbers routed to them.
// A number belongs to at most one tenant.
type Repository interface {
	Get(ctx context.Context, id string) (Tenant, error)
	ResolveByNumber(ctx context.Context, number string) (string, error)
	Upsert(ctx context.Context, t Tenant, numbers []string) (Tenant, error)
}
