package contacts

import (
	"context"
	"time"
)

// Repository is the persistence contract for contacts.
//
// FindOrCreate MUST be a single atomic conditional insert on (tenant_id, phone):
// concurrent callers with the same key converge on one row. Implementations must not
// emulate it with a read followed by a write.
type Repository interface {
	FindOrCreate(ctx context.Context, c Contact) (Contact, bool, error)
	Get(ctx context.Context, tenantID, id string) (Contact, error)
	SetStatus(ctx context.Context, tenantID, id string, status Status, at time.Time) (Contact, error)
}
