package tenants

import (
	"context"
	"strings"
	"time"

	"messaging-platform/internal/contacts"
)

type Service struct {
	repo   Repository
	region string
	clock  func() time.Time
}

func NewService(repo Repository, defaultRegion string) *Service {
	return &Service{repo: repo, region: defaultRegion, clock: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (Tenant, error) {
	if strings.TrimSpace(id) == "" {
		return Tenant{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, id)
}

// ResolveByNumber maps the dialed business number to its tenant id.
func (s *Service) ResolveByNumber(ctx context.Context, to string) (string, error) {
	n, err := contacts.NormalizePhone(to, s.region)
	if err != nil {
		return "", ErrNotFound
	}
	return s.repo.ResolveByNumber(ctx, n)
}

// Upsert creates or replaces a tenant and assigns it the given business numbers.
func (s *Service) Upsert(ctx context.Context, t Tenant, numbers []string) (Tenant, error) {
	if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.BusinessName) == "" || t.MaxReplyLength < 0 {
		return Tenant{}, ErrInvalidArgument
	}
	normalized := make([]string, 0, len(numbers))
	for _, raw := range numbers {
		n, err := contacts.NormalizePhone(raw, s.region)
		if err != nil {
			return Tenant{}, err
		}
		normalized = append(normalized, n)
	}
	now := s.clock().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return s.repo.Upsert(ctx, t, normalized)
}
