package contacts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the identity resolver: it maps a sender address to a Contact.
type Service struct {
	repo   Repository
	region string
	clock  func() time.Time
	newID  func() string
}

func NewService(repo Repository, defaultRegion string) *Service {
	if defaultRegion == "" {
		defaultRegion = "US"
	}
	return &Service{repo: repo, region: defaultRegion, clock: time.Now, newID: uuid.NewString}
}

// Resolve returns the tenant's contact for rawAddress, creating an active, unnamed one
// when none exists. Store errors are returned unchanged and are fatal to the caller.
func (s *Service) Resolve(ctx context.Context, tenantID, rawAddress string) (Contact, bool, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Contact{}, false, ErrInvalidArgument
	}
	phone, err := NormalizePhone(rawAddress, s.region)
	if err != nil {
		return Contact{}, false, err
	}

	now := s.clock().UTC()
	return s.repo.FindOrCreate(ctx, Contact{
		ID:        s.newID(),
		TenantID:  tenantID,
		Phone:     phone,
		Status:    StatusActive,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Contact, error) {
	if tenantID == "" || id == "" {
		return Contact{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, tenantID, id)
}

// SetStatus records an opt-out/opt-in. It is idempotent.
func (s *Service) SetStatus(ctx context.Context, tenantID, id string, status Status) (Contact, error) {
	if tenantID == "" || id == "" {
		return Contact{}, ErrInvalidArgument
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return Contact{}, err
	}
	return s.repo.SetStatus(ctx, tenantID, id, status, s.clock().UTC())
}
