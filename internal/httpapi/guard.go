package httpapi

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-platform/pkg/utils"
)

// InboundGuard caps in-flight webhook work per tenant and claims each provider
// message id once across replicas.
type InboundGuard interface {
	Acquire(ctx context.Context, tenantID string) (release func(), ok bool, err error)
	Claim(ctx context.Context, tenantID, externalID string) (bool, error)
	Unclaim(ctx context.Context, tenantID, externalID string) error
}

type RedisGuard struct {
	rdb      *redis.Client
	limit    int
	capTTL   time.Duration
	dedupTTL time.Duration
}

func NewRedisGuard(rdb *redis.Client, limit int, dedupTTL time.Duration) *RedisGuard {
	if limit <= 0 {
		limit = 50
	}
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &RedisGuard{rdb: rdb, limit: limit, capTTL: time.Minute, dedupTTL: dedupTTL}
}

func (g *RedisGuard) Acquire(ctx context.Context, tenantID string) (func(), bool, error) {
	key := "inbound:inflight:" + tenantID
	ok, err := utils.AcquireConcurrencyCap(ctx, g.rdb, key, g.limit, g.capTTL)
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		_ = utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), g.rdb, key)
	}, true, nil
}

func (g *RedisGuard) Claim(ctx context.Context, tenantID, externalID string) (bool, error) {
	return utils.ClaimOnce(ctx, g.rdb, claimKey(tenantID, externalID), g.dedupTTL)
}

func (g *RedisGuard) Unclaim(ctx context.Context, tenantID, externalID string) error {
	return utils.ReleaseClaim(ctx, g.rdb, claimKey(tenantID, externalID))
}

func claimKey(tenantID, externalID string) string {
	return "inbound:" + tenantID + ":" + externalID
}
