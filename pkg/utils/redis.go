package utils

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig tunes the client. Zero values take defaults.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	defaultDuration(&c.DialTimeout, 3*time.Second)
	defaultDuration(&c.ReadTimeout, 2*time.Second)
	defaultDuration(&c.WriteTimeout, 2*time.Second)
	defaultDuration(&c.PoolTimeout, 4*time.Second)
	defaultDuration(&c.ConnMaxIdleTime, 5*time.Minute)
	defaultDuration(&c.ConnMaxLifetime, 30*time.Minute)
	defaultDuration(&c.PingTimeout, 2*time.Second)
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	}
	return c
}

func defaultDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

var (
	errNilRedis    = errors.New("redis client is nil")
	errEmptyKey    = errors.New("redis key is required")
	errNonPositive = errors.New("limit and ttl must be > 0")
)

// OpenRedis builds a client and checks it with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Join(errors.New("redis ping failed"), err)
	}
	return rdb, nil
}

// slotAcquireScript increments the in-flight counter unless it is already at the
// limit. The TTL is refreshed on every acquire so a crashed holder frees its slot
// once traffic stops.
//
// KEYS[1] counter, ARGV[1] limit, ARGV[2] ttl ms. Returns 1 when acquired.
var slotAcquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// slotReleaseScript decrements the counter and drops it at zero.
var slotReleaseScript = redis.NewScript(`
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireConcurrencyCap takes one of limit slots under key. Webhooks use it to cap
// in-flight inbound handling per tenant.
func AcquireConcurrencyCap(ctx context.Context, rdb *redis.Client, key string, limit int, ttl time.Duration) (bool, error) {
	if err := checkKey(rdb, key); err != nil {
		return false, err
	}
	if limit <= 0 || ttl <= 0 {
		return false, errNonPositive
	}
	res, err := slotAcquireScript.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// ReleaseConcurrencyCap returns a slot taken by AcquireConcurrencyCap.
func ReleaseConcurrencyCap(ctx context.Context, rdb *redis.Client, key string) error {
	if err := checkKey(rdb, key); err != nil {
		return err
	}
	return slotReleaseScript.Run(ctx, rdb, []string{key}).Err()
}

// ClaimOnce records key with a TTL and reports whether this caller was first.
// A false result means another invocation already claimed the key and it has not expired.
func ClaimOnce(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	if err := checkKey(rdb, key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, errNonPositive
	}
	return rdb.SetNX(ctx, key, 1, ttl).Result()
}

// ReleaseClaim drops a claim so a later redelivery can be processed again.
func ReleaseClaim(ctx context.Context, rdb *redis.Client, key string) error {
	if err := checkKey(rdb, key); err != nil {
		return err
	}
	return rdb.Del(ctx, key).Err()
}

func checkKey(rdb *redis.Client, key string) error {
	if rdb == nil {
		return errNilRedis
	}
	if key == "" {
		return errEmptyKey
	}
	return nil
}
