package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-platform/pkg/logger"
)

// Alert describes an inbound delivery that could not be processed.
type Alert struct {
	TenantID   string    `json:"tenant_id"`
	Stage      string    `json:"stage"`
	ExternalID string    `json:"external_id,omitempty"`
	Error      string    `json:"error"`
	At         time.Time `json:"at"`
}

// Alerter surfaces fatal pipeline failures to operators.
type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

// LogAlerter writes alerts to the request logger.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, a Alert) {
	logger.From(ctx).Error("inbound processing failed",
		"alert", true,
		"tenant_id", a.TenantID,
		"stage", a.Stage,
		"external_id", a.ExternalID,
		"err", a.Error,
	)
}

// RedisAlerter logs alerts and publishes them as JSON on a Redis channel.
type RedisAlerter struct {
	rdb     *redis.Client
	channel string
}

func NewRedisAlerter(rdb *redis.Client, channel string) *RedisAlerter {
	if channel == "" {
		channel = "messaging:alerts"
	}
	return &RedisAlerter{rdb: rdb, channel: channel}
}

func (r *RedisAlerter) Alert(ctx context.Context, a Alert) {
	LogAlerter{}.Alert(ctx, a)
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.rdb.Publish(pubCtx, r.channel, payload).Err(); err != nil {
		logger.From(ctx).Warn("alert publish failed", slog.String("channel", r.channel), "err", err)
	}
}
