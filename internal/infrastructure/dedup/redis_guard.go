package dedup

import (
	"context"
	"fmt"
	"time"

	"storefront-connect-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// deliveryTTL covers the provider's redelivery window with margin.
const deliveryTTL = 48 * time.Hour

// RedisReplayGuard deduplicates webhook deliveries by delivery id using
// SETNX with a TTL. A redelivered webhook is acknowledged upstream but
// never dispatched twice.
type RedisReplayGuard struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisReplayGuard creates a replay guard backed by Redis.
func NewRedisReplayGuard(client *redis.Client, logger zerolog.Logger) ports.ReplayGuard {
	return &RedisReplayGuard{client: client, logger: logger}
}

// FirstDelivery claims a delivery id, reporting whether this is the
// first time it was seen.
func (g *RedisReplayGuard) FirstDelivery(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		// Providers that omit the header get no dedup; the delivery is
		// treated as first.
		return true, nil
	}

	key := "webhook:delivery:" + deliveryID
	claimed, err := g.client.SetNX(ctx, key, 1, deliveryTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery id: %w", err)
	}
	if !claimed {
		g.logger.Debug().Str("deliveryId", deliveryID).Msg("Duplicate webhook delivery suppressed")
	}

	return claimed, nil
}
