package subscription

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const discountKeyPrefix = "subscription:discount:"

// cachedDiscounts decorates a DiscountSource with a Redis-backed TTL
// cache so show/edit renders do not hit the billing gateway every time.
// A customer with no discount is cached too, as a JSON null, since "no
// coupon" is the common case and still costs a round-trip.
type cachedDiscounts struct {
	src DiscountSource
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewCachedDiscounts wraps src with a Redis cache. Cache failures are
// logged and degrade to a direct gateway fetch; the cache must never make
// a working gateway look unavailable.
func NewCachedDiscounts(src DiscountSource, rdb *redis.Client, ttl time.Duration, log *slog.Logger) DiscountSource {
	if src == nil {
		panic("subscription: DiscountSource is required")
	}
	if rdb == nil {
		panic("subscription: redis client is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedDiscounts{src: src, rdb: rdb, ttl: ttl, log: log}
}

func (c *cachedDiscounts) CustomerDiscount(ctx context.Context, customerID string) (*Coupon, error) {
	key := discountKeyPrefix + customerID

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var coupon *Coupon
		if jsonErr := json.Unmarshal([]byte(raw), &coupon); jsonErr == nil {
			return coupon, nil
		}
		// Corrupt entry, fall through to the source and rewrite it.
	case err != redis.Nil:
		c.log.WarnContext(ctx, "discount cache read failed",
			slog.String("customer_id", customerID), slog.Any("error", err))
	}

	coupon, err := c.src.CustomerDiscount(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(coupon); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.log.WarnContext(ctx, "discount cache write failed",
				slog.String("customer_id", customerID), slog.Any("error", setErr))
		}
	}
	return coupon, nil
}
