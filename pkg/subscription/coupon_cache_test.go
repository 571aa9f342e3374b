package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/subkit/subkit/pkg/subscription"
)

func newCacheFixture(t *testing.T) (*MockGateway, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &MockGateway{}, rdb, mr
}

func TestNewCachedDiscounts(t *testing.T) {
	t.Parallel()

	t.Run("panics with nil source", func(t *testing.T) {
		t.Parallel()
		_, rdb, _ := newCacheFixture(t)
		assert.Panics(t, func() {
			subscription.NewCachedDiscounts(nil, rdb, time.Minute, nil)
		})
	})

	t.Run("panics with nil client", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			subscription.NewCachedDiscounts(&MockGateway{}, nil, time.Minute, nil)
		})
	})
}

func TestCachedDiscounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("second lookup is served from cache", func(t *testing.T) {
		t.Parallel()
		src, rdb, _ := newCacheFixture(t)
		cached := subscription.NewCachedDiscounts(src, rdb, time.Minute, nil)

		src.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(&subscription.Coupon{PercentOff: 20, Duration: subscription.DurationForever}, nil).
			Once()

		first, err := cached.CustomerDiscount(ctx, "cus_123")
		require.NoError(t, err)
		second, err := cached.CustomerDiscount(ctx, "cus_123")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, "20% off.", second.Message())
		src.AssertExpectations(t)
	})

	t.Run("caches the absence of a discount", func(t *testing.T) {
		t.Parallel()
		src, rdb, _ := newCacheFixture(t)
		cached := subscription.NewCachedDiscounts(src, rdb, time.Minute, nil)

		src.On("CustomerDiscount", mock.Anything, "cus_nodiscount").Return(nil, nil).Once()

		for range 3 {
			coupon, err := cached.CustomerDiscount(ctx, "cus_nodiscount")
			require.NoError(t, err)
			assert.Nil(t, coupon)
		}
		src.AssertExpectations(t)
	})

	t.Run("expired entry refetches from the source", func(t *testing.T) {
		t.Parallel()
		src, rdb, mr := newCacheFixture(t)
		cached := subscription.NewCachedDiscounts(src, rdb, time.Minute, nil)

		src.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(&subscription.Coupon{AmountOff: 500, Duration: subscription.DurationOnce}, nil).
			Twice()

		_, err := cached.CustomerDiscount(ctx, "cus_123")
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		_, err = cached.CustomerDiscount(ctx, "cus_123")
		require.NoError(t, err)
		src.AssertExpectations(t)
	})

	t.Run("corrupt entry falls through to the source", func(t *testing.T) {
		t.Parallel()
		src, rdb, mr := newCacheFixture(t)
		cached := subscription.NewCachedDiscounts(src, rdb, time.Minute, nil)

		require.NoError(t, mr.Set("subscription:discount:cus_123", "{not json"))
		src.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(&subscription.Coupon{PercentOff: 10, Duration: subscription.DurationForever}, nil).
			Once()

		coupon, err := cached.CustomerDiscount(ctx, "cus_123")

		require.NoError(t, err)
		assert.Equal(t, "10% off.", coupon.Message())
	})

	t.Run("cache outage degrades to direct fetch", func(t *testing.T) {
		t.Parallel()
		src, rdb, mr := newCacheFixture(t)
		cached := subscription.NewCachedDiscounts(src, rdb, time.Minute, nil)
		mr.Close()

		src.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(&subscription.Coupon{PercentOff: 20, Duration: subscription.DurationForever}, nil)

		coupon, err := cached.CustomerDiscount(ctx, "cus_123")

		require.NoError(t, err)
		assert.Equal(t, "20% off.", coupon.Message())
	})

	t.Run("source failure is not cached", func(t *testing.T) {
		t.Parallel()
		src, rdb, _ := newCacheFixture(t)
		cached := subscription.NewCachedDiscounts(src, rdb, time.Minute, nil)

		src.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(nil, subscription.ErrGatewayUnavailable).Once()
		src.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(&subscription.Coupon{PercentOff: 20, Duration: subscription.DurationForever}, nil).Once()

		_, err := cached.CustomerDiscount(ctx, "cus_123")
		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)

		coupon, err := cached.CustomerDiscount(ctx, "cus_123")
		require.NoError(t, err)
		assert.NotNil(t, coupon)
		src.AssertExpectations(t)
	})
}
