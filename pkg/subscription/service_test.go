package subscription_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/subkit/subkit/pkg/subscription"
)

// MockGateway implements subscription.BillingGateway for testing.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSubscription(ctx context.Context, req subscription.CreateSubscriptionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) UpdateSubscription(ctx context.Context, customerID string, req subscription.UpdateSubscriptionRequest) error {
	args := m.Called(ctx, customerID, req)
	return args.Error(0)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

func (m *MockGateway) CustomerDiscount(ctx context.Context, customerID string) (*subscription.Coupon, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Coupon), args.Error(1)
}

// MockNotifier implements subscription.Notifier for testing.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SubscriptionCreated(ctx context.Context, owner subscription.Owner, sub *subscription.Subscription) error {
	args := m.Called(ctx, owner, sub)
	return args.Error(0)
}

func (m *MockNotifier) SubscriptionCancelled(ctx context.Context, owner subscription.Owner, sub *subscription.Subscription) error {
	args := m.Called(ctx, owner, sub)
	return args.Error(0)
}

// stubIdentity resolves to a fixed principal, or nobody when nil.
type stubIdentity struct {
	principal *subscription.Principal
}

func (s stubIdentity) CurrentPrincipal(ctx context.Context) (*subscription.Principal, bool) {
	return s.principal, s.principal != nil
}

var (
	starterPlan = subscription.Plan{
		ID:            uuid.MustParse("7f9c24e8-3b0f-4f6e-9d5a-64e2a8f3b111"),
		Name:          "Starter",
		GatewayPlanID: "price_starter_monthly",
		Price:         subscription.Money{Amount: 900, Currency: "USD"},
		DisplayOrder:  1,
	}
	proPlan = subscription.Plan{
		ID:            uuid.MustParse("9a1b3c5d-7e9f-4a2b-8c4d-1e3f5a7b9c22"),
		Name:          "Pro",
		GatewayPlanID: "price_pro_monthly",
		Price:         subscription.Money{Amount: 2900, Currency: "USD"},
		DisplayOrder:  2,
	}
)

func newTestService(t *testing.T, gw *MockGateway, opts ...subscription.ServiceOption) (*subscription.Service, subscription.SubscriptionStore) {
	t.Helper()
	plans := subscription.NewMemoryPlanStore(starterPlan, proPlan)
	subs := subscription.NewMemorySubscriptionStore()
	svc := subscription.NewService(subscription.Config{}, plans, subs, gw, opts...)
	return svc, subs
}

func TestNewService(t *testing.T) {
	t.Parallel()

	plans := subscription.NewMemoryPlanStore(starterPlan)
	subs := subscription.NewMemorySubscriptionStore()

	t.Run("panics with nil plan store", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			subscription.NewService(subscription.Config{}, nil, subs, &MockGateway{})
		})
	})

	t.Run("panics with nil subscription store", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			subscription.NewService(subscription.Config{}, plans, nil, &MockGateway{})
		})
	})

	t.Run("panics with nil gateway", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			subscription.NewService(subscription.Config{}, plans, subs, nil)
		})
	})

	t.Run("panics with unsafe owner entity name", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			subscription.NewService(subscription.Config{OwnerEntity: "user; drop table"}, plans, subs, &MockGateway{})
		})
	})
}

func TestConfigOwnerColumn(t *testing.T) {
	t.Parallel()

	t.Run("defaults to user_id", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "user_id", subscription.Config{}.OwnerColumn())
	})

	t.Run("derives column from entity name", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "team_id", subscription.Config{OwnerEntity: "team"}.OwnerColumn())
	})

	t.Run("panics on unsafe identifier", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			subscription.Config{OwnerEntity: `users"; --`}.OwnerColumn()
		})
	})
}

func TestServiceListOrPrepare(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("anonymous visitor gets plans only", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{})

		result, err := svc.ListOrPrepare(ctx, nil)

		require.NoError(t, err)
		require.Len(t, result.Plans, 2)
		assert.Equal(t, "Starter", result.Plans[0].Name)
		assert.Nil(t, result.Draft)
		assert.Nil(t, result.Existing)
	})

	t.Run("owner without subscription gets plans and draft", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{})
		ownerID := uuid.New()

		result, err := svc.ListOrPrepare(ctx, &ownerID)

		require.NoError(t, err)
		require.Len(t, result.Plans, 2)
		require.NotNil(t, result.Draft)
		assert.Equal(t, ownerID, result.Draft.OwnerID)
		assert.True(t, result.Draft.IsDraft())
		assert.Nil(t, result.Existing)
	})

	t.Run("subscribed owner gets redirect signal only", func(t *testing.T) {
		t.Parallel()
		svc, subs := newTestService(t, &MockGateway{})
		ownerID := uuid.New()
		planID := starterPlan.ID
		existing := &subscription.Subscription{ID: uuid.New(), OwnerID: ownerID, PlanID: &planID}
		require.NoError(t, subs.Save(ctx, existing))

		result, err := svc.ListOrPrepare(ctx, &ownerID)

		require.NoError(t, err)
		require.NotNil(t, result.Existing)
		assert.Equal(t, existing.ID, result.Existing.ID)
		assert.Empty(t, result.Plans)
		assert.Nil(t, result.Draft)
	})
}

func TestServicePrepareNew(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("builds draft for known owner", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{})
		ownerID := uuid.New()

		draft, err := svc.PrepareNew(ctx, &ownerID, proPlan.ID)

		require.NoError(t, err)
		assert.True(t, draft.IsDraft())
		assert.Equal(t, ownerID, draft.OwnerID)
		require.NotNil(t, draft.PlanID)
		assert.Equal(t, proPlan.ID, *draft.PlanID)
		assert.Equal(t, int64(2900), draft.CurrentPrice)
	})

	t.Run("resolves anonymous visitor through identity provider", func(t *testing.T) {
		t.Parallel()
		principal := &subscription.Principal{ID: uuid.New(), Email: "signed-in@example.com"}
		svc, _ := newTestService(t, &MockGateway{},
			subscription.WithIdentityProvider(stubIdentity{principal: principal}))

		draft, err := svc.PrepareNew(ctx, nil, starterPlan.ID)

		require.NoError(t, err)
		assert.Equal(t, principal.ID, draft.OwnerID)
	})

	t.Run("unknown visitor must sign up", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{},
			subscription.WithIdentityProvider(stubIdentity{}))

		_, err := svc.PrepareNew(ctx, nil, starterPlan.ID)

		assert.ErrorIs(t, err, subscription.ErrSignUpRequired)
	})

	t.Run("missing identity provider is a configuration error", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{})

		_, err := svc.PrepareNew(ctx, nil, starterPlan.ID)

		assert.ErrorIs(t, err, subscription.ErrIdentityProviderRequired)
	})

	t.Run("already subscribed owner is redirected", func(t *testing.T) {
		t.Parallel()
		svc, subs := newTestService(t, &MockGateway{})
		ownerID := uuid.New()
		planID := starterPlan.ID
		existing := &subscription.Subscription{ID: uuid.New(), OwnerID: ownerID, PlanID: &planID}
		require.NoError(t, subs.Save(ctx, existing))

		_, err := svc.PrepareNew(ctx, &ownerID, proPlan.ID)

		var already *subscription.AlreadySubscribedError
		require.ErrorAs(t, err, &already)
		assert.Equal(t, existing.ID, already.Existing.ID)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{})
		ownerID := uuid.New()

		_, err := svc.PrepareNew(ctx, &ownerID, uuid.New())

		assert.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("charges the gateway and persists", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		notifier := &MockNotifier{}
		svc, subs := newTestService(t, gw, subscription.WithNotifier(notifier))
		owner := subscription.Owner{ID: uuid.New(), Email: "owner@example.com"}

		gw.On("CreateSubscription", mock.Anything, subscription.CreateSubscriptionRequest{
			Email:      "owner@example.com",
			CardToken:  "tok_visa",
			PlanCode:   "price_starter_monthly",
			CouponCode: "SPRING20",
		}).Return("cus_123", nil)
		notifier.On("SubscriptionCreated", mock.Anything, owner, mock.Anything).Return(nil)

		sub, err := svc.Create(ctx, owner, map[string]any{
			"plan_id":           starterPlan.ID.String(),
			"credit_card_token": "tok_visa",
			"card_type":         "Visa",
			"last_four":         "4242",
			"coupon_code":       "SPRING20",
		})

		require.NoError(t, err)
		assert.False(t, sub.IsDraft())
		assert.Equal(t, owner.ID, sub.OwnerID)
		assert.Equal(t, "cus_123", sub.GatewayCustomerID)
		assert.Equal(t, int64(900), sub.CurrentPrice)
		assert.Equal(t, "Visa", sub.CardType)
		assert.Equal(t, "4242", sub.LastFour)
		assert.Equal(t, "SPRING20", sub.CouponCode)
		assert.False(t, sub.CreatedAt.IsZero())

		persisted, err := subs.GetByOwner(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, persisted.ID)

		gw.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("forged gateway customer id is dropped", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, _ := newTestService(t, gw)
		owner := subscription.Owner{ID: uuid.New(), Email: "owner@example.com"}

		gw.On("CreateSubscription", mock.Anything, mock.Anything).Return("cus_real", nil)

		sub, err := svc.Create(ctx, owner, map[string]any{
			"plan_id":             starterPlan.ID.String(),
			"gateway_customer_id": "cus_forged",
		})

		require.NoError(t, err)
		assert.Equal(t, "cus_real", sub.GatewayCustomerID)
	})

	t.Run("missing plan is a recoverable failure", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, _ := newTestService(t, gw)

		_, err := svc.Create(ctx, subscription.Owner{ID: uuid.New()}, map[string]any{
			"credit_card_token": "tok_visa",
		})

		var createErr *subscription.CreateError
		require.ErrorAs(t, err, &createErr)
		assert.Contains(t, createErr.Message, "plan")
		gw.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
	})

	t.Run("declined card persists nothing", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		owner := subscription.Owner{ID: uuid.New(), Email: "owner@example.com"}

		gw.On("CreateSubscription", mock.Anything, mock.Anything).
			Return("", &subscription.DeclinedError{Message: "Your card was declined."})

		_, err := svc.Create(ctx, owner, map[string]any{
			"plan_id":           starterPlan.ID.String(),
			"credit_card_token": "tok_declined",
		})

		var createErr *subscription.CreateError
		require.ErrorAs(t, err, &createErr)
		assert.Equal(t, "Your card was declined.", createErr.Message)

		_, err = subs.GetByOwner(ctx, owner.ID)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("gateway outage escalates unchanged", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, _ := newTestService(t, gw)

		gw.On("CreateSubscription", mock.Anything, mock.Anything).
			Return("", subscription.ErrGatewayUnavailable)

		_, err := svc.Create(ctx, subscription.Owner{ID: uuid.New()}, map[string]any{
			"plan_id": starterPlan.ID.String(),
		})

		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
		var createErr *subscription.CreateError
		assert.False(t, errors.As(err, &createErr))
	})

	t.Run("already subscribed owner skips the gateway", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		ownerID := uuid.New()
		planID := starterPlan.ID
		require.NoError(t, subs.Save(ctx, &subscription.Subscription{ID: uuid.New(), OwnerID: ownerID, PlanID: &planID}))

		_, err := svc.Create(ctx, subscription.Owner{ID: ownerID}, map[string]any{
			"plan_id": proPlan.ID.String(),
		})

		var already *subscription.AlreadySubscribedError
		assert.ErrorAs(t, err, &already)
		gw.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
	})

	t.Run("notifier failure does not fail the create", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		notifier := &MockNotifier{}
		svc, _ := newTestService(t, gw, subscription.WithNotifier(notifier))
		owner := subscription.Owner{ID: uuid.New(), Email: "owner@example.com"}

		gw.On("CreateSubscription", mock.Anything, mock.Anything).Return("cus_123", nil)
		notifier.On("SubscriptionCreated", mock.Anything, owner, mock.Anything).
			Return(errors.New("smtp down"))

		sub, err := svc.Create(ctx, owner, map[string]any{
			"plan_id": starterPlan.ID.String(),
		})

		require.NoError(t, err)
		assert.NotNil(t, sub)
	})
}

func TestServiceShow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T, subs subscription.SubscriptionStore, couponCode string) *subscription.Subscription {
		t.Helper()
		planID := starterPlan.ID
		sub := &subscription.Subscription{
			ID:                uuid.New(),
			OwnerID:           uuid.New(),
			PlanID:            &planID,
			GatewayCustomerID: "cus_123",
			CouponCode:        couponCode,
		}
		require.NoError(t, subs.Save(ctx, sub))
		return sub
	}

	t.Run("resolves discount message for coupon holder", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs, "SPRING20")

		gw.On("CustomerDiscount", mock.Anything, "cus_123").
			Return(&subscription.Coupon{PercentOff: 20, Duration: subscription.DurationRepeating, DurationInMonths: 3}, nil)

		view, err := svc.Show(ctx, sub.ID)

		require.NoError(t, err)
		assert.Equal(t, sub.ID, view.Subscription.ID)
		assert.Equal(t, "20% off for the first 3 months.", view.DiscountMessage)
		gw.AssertExpectations(t)
	})

	t.Run("no coupon means no gateway call", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs, "")

		view, err := svc.Show(ctx, sub.ID)

		require.NoError(t, err)
		assert.Empty(t, view.DiscountMessage)
		gw.AssertNotCalled(t, "CustomerDiscount", mock.Anything, mock.Anything)
	})

	t.Run("coupon code without remote discount", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs, "EXPIRED")

		gw.On("CustomerDiscount", mock.Anything, "cus_123").Return(nil, nil)

		view, err := svc.Show(ctx, sub.ID)

		require.NoError(t, err)
		assert.Empty(t, view.DiscountMessage)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, &MockGateway{})

		_, err := svc.Show(ctx, uuid.New())

		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("edit returns the same view", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs, "")

		shown, err := svc.Show(ctx, sub.ID)
		require.NoError(t, err)
		edited, err := svc.Edit(ctx, sub.ID)
		require.NoError(t, err)

		assert.Equal(t, shown, edited)
	})
}

func TestServiceUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T, subs subscription.SubscriptionStore) *subscription.Subscription {
		t.Helper()
		planID := starterPlan.ID
		sub := &subscription.Subscription{
			ID:                uuid.New(),
			OwnerID:           uuid.New(),
			PlanID:            &planID,
			GatewayCustomerID: "cus_123",
			CurrentPrice:      900,
			CardType:          "Visa",
			LastFour:          "4242",
		}
		require.NoError(t, subs.Save(ctx, sub))
		return sub
	}

	t.Run("plan change propagates to the gateway", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		gw.On("UpdateSubscription", mock.Anything, "cus_123", subscription.UpdateSubscriptionRequest{
			PlanCode: "price_pro_monthly",
		}).Return(nil)

		updated, err := svc.Update(ctx, sub, map[string]any{
			"plan_id": proPlan.ID.String(),
		})

		require.NoError(t, err)
		require.NotNil(t, updated.PlanID)
		assert.Equal(t, proPlan.ID, *updated.PlanID)
		assert.Equal(t, int64(2900), updated.CurrentPrice)

		persisted, err := subs.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, proPlan.ID, *persisted.PlanID)
		gw.AssertExpectations(t)
	})

	t.Run("metadata-only update skips the gateway", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		updated, err := svc.Update(ctx, sub, map[string]any{
			"card_type": "Mastercard",
			"last_four": "5100",
		})

		require.NoError(t, err)
		assert.Equal(t, "Mastercard", updated.CardType)
		assert.Equal(t, "5100", updated.LastFour)
		gw.AssertNotCalled(t, "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unpermitted fields are ignored", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		updated, err := svc.Update(ctx, sub, map[string]any{
			"gateway_customer_id": "cus_forged",
			"owner_id":            uuid.New().String(),
			"last_four":           "5100",
		})

		require.NoError(t, err)
		assert.Equal(t, "cus_123", updated.GatewayCustomerID)
		assert.Equal(t, sub.OwnerID, updated.OwnerID)
	})

	t.Run("declined card returns message and card hint", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		gw.On("UpdateSubscription", mock.Anything, "cus_123", mock.Anything).
			Return(&subscription.DeclinedError{Message: "Your card has expired."})

		_, err := svc.Update(ctx, sub, map[string]any{
			"credit_card_token": "tok_expired",
		})

		var updateErr *subscription.UpdateError
		require.ErrorAs(t, err, &updateErr)
		assert.Equal(t, "Your card has expired.", updateErr.Message)
		assert.Equal(t, "card", updateErr.RedirectHint)

		// A failed update leaves the record untouched.
		persisted, perr := subs.Get(ctx, sub.ID)
		require.NoError(t, perr)
		assert.Equal(t, starterPlan.ID, *persisted.PlanID)
	})

	t.Run("gateway outage escalates unchanged", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		gw.On("UpdateSubscription", mock.Anything, "cus_123", mock.Anything).
			Return(subscription.ErrGatewayUnavailable)

		_, err := svc.Update(ctx, sub, map[string]any{"coupon_code": "SPRING20"})

		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
	})
}

func TestServiceCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T, subs subscription.SubscriptionStore) *subscription.Subscription {
		t.Helper()
		planID := starterPlan.ID
		sub := &subscription.Subscription{
			ID:                uuid.New(),
			OwnerID:           uuid.New(),
			PlanID:            &planID,
			GatewayCustomerID: "cus_123",
		}
		require.NoError(t, subs.Save(ctx, sub))
		return sub
	}

	t.Run("cancels remotely before clearing the plan", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		notifier := &MockNotifier{}
		svc, subs := newTestService(t, gw, subscription.WithNotifier(notifier))
		sub := seed(t, subs)

		gw.On("CancelSubscription", mock.Anything, "cus_123").Return(nil)
		notifier.On("SubscriptionCancelled", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		cancelled, err := svc.Cancel(ctx, sub)

		require.NoError(t, err)
		assert.True(t, cancelled.IsCancelled())

		// Cancellation is a state transition, the record survives.
		persisted, perr := subs.Get(ctx, sub.ID)
		require.NoError(t, perr)
		assert.Nil(t, persisted.PlanID)
		gw.AssertExpectations(t)
	})

	t.Run("gateway failure aborts local cancellation", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		gw.On("CancelSubscription", mock.Anything, "cus_123").
			Return(subscription.ErrGatewayUnavailable)

		_, err := svc.Cancel(ctx, sub)

		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
		persisted, perr := subs.Get(ctx, sub.ID)
		require.NoError(t, perr)
		assert.NotNil(t, persisted.PlanID)
	})

	t.Run("second cancel is a no-op with one gateway call", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		sub := seed(t, subs)

		gw.On("CancelSubscription", mock.Anything, "cus_123").Return(nil).Once()

		first, err := svc.Cancel(ctx, sub)
		require.NoError(t, err)

		second, err := svc.Cancel(ctx, first)
		require.NoError(t, err)
		assert.True(t, second.IsCancelled())
		gw.AssertExpectations(t)
	})

	t.Run("draft without gateway customer skips the gateway", func(t *testing.T) {
		t.Parallel()
		gw := &MockGateway{}
		svc, subs := newTestService(t, gw)
		planID := starterPlan.ID
		sub := &subscription.Subscription{ID: uuid.New(), OwnerID: uuid.New(), PlanID: &planID}
		require.NoError(t, subs.Save(ctx, sub))

		cancelled, err := svc.Cancel(ctx, sub)

		require.NoError(t, err)
		assert.True(t, cancelled.IsCancelled())
		gw.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
	})
}

func TestServiceCreateShowRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := &MockGateway{}
	svc, _ := newTestService(t, gw)
	owner := subscription.Owner{ID: uuid.New(), Email: "owner@example.com"}

	gw.On("CreateSubscription", mock.Anything, mock.Anything).Return("cus_123", nil)
	gw.On("CustomerDiscount", mock.Anything, "cus_123").
		Return(&subscription.Coupon{AmountOff: 500, Duration: subscription.DurationOnce}, nil)

	created, err := svc.Create(ctx, owner, map[string]any{
		"plan_id":           starterPlan.ID.String(),
		"credit_card_token": "tok_visa",
		"coupon_code":       "FIVEOFF",
	})
	require.NoError(t, err)

	view, err := svc.Show(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, view.Subscription.ID)
	assert.Equal(t, "$5 off for the first month.", view.DiscountMessage)
}
