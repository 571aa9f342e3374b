package subscription

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// StripeConfig holds configuration for the Stripe billing gateway.
type StripeConfig struct {
	APIKey string `env:"STRIPE_API_KEY,required"`
}

// StripeGateway implements BillingGateway on Stripe. One customer is
// created per owner; the customer ID is what the subscription record
// stores. The customer's single subscription carries the plan price.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a Stripe-backed billing gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("subscription: stripe API key is required")
	}
	return &StripeGateway{api: client.New(cfg.APIKey, nil)}, nil
}

// CreateSubscription creates a Stripe customer charged through the card
// token and opens a subscription on the plan with the coupon applied.
func (g *StripeGateway) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (string, error) {
	custParams := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	}
	if req.Email != "" {
		custParams.Email = stripe.String(req.Email)
	}
	if req.CardToken != "" {
		custParams.Source = stripe.String(req.CardToken)
	}

	cust, err := g.api.Customers.New(custParams)
	if err != nil {
		return "", mapStripeError(err)
	}

	subParams := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(cust.ID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PlanCode)},
		},
	}
	if req.CouponCode != "" {
		subParams.Coupon = stripe.String(req.CouponCode)
	}

	if _, err := g.api.Subscriptions.New(subParams); err != nil {
		return "", mapStripeError(err)
	}

	return cust.ID, nil
}

// UpdateSubscription pushes payment-method, plan, and coupon changes to
// the customer's subscription. A customer whose subscription was
// cancelled gets a fresh one, so re-subscribing is a plain update.
func (g *StripeGateway) UpdateSubscription(ctx context.Context, customerID string, req UpdateSubscriptionRequest) error {
	if customerID == "" {
		return errors.New("subscription: gateway customer ID is required")
	}

	if req.CardToken != "" {
		params := &stripe.CustomerParams{
			Params: stripe.Params{Context: ctx},
			Source: stripe.String(req.CardToken),
		}
		if _, err := g.api.Customers.Update(customerID, params); err != nil {
			return mapStripeError(err)
		}
	}

	if req.PlanCode == "" && req.CouponCode == "" {
		return nil
	}

	current, err := g.currentSubscription(ctx, customerID)
	if err != nil {
		return err
	}

	if current == nil {
		if req.PlanCode == "" {
			return nil
		}
		params := &stripe.SubscriptionParams{
			Params:   stripe.Params{Context: ctx},
			Customer: stripe.String(customerID),
			Items: []*stripe.SubscriptionItemsParams{
				{Price: stripe.String(req.PlanCode)},
			},
		}
		if req.CouponCode != "" {
			params.Coupon = stripe.String(req.CouponCode)
		}
		if _, err := g.api.Subscriptions.New(params); err != nil {
			return mapStripeError(err)
		}
		return nil
	}

	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	if req.PlanCode != "" && len(current.Items.Data) > 0 {
		params.Items = []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(req.PlanCode),
			},
		}
	}
	if req.CouponCode != "" {
		params.Coupon = stripe.String(req.CouponCode)
	}
	if _, err := g.api.Subscriptions.Update(current.ID, params); err != nil {
		return mapStripeError(err)
	}
	return nil
}

// CancelSubscription cancels the customer's active subscription. Customers
// without one are left alone.
func (g *StripeGateway) CancelSubscription(ctx context.Context, customerID string) error {
	current, err := g.currentSubscription(ctx, customerID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := g.api.Subscriptions.Cancel(current.ID, params); err != nil {
		return mapStripeError(err)
	}
	return nil
}

// CustomerDiscount fetches the coupon currently applied to the customer,
// or nil when no discount is active.
func (g *StripeGateway) CustomerDiscount(ctx context.Context, customerID string) (*Coupon, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	}
	cust, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	if cust.Discount == nil || cust.Discount.Coupon == nil {
		return nil, nil
	}

	c := cust.Discount.Coupon
	return &Coupon{
		PercentOff:       int64(c.PercentOff),
		AmountOff:        c.AmountOff,
		Duration:         mapStripeDuration(c.Duration),
		DurationInMonths: c.DurationInMonths,
	}, nil
}

func (g *StripeGateway) currentSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	iter := g.api.Subscriptions.List(params)
	for iter.Next() {
		return iter.Subscription(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError(err)
	}
	return nil, nil
}

// mapStripeError splits Stripe failures into the package's two classes:
// card and request rejections become DeclinedError with Stripe's message,
// everything else is the gateway being unavailable.
func mapStripeError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch serr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return &DeclinedError{Message: serr.Msg}
		}
	}
	return errors.Join(ErrGatewayUnavailable, err)
}

func mapStripeDuration(d stripe.CouponDuration) CouponDuration {
	switch d {
	case stripe.CouponDurationOnce:
		return DurationOnce
	case stripe.CouponDurationRepeating:
		return DurationRepeating
	case stripe.CouponDurationForever:
		return DurationForever
	default:
		return CouponDuration(d)
	}
}
