package subscription

import "context"

// BillingGateway is the narrow interface to the remote payment service.
// The gateway owns all customer, charge, and discount state; this package
// only keeps the customer ID it hands back.
//
// Implementations must distinguish two failure classes: user-correctable
// rejections (declined card, invalid coupon) are returned as *DeclinedError
// with the remote message verbatim, while network and availability
// problems wrap ErrGatewayUnavailable.
type BillingGateway interface {
	// CreateSubscription creates a remote customer subscribed to the plan,
	// charging the card token with the coupon applied. Returns the
	// gateway's customer ID.
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (string, error)

	// UpdateSubscription propagates plan and payment-method changes to the
	// customer's remote subscription, creating one if it was cancelled.
	UpdateSubscription(ctx context.Context, customerID string, req UpdateSubscriptionRequest) error

	// CancelSubscription cancels the customer's remote subscription.
	// Cancelling a customer with no active subscription is a no-op.
	CancelSubscription(ctx context.Context, customerID string) error

	DiscountSource
}

// DiscountSource resolves the coupon currently applied to a gateway
// customer. Split from BillingGateway so the lookup can be wrapped with a
// cache without decorating the mutating operations.
type DiscountSource interface {
	// CustomerDiscount returns the customer's active coupon, or nil when
	// no discount is applied.
	CustomerDiscount(ctx context.Context, customerID string) (*Coupon, error)
}

// CreateSubscriptionRequest carries everything the gateway needs to open a
// paid subscription for a new customer.
type CreateSubscriptionRequest struct {
	Email      string
	CardToken  string
	PlanCode   string // gateway price/plan identifier
	CouponCode string
}

// UpdateSubscriptionRequest carries the changes to propagate. Empty fields
// mean "leave unchanged".
type UpdateSubscriptionRequest struct {
	PlanCode   string
	CardToken  string
	CouponCode string
}
