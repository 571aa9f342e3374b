package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated identity established by the external
// identity system. The package never creates or mutates principals.
type Principal struct {
	ID    uuid.UUID
	Email string
}

// Owner is the billing-facing view of a principal. Each owner holds at
// most one subscription.
type Owner struct {
	ID    uuid.UUID
	Email string
}

// Money represents a monetary amount in the smallest currency unit.
// $10.99 USD is Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64
	Currency string
}

// Plan is a purchasable tier. GatewayPlanID is the price identifier the
// billing gateway understands (e.g. a Stripe price ID); plans are loaded
// by ID and listed ordered by DisplayOrder, then price.
type Plan struct {
	ID            uuid.UUID
	Name          string
	Description   string
	GatewayPlanID string
	Price         Money
	DisplayOrder  int
}

// Subscription links an owner to a plan plus the payment metadata captured
// at checkout. OwnerID is immutable after creation. A nil PlanID means the
// subscription is cancelled; cancellation is a state transition, records
// are never hard-deleted.
type Subscription struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	PlanID            *uuid.UUID
	GatewayCustomerID string
	CurrentPrice      int64 // price snapshot in minor units
	CardToken         string
	CardType          string
	LastFour          string
	CouponCode        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsCancelled reports whether the subscription has no active plan.
func (s *Subscription) IsCancelled() bool {
	return s.PlanID == nil
}

// IsDraft reports whether the subscription has not been persisted yet.
// Drafts are produced by ListOrPrepare and PrepareNew for form rendering.
func (s *Subscription) IsDraft() bool {
	return s.ID == uuid.Nil
}

// CouponDuration is the gateway's discount duration mode.
type CouponDuration string

const (
	DurationOnce      CouponDuration = "once"
	DurationRepeating CouponDuration = "repeating"
	DurationForever   CouponDuration = "forever"
)

// Coupon is a gateway-sourced discount descriptor. Exactly one of
// PercentOff or AmountOff is non-zero; AmountOff is in minor units.
// Coupons are never persisted locally, they are fetched on demand keyed
// by the subscription's gateway customer ID.
type Coupon struct {
	PercentOff       int64
	AmountOff        int64
	Duration         CouponDuration
	DurationInMonths int64
}

// SubscriptionView is the read-model returned by Show and Edit: the
// subscription plus, when a coupon is attached, its resolved discount
// description.
type SubscriptionView struct {
	Subscription    *Subscription
	DiscountMessage string
}
