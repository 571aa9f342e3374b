package subscription

import "errors"

var (
	// ErrUnauthorized is returned by the access guard for ownership
	// mismatches and for lookups of subscriptions the caller does not own.
	// Missing records and foreign records are deliberately indistinguishable.
	ErrUnauthorized = errors.New("subscription: unauthorized")

	// ErrNotFound is returned after ownership is already established when
	// the subscription ID does not resolve at all.
	ErrNotFound = errors.New("subscription: not found")

	ErrPlanNotFound         = errors.New("subscription: plan not found")
	ErrSubscriptionNotFound = errors.New("subscription: subscription not found")
	ErrSubscriptionExists   = errors.New("subscription: subscription already exists for owner")

	// ErrIdentityProviderRequired signals a fatal misconfiguration: an
	// anonymous visitor reached a flow that needs an identity provider and
	// none was configured. This is a startup-time defect, not user error.
	ErrIdentityProviderRequired = errors.New("subscription: identity provider required but not configured")

	// ErrSignUpRequired tells the caller to send the visitor through the
	// identity provider's registration flow before subscribing.
	ErrSignUpRequired = errors.New("subscription: sign up required")

	// ErrGatewayUnavailable wraps network-level billing gateway failures.
	// Gateway rejections of user input (declined cards) are not this; they
	// surface as CreateError or UpdateError instead.
	ErrGatewayUnavailable = errors.New("subscription: billing gateway unavailable")

	ErrImmutableOwner = errors.New("subscription: owner reference is immutable")
)

// AlreadySubscribedError reports a prepare or create attempt by an owner
// that already holds a subscription. Callers should redirect to the
// existing one instead of offering a second checkout.
type AlreadySubscribedError struct {
	Existing *Subscription
}

func (e *AlreadySubscribedError) Error() string { return "subscription: owner is already subscribed" }

// CreateError is a recoverable create failure carrying the gateway's or
// validator's message verbatim for display. It represents expected
// user-input outcomes (declined card, invalid coupon) and must not be
// logged as a system error.
type CreateError struct {
	Message string
}

func (e *CreateError) Error() string { return "subscription create failed: " + e.Message }

// UpdateError mirrors CreateError for updates. RedirectHint names the form
// section the caller should re-render focused; it is always "card" so the
// visitor can re-collect the payment method.
type UpdateError struct {
	Message      string
	RedirectHint string
}

func (e *UpdateError) Error() string { return "subscription update failed: " + e.Message }

// DeclinedError is returned by gateway implementations when the remote
// service rejected the request for a user-correctable reason. The service
// layer converts it into CreateError or UpdateError.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string { return "billing gateway declined: " + e.Message }
