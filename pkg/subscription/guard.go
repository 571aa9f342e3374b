package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Guard resolves which principal may act on which subscription. It is the
// first stage of the request pipeline: resolve the owner, then load the
// target resource, then dispatch; any stage failing short-circuits the
// rest. The guard never mutates anything.
type Guard struct {
	subs SubscriptionStore
}

// NewGuard creates an access guard backed by the given subscription store.
// Panics on a nil store to fail fast during initialization.
func NewGuard(subs SubscriptionStore) *Guard {
	if subs == nil {
		panic("subscription: SubscriptionStore is required")
	}
	return &Guard{subs: subs}
}

// ResolveOwner establishes the acting owner for a request. A nil
// requestedOwnerID means no owner is required (anonymous plan browsing is
// allowed) and returns nil without error. When an owner ID is requested it
// must match the authenticated principal exactly; anonymous or mismatched
// access fails with ErrUnauthorized.
func (g *Guard) ResolveOwner(requestedOwnerID *uuid.UUID, principal *Principal) (*Owner, error) {
	if requestedOwnerID == nil {
		return nil, nil
	}
	if principal == nil || principal.ID != *requestedOwnerID {
		return nil, ErrUnauthorized
	}
	return &Owner{ID: principal.ID, Email: principal.Email}, nil
}

// LoadSubscription looks up a subscription scoped by both its ID and the
// owner's ID. A missing record and a record owned by someone else both
// fail with ErrUnauthorized: the guard must not leak whether another
// owner's subscription exists.
func (g *Guard) LoadSubscription(ctx context.Context, id, ownerID uuid.UUID) (*Subscription, error) {
	sub, err := g.subs.GetOwned(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return sub, nil
}
