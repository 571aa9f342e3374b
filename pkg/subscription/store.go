package subscription

import (
	"context"

	"github.com/google/uuid"
)

// PlanStore loads the plan catalog. Plans are immutable from this
// package's perspective; whoever seeds the store owns their lifecycle.
type PlanStore interface {
	// Get returns a plan by ID. Returns ErrPlanNotFound when the ID does
	// not resolve.
	Get(ctx context.Context, id uuid.UUID) (*Plan, error)

	// List returns all plans ordered by display order, then price.
	List(ctx context.Context) ([]Plan, error)
}

// SubscriptionStore persists subscription records. Each owner holds at
// most one subscription and implementations should enforce that with a
// uniqueness constraint on the ownership column rather than relying on
// the service's read-then-decide check alone.
type SubscriptionStore interface {
	// Get returns a subscription by ID regardless of owner. Returns
	// ErrSubscriptionNotFound when the ID does not resolve.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// GetByOwner returns the owner's subscription, if any.
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error)

	// GetOwned returns the subscription scoped by both ID and owner.
	// A wrong ID and an ID belonging to a different owner both return
	// ErrSubscriptionNotFound; callers must not be able to tell them apart.
	GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*Subscription, error)

	// Save creates or updates a subscription keyed by ID. Creating a
	// second subscription for an owner returns ErrSubscriptionExists;
	// changing the owner of an existing record returns ErrImmutableOwner.
	Save(ctx context.Context, sub *Subscription) error
}
