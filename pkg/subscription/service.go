package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Config holds the process-wide settings of the lifecycle service,
// resolved once at construction. OwnerEntity names the entity type that
// owns subscriptions (the original systems call this "user" or "team");
// it determines the ownership column SQL and Mongo stores scope by.
type Config struct {
	OwnerEntity string `env:"SUBSCRIPTION_OWNER_ENTITY" envDefault:"user"`
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// OwnerColumn returns the foreign-key column derived from the owner
// entity name, e.g. "user" -> "user_id". Panics on names that are not
// safe SQL identifiers since the value is interpolated into queries.
func (c Config) OwnerColumn() string {
	entity := c.OwnerEntity
	if entity == "" {
		entity = "user"
	}
	if !identRe.MatchString(entity) {
		panic(fmt.Sprintf("subscription: invalid owner entity name %q", entity))
	}
	return entity + "_id"
}

// IdentityProvider is the session-level collaborator that resolves the
// currently authenticated principal, if any.
type IdentityProvider interface {
	CurrentPrincipal(ctx context.Context) (*Principal, bool)
}

// Notifier receives lifecycle events after they are committed. Notifier
// failures are logged and swallowed; they never affect the operation.
type Notifier interface {
	SubscriptionCreated(ctx context.Context, owner Owner, sub *Subscription) error
	SubscriptionCancelled(ctx context.Context, owner Owner, sub *Subscription) error
}

// ListResult is the outcome of ListOrPrepare. Exactly one of two shapes:
// Existing set (the owner is already subscribed, redirect there) or Plans
// set with Draft present only for authenticated owners.
type ListResult struct {
	Plans    []Plan
	Draft    *Subscription
	Existing *Subscription
}

// Service owns the create/read/update/cancel operations on subscription
// records and delegates plan and payment-method changes to the billing
// gateway. All operations are synchronous and single-request scoped; the
// one-subscription-per-owner invariant is checked read-then-decide here
// and backed by a uniqueness constraint in the persistent stores.
type Service struct {
	cfg       Config
	plans     PlanStore
	subs      SubscriptionStore
	gateway   BillingGateway
	discounts DiscountSource
	identity  IdentityProvider
	notifier  Notifier
	log       *slog.Logger
	now       func() time.Time
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithIdentityProvider wires the session identity provider used by
// PrepareNew for anonymous visitors.
func WithIdentityProvider(p IdentityProvider) ServiceOption {
	return func(s *Service) { s.identity = p }
}

// WithNotifier registers a lifecycle event notifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDiscountSource overrides where coupon lookups go, typically to wrap
// the gateway with a cache. Defaults to the gateway itself.
func WithDiscountSource(src DiscountSource) ServiceOption {
	return func(s *Service) {
		if src != nil {
			s.discounts = src
		}
	}
}

// NewService creates the lifecycle service. Panics if any required
// dependency is nil so misconfiguration surfaces at startup rather than
// mid-request.
func NewService(cfg Config, plans PlanStore, subs SubscriptionStore, gateway BillingGateway, opts ...ServiceOption) *Service {
	if plans == nil {
		panic("subscription: PlanStore is required")
	}
	if subs == nil {
		panic("subscription: SubscriptionStore is required")
	}
	if gateway == nil {
		panic("subscription: BillingGateway is required")
	}

	// Validate the owner entity name eagerly; stores rely on it.
	_ = cfg.OwnerColumn()

	s := &Service{
		cfg:       cfg,
		plans:     plans,
		subs:      subs,
		gateway:   gateway,
		discounts: gateway,
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListOrPrepare backs the pricing page. Owners that already hold a
// subscription get only a redirect signal, never a draft; anonymous
// visitors get the ordered plan list alone; authenticated owners without
// a subscription additionally get an unsaved draft bound to them.
func (s *Service) ListOrPrepare(ctx context.Context, ownerID *uuid.UUID) (*ListResult, error) {
	if ownerID != nil {
		existing, err := s.subs.GetByOwner(ctx, *ownerID)
		switch {
		case err == nil:
			return &ListResult{Existing: existing}, nil
		case !errors.Is(err, ErrSubscriptionNotFound):
			return nil, err
		}
	}

	plans, err := s.plans.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Plans: plans}
	if ownerID != nil {
		result.Draft = &Subscription{OwnerID: *ownerID}
	}
	return result, nil
}

// PrepareNew returns an unsaved draft subscription bound to the requested
// plan. Anonymous visitors are resolved through the identity provider: a
// logged-in principal becomes the owner, an unknown visitor gets
// ErrSignUpRequired, and a missing provider is the fatal
// ErrIdentityProviderRequired misconfiguration.
func (s *Service) PrepareNew(ctx context.Context, ownerID *uuid.UUID, planID uuid.UUID) (*Subscription, error) {
	if ownerID == nil {
		if s.identity == nil {
			return nil, ErrIdentityProviderRequired
		}
		principal, ok := s.identity.CurrentPrincipal(ctx)
		if !ok {
			return nil, ErrSignUpRequired
		}
		ownerID = &principal.ID
	}

	if existing, err := s.subs.GetByOwner(ctx, *ownerID); err == nil {
		return nil, &AlreadySubscribedError{Existing: existing}
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	return &Subscription{
		OwnerID:      *ownerID,
		PlanID:       &plan.ID,
		CurrentPrice: plan.Price.Amount,
	}, nil
}

// Create charges the owner through the billing gateway and persists the
// resulting subscription. Gateway rejections, validation failures, and
// persistence failures all come back as *CreateError carrying the
// offending message verbatim; these are expected user-input outcomes, not
// system errors. Nothing is persisted when the gateway rejects the card.
func (s *Service) Create(ctx context.Context, owner Owner, raw map[string]any) (*Subscription, error) {
	params := FilterParams(raw)

	if existing, err := s.subs.GetByOwner(ctx, owner.ID); err == nil {
		return nil, &AlreadySubscribedError{Existing: existing}
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	if params.PlanID == nil {
		return nil, &CreateError{Message: "a plan must be selected"}
	}
	plan, err := s.plans.Get(ctx, *params.PlanID)
	if err != nil {
		return nil, err
	}

	couponCode := ""
	if params.CouponCode != nil {
		couponCode = *params.CouponCode
	}

	customerID, err := s.gateway.CreateSubscription(ctx, CreateSubscriptionRequest{
		Email:      owner.Email,
		CardToken:  params.CardToken,
		PlanCode:   plan.GatewayPlanID,
		CouponCode: couponCode,
	})
	if err != nil {
		var declined *DeclinedError
		if errors.As(err, &declined) {
			s.log.DebugContext(ctx, "gateway declined subscription create",
				slog.String("owner_id", owner.ID.String()), slog.String("reason", declined.Message))
			return nil, &CreateError{Message: declined.Message}
		}
		return nil, err
	}

	now := s.now()
	sub := &Subscription{
		ID:                uuid.New(),
		OwnerID:           owner.ID,
		PlanID:            &plan.ID,
		GatewayCustomerID: customerID,
		CurrentPrice:      plan.Price.Amount,
		CardToken:         params.CardToken,
		CardType:          params.CardType,
		LastFour:          params.LastFour,
		CouponCode:        couponCode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if params.CurrentPrice != nil {
		sub.CurrentPrice = *params.CurrentPrice
	}

	if err := s.subs.Save(ctx, sub); err != nil {
		if errors.Is(err, ErrSubscriptionExists) {
			return nil, &CreateError{Message: "a subscription already exists for this account"}
		}
		return nil, &CreateError{Message: err.Error()}
	}

	s.notify(ctx, "created", owner, sub, func(n Notifier) error {
		return n.SubscriptionCreated(ctx, owner, sub)
	})

	return sub, nil
}

// Show returns the subscription plus its resolved discount description.
// Ownership is assumed to be established already (via Guard), so an
// unknown ID is a plain ErrNotFound here. When the coupon code is empty
// no gateway round-trip is made at all.
func (s *Service) Show(ctx context.Context, id uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	view := &SubscriptionView{Subscription: sub}
	if sub.CouponCode == "" || sub.GatewayCustomerID == "" {
		return view, nil
	}

	coupon, err := s.discounts.CustomerDiscount(ctx, sub.GatewayCustomerID)
	if err != nil {
		return nil, err
	}
	view.DiscountMessage = coupon.Message()
	return view, nil
}

// Edit returns the same read-model as Show; it exists so callers can keep
// the show/edit distinction of their routing layer. No mutation.
func (s *Service) Edit(ctx context.Context, id uuid.UUID) (*SubscriptionView, error) {
	return s.Show(ctx, id)
}

// Update applies the permitted attribute changes to the subscription and
// propagates plan, coupon, and payment-method changes to the billing
// gateway. Failures come back as *UpdateError with the remote message and
// a "card" redirect hint so the caller re-renders the form focused on
// payment entry.
func (s *Service) Update(ctx context.Context, sub *Subscription, raw map[string]any) (*Subscription, error) {
	params := FilterParams(raw)

	gwReq := UpdateSubscriptionRequest{CardToken: params.CardToken}

	var plan *Plan
	if params.PlanID != nil {
		var err error
		plan, err = s.plans.Get(ctx, *params.PlanID)
		if err != nil {
			return nil, err
		}
		gwReq.PlanCode = plan.GatewayPlanID
	}
	if params.CouponCode != nil {
		gwReq.CouponCode = *params.CouponCode
	}

	if gwReq.PlanCode != "" || gwReq.CardToken != "" || gwReq.CouponCode != "" {
		if err := s.gateway.UpdateSubscription(ctx, sub.GatewayCustomerID, gwReq); err != nil {
			var declined *DeclinedError
			if errors.As(err, &declined) {
				s.log.DebugContext(ctx, "gateway declined subscription update",
					slog.String("subscription_id", sub.ID.String()), slog.String("reason", declined.Message))
				return nil, &UpdateError{Message: declined.Message, RedirectHint: "card"}
			}
			return nil, err
		}
	}

	updated := *sub
	if plan != nil {
		planID := plan.ID
		updated.PlanID = &planID
		updated.CurrentPrice = plan.Price.Amount
	}
	if params.CurrentPrice != nil {
		updated.CurrentPrice = *params.CurrentPrice
	}
	if params.CardToken != "" {
		updated.CardToken = params.CardToken
	}
	if params.CardType != "" {
		updated.CardType = params.CardType
	}
	if params.LastFour != "" {
		updated.LastFour = params.LastFour
	}
	if params.CouponCode != nil {
		updated.CouponCode = *params.CouponCode
	}
	updated.UpdatedAt = s.now()

	if err := s.subs.Save(ctx, &updated); err != nil {
		return nil, &UpdateError{Message: err.Error(), RedirectHint: "card"}
	}
	return &updated, nil
}

// Cancel clears the subscription's plan reference and cancels the remote
// subscription. The gateway cancellation is verified before the local
// state change is committed; a gateway failure aborts the whole operation
// rather than leaving the remote side billing a locally-cancelled record.
// Cancelling an already-cancelled subscription is a no-op with no gateway
// call, so a second Cancel is always safe.
func (s *Service) Cancel(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if sub.PlanID == nil {
		return sub, nil
	}

	if sub.GatewayCustomerID != "" {
		if err := s.gateway.CancelSubscription(ctx, sub.GatewayCustomerID); err != nil {
			return nil, err
		}
	}

	cancelled := *sub
	cancelled.PlanID = nil
	cancelled.UpdatedAt = s.now()
	if err := s.subs.Save(ctx, &cancelled); err != nil {
		// No user-facing recovery exists for this; escalate.
		return nil, err
	}

	s.notify(ctx, "cancelled", Owner{ID: cancelled.OwnerID}, &cancelled, func(n Notifier) error {
		return n.SubscriptionCancelled(ctx, Owner{ID: cancelled.OwnerID}, &cancelled)
	})

	return &cancelled, nil
}

func (s *Service) notify(ctx context.Context, event string, owner Owner, sub *Subscription, fn func(Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(s.notifier); err != nil {
		s.log.ErrorContext(ctx, "subscription notifier failed",
			slog.String("event", event),
			slog.String("owner_id", owner.ID.String()),
			slog.String("subscription_id", sub.ID.String()),
			slog.Any("error", err))
	}
}
