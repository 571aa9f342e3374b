// Package subscription implements an access guard and a subscription
// lifecycle service on top of a remote billing gateway.
//
// Two collaborating pieces make up the package. The Guard resolves which
// authenticated principal may act on which subscription: ownership
// mismatches and lookups of records the caller does not own both fail
// with ErrUnauthorized, deliberately indistinguishable so the existence
// of somebody else's subscription never leaks. The Service owns the
// lifecycle operations (list, prepare, create, show, edit, update,
// cancel), delegates payment work to a BillingGateway, and derives
// human-readable discount descriptions from the gateway's coupon data.
//
// A request flows through an ordered pipeline: guard resolution, then
// resource loading, then operation dispatch; each stage short-circuits
// the rest on failure.
//
// # Quick start
//
//	plans := subscription.NewMemoryPlanStore(subscription.Plan{
//		ID:            uuid.New(),
//		Name:          "Starter",
//		GatewayPlanID: "price_starter_monthly",
//		Price:         subscription.Money{Amount: 900, Currency: "USD"},
//		DisplayOrder:  1,
//	})
//	subs := subscription.NewMemorySubscriptionStore()
//
//	gateway, err := subscription.NewStripeGateway(subscription.StripeConfig{APIKey: apiKey})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	svc := subscription.NewService(subscription.Config{OwnerEntity: "user"},
//		plans, subs, gateway,
//		subscription.WithIdentityProvider(sessions),
//	)
//	guard := subscription.NewGuard(subs)
//
// Production deployments swap the memory stores for the PostgreSQL or
// MongoDB implementations, can load the plan catalog from YAML with
// LoadPlansFile, and may wrap the gateway's discount lookup with
// NewCachedDiscounts to keep show/edit renders off the gateway.
//
// # Error handling
//
// Failures split into three classes. ErrUnauthorized, ErrNotFound,
// ErrPlanNotFound, and ErrGatewayUnavailable are terminal for the
// request. CreateError and UpdateError are recoverable user-input
// outcomes (a declined card is not a system error) carrying the remote
// message verbatim for re-display; UpdateError additionally hints that
// the payment form should be re-rendered. ErrIdentityProviderRequired is
// a startup-time misconfiguration and should crash the process, not the
// request.
package subscription
