// Package billing exposes the subscription lifecycle over HTTP. Routes
// mirror the owner-scoped resource layout the service expects: the guard
// resolves the acting owner first, then the target subscription, then the
// operation runs. Handlers speak JSON and redirects only; page rendering
// belongs to the embedding application.
package billing

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/subkit/subkit/pkg/subscription"
)

// Options configures the billing module.
type Options struct {
	Service  *subscription.Service
	Guard    *subscription.Guard
	Identity subscription.IdentityProvider

	// Portal produces hosted payment-method update links for the
	// update-failed flow. Optional; without it the module redirects back
	// to its own edit form.
	Portal subscription.PortalLinker

	// SignUpURL is where anonymous visitors are sent to register before
	// subscribing.
	SignUpURL string

	Logger *slog.Logger
}

// Module holds the wired handlers. Construct with New and mount the
// Router under a path of your choice.
type Module struct {
	svc       *subscription.Service
	guard     *subscription.Guard
	identity  subscription.IdentityProvider
	portal    subscription.PortalLinker
	signUpURL string
	log       *slog.Logger
}

// New creates the billing module. Service, Guard, and Identity are
// required; an HTTP surface without sessions cannot resolve owners, so a
// missing identity provider is the fatal misconfiguration the service
// layer describes and panics here, at startup.
func New(opts Options) *Module {
	if opts.Service == nil {
		panic("billing: subscription service is required")
	}
	if opts.Guard == nil {
		panic("billing: access guard is required")
	}
	if opts.Identity == nil {
		panic("billing: identity provider is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Module{
		svc:       opts.Service,
		guard:     opts.Guard,
		identity:  opts.Identity,
		portal:    opts.Portal,
		signUpURL: opts.SignUpURL,
		log:       log,
	}
}

// Router returns the module's route tree:
//
//	GET  /plans                                   pricing page data
//	GET  /subscriptions/new?plan={id}             draft for anonymous visitors
//	GET  /{ownerID}/subscriptions/new?plan={id}   draft for a plan
//	POST /{ownerID}/subscriptions                 create
//	GET  /{ownerID}/subscriptions/{id}            show
//	GET  /{ownerID}/subscriptions/{id}/edit       edit
//	PUT  /{ownerID}/subscriptions/{id}            update
//	POST /{ownerID}/subscriptions/{id}/cancel     cancel
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/plans", m.handleIndex)
	r.Get("/subscriptions/new", m.handleNew)

	r.Route("/{ownerID}/subscriptions", func(r chi.Router) {
		r.Get("/new", m.handleNew)
		r.Post("/", m.handleCreate)
		r.Get("/{id}", m.handleShow)
		r.Get("/{id}/edit", m.handleEdit)
		r.Put("/{id}", m.handleUpdate)
		r.Post("/{id}/cancel", m.handleCancel)
	})

	return r
}
