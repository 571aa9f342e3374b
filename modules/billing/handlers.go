package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/subkit/subkit/pkg/subscription"
)

func (m *Module) handleIndex(w http.ResponseWriter, r *http.Request) {
	var ownerID *uuid.UUID
	if principal, ok := m.identity.CurrentPrincipal(r.Context()); ok {
		ownerID = &principal.ID
	}

	result, err := m.svc.ListOrPrepare(r.Context(), ownerID)
	if err != nil {
		m.writeError(w, r, err)
		return
	}
	if result.Existing != nil {
		http.Redirect(w, r, m.editPath(result.Existing), http.StatusSeeOther)
		return
	}
	m.writeJSON(w, http.StatusOK, map[string]any{
		"plans": result.Plans,
		"draft": result.Draft,
	})
}

func (m *Module) handleNew(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := m.resolveOwner(w, r)
	if !ok {
		return
	}

	planID, err := uuid.Parse(r.URL.Query().Get("plan"))
	if err != nil {
		m.writeError(w, r, subscription.ErrPlanNotFound)
		return
	}

	draft, err := m.svc.PrepareNew(r.Context(), ownerID, planID)
	if err != nil {
		if errors.Is(err, subscription.ErrSignUpRequired) {
			// Carry the chosen plan through registration so the visitor
			// lands back on this form afterwards.
			target := m.signUpURL
			if target != "" {
				target += "?return_to=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		m.writeError(w, r, err)
		return
	}
	m.writeJSON(w, http.StatusOK, map[string]any{"subscription": draft})
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, principal, ok := m.resolveOwner(w, r)
	if !ok {
		return
	}
	if ownerID == nil || principal == nil {
		m.writeError(w, r, subscription.ErrUnauthorized)
		return
	}

	raw, err := decodePayload(r)
	if err != nil {
		m.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed payload"})
		return
	}

	owner := subscription.Owner{ID: *ownerID, Email: principal.Email}
	sub, err := m.svc.Create(r.Context(), owner, raw)
	if err != nil {
		var already *subscription.AlreadySubscribedError
		if errors.As(err, &already) {
			http.Redirect(w, r, m.showPath(already.Existing), http.StatusSeeOther)
			return
		}
		m.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, m.showPath(sub), http.StatusSeeOther)
}

func (m *Module) handleShow(w http.ResponseWriter, r *http.Request) {
	view, ok := m.loadView(w, r, m.svc.Show)
	if !ok {
		return
	}
	m.writeView(w, view)
}

func (m *Module) handleEdit(w http.ResponseWriter, r *http.Request) {
	view, ok := m.loadView(w, r, m.svc.Edit)
	if !ok {
		return
	}
	m.writeView(w, view)
}

func (m *Module) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sub, ok := m.loadOwned(w, r)
	if !ok {
		return
	}

	raw, err := decodePayload(r)
	if err != nil {
		m.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed payload"})
		return
	}

	updated, err := m.svc.Update(r.Context(), sub, raw)
	if err != nil {
		var failed *subscription.UpdateError
		if errors.As(err, &failed) {
			http.Redirect(w, r, m.recollectCardPath(r.Context(), sub, failed), http.StatusSeeOther)
			return
		}
		m.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, m.showPath(updated), http.StatusSeeOther)
}

func (m *Module) handleCancel(w http.ResponseWriter, r *http.Request) {
	sub, ok := m.loadOwned(w, r)
	if !ok {
		return
	}

	cancelled, err := m.svc.Cancel(r.Context(), sub)
	if err != nil {
		m.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, m.showPath(cancelled), http.StatusSeeOther)
}

// resolveOwner runs the guard's owner stage for owner-scoped routes. The
// boolean is false when a response has already been written.
func (m *Module) resolveOwner(w http.ResponseWriter, r *http.Request) (*uuid.UUID, *subscription.Principal, bool) {
	var principal *subscription.Principal
	if p, ok := m.identity.CurrentPrincipal(r.Context()); ok {
		principal = p
	}

	param := chi.URLParam(r, "ownerID")
	if param == "" {
		return nil, principal, true
	}
	requested, err := uuid.Parse(param)
	if err != nil {
		m.writeError(w, r, subscription.ErrUnauthorized)
		return nil, nil, false
	}

	owner, err := m.guard.ResolveOwner(&requested, principal)
	if err != nil {
		m.writeError(w, r, err)
		return nil, nil, false
	}
	return &owner.ID, principal, true
}

// loadOwned runs both guard stages and returns the target subscription.
func (m *Module) loadOwned(w http.ResponseWriter, r *http.Request) (*subscription.Subscription, bool) {
	ownerID, _, ok := m.resolveOwner(w, r)
	if !ok {
		return nil, false
	}
	if ownerID == nil {
		m.writeError(w, r, subscription.ErrUnauthorized)
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		m.writeError(w, r, subscription.ErrUnauthorized)
		return nil, false
	}

	sub, err := m.guard.LoadSubscription(r.Context(), id, *ownerID)
	if err != nil {
		m.writeError(w, r, err)
		return nil, false
	}
	return sub, true
}

func (m *Module) loadView(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*subscription.SubscriptionView, error)) (*subscription.SubscriptionView, bool) {
	sub, ok := m.loadOwned(w, r)
	if !ok {
		return nil, false
	}
	view, err := op(r.Context(), sub.ID)
	if err != nil {
		m.writeError(w, r, err)
		return nil, false
	}
	return view, true
}

// recollectCardPath builds the redirect target for failed updates: the
// hosted portal's payment-method page when a portal is wired, otherwise
// the module's own edit form flagged to re-render focused on card entry.
func (m *Module) recollectCardPath(ctx context.Context, sub *subscription.Subscription, failed *subscription.UpdateError) string {
	if m.portal != nil && sub.GatewayCustomerID != "" {
		if link, err := m.portal.PaymentUpdateLink(ctx, sub.GatewayCustomerID); err == nil && link.UpdatePaymentURL != "" {
			return link.UpdatePaymentURL
		} else if err != nil {
			m.log.Warn("portal link unavailable, falling back to edit form",
				slog.String("subscription_id", sub.ID.String()), slog.Any("error", err))
		}
	}

	q := url.Values{}
	q.Set("update", failed.RedirectHint)
	q.Set("error", failed.Message)
	return m.editPath(sub) + "?" + q.Encode()
}

func (m *Module) showPath(sub *subscription.Subscription) string {
	return fmt.Sprintf("/%s/subscriptions/%s", sub.OwnerID, sub.ID)
}

func (m *Module) editPath(sub *subscription.Subscription) string {
	return m.showPath(sub) + "/edit"
}

func (m *Module) writeView(w http.ResponseWriter, view *subscription.SubscriptionView) {
	payload := map[string]any{"subscription": view.Subscription}
	if view.DiscountMessage != "" {
		payload["discount"] = view.DiscountMessage
	}
	m.writeJSON(w, http.StatusOK, payload)
}

func (m *Module) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		m.log.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError maps the service error taxonomy onto HTTP statuses.
// Recoverable user-input failures answer 422 with the message for
// re-display; they are never logged as errors.
func (m *Module) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var createFailed *subscription.CreateError
	var updateFailed *subscription.UpdateError

	switch {
	case errors.Is(err, subscription.ErrUnauthorized):
		m.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	case errors.Is(err, subscription.ErrNotFound),
		errors.Is(err, subscription.ErrPlanNotFound):
		m.writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	case errors.As(err, &createFailed):
		m.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": createFailed.Message})
	case errors.As(err, &updateFailed):
		m.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": updateFailed.Message})
	case errors.Is(err, subscription.ErrGatewayUnavailable):
		m.log.Error("billing gateway unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
		m.writeJSON(w, http.StatusBadGateway, map[string]any{"error": "billing service unavailable"})
	default:
		m.log.Error("billing request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		m.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

// decodePayload accepts either a JSON body or a form post. A top-level
// "subscription" object, when present, is unwrapped; attribute filtering
// itself happens in the service layer.
func decodePayload(r *http.Request) (map[string]any, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		if nested, ok := raw["subscription"].(map[string]any); ok {
			return nested, nil
		}
		return raw, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	raw := make(map[string]any, len(r.PostForm))
	for key := range r.PostForm {
		name := key
		// Rails-style nesting: subscription[plan_id]=...
		if strings.HasPrefix(key, "subscription[") && strings.HasSuffix(key, "]") {
			name = key[len("subscription[") : len(key)-1]
		}
		raw[name] = r.PostForm.Get(key)
	}
	return raw, nil
}
