package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle portal provider.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PortalLink is a pre-authenticated, short-lived customer portal session.
// UpdatePaymentURL deep-links straight into payment-method entry, which is
// what the update-failed "re-collect card" flow redirects to.
type PortalLink struct {
	URL              string
	UpdatePaymentURL string
	CancelURL        string
	ExpiresAt        time.Time
}

// PortalLinker produces hosted payment-management links for a gateway
// customer. Optional: deployments without a hosted portal simply redirect
// back to their own card form.
type PortalLinker interface {
	PaymentUpdateLink(ctx context.Context, customerID string, subscriptionIDs ...string) (*PortalLink, error)
}

// PaddlePortal implements PortalLinker on Paddle's customer portal
// sessions, for deployments that collect cards through Paddle's hosted
// pages instead of raw tokens.
type PaddlePortal struct {
	client *paddle.SDK
}

// NewPaddlePortal creates a Paddle-backed portal link provider.
func NewPaddlePortal(cfg PaddleConfig) (*PaddlePortal, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("subscription: paddle API key is required")
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("subscription: invalid paddle environment %q", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("subscription: failed to create paddle client: %w", err)
	}

	return &PaddlePortal{client: client}, nil
}

// PaymentUpdateLink opens a customer portal session and returns its URLs.
// When subscription IDs are given, Paddle also returns per-subscription
// deep links for cancelling and updating the payment method.
func (p *PaddlePortal) PaymentUpdateLink(ctx context.Context, customerID string, subscriptionIDs ...string) (*PortalLink, error) {
	if customerID == "" {
		return nil, errors.New("subscription: gateway customer ID is required")
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID:      customerID,
		SubscriptionIDs: subscriptionIDs,
	})
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}

	link := &PortalLink{
		URL: session.URLs.General.Overview,
		// Paddle portal sessions are short-lived.
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	for _, subURL := range session.URLs.Subscriptions {
		if len(subscriptionIDs) > 0 && subURL.ID != subscriptionIDs[0] {
			continue
		}
		link.CancelURL = subURL.CancelSubscription
		link.UpdatePaymentURL = subURL.UpdateSubscriptionPaymentMethod
		break
	}

	if link.URL == "" && link.UpdatePaymentURL == "" {
		return nil, errors.New("subscription: no portal URL returned from paddle")
	}
	return link, nil
}
