package subscription

import (
	"context"
	"fmt"

	"github.com/subkit/subkit/pkg/email"
)

// EmailNotifier sends owners a short transactional email when their
// subscription is created or cancelled. It is deliberately thin: wording
// changes belong to the email templates of the embedding application.
type EmailNotifier struct {
	sender email.Sender
}

// NewEmailNotifier creates a Notifier backed by the given email sender.
func NewEmailNotifier(sender email.Sender) *EmailNotifier {
	if sender == nil {
		panic("subscription: email sender is required")
	}
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) SubscriptionCreated(ctx context.Context, owner Owner, sub *Subscription) error {
	if owner.Email == "" {
		return nil
	}
	return n.sender.Send(ctx, email.Message{
		To:       owner.Email,
		Subject:  "Your subscription is active",
		BodyHTML: fmt.Sprintf("<p>You've been successfully upgraded. Your card ending in %s will be billed automatically.</p>", sub.LastFour),
		Tag:      "subscription-created",
	})
}

func (n *EmailNotifier) SubscriptionCancelled(ctx context.Context, owner Owner, sub *Subscription) error {
	if owner.Email == "" {
		return nil
	}
	return n.sender.Send(ctx, email.Message{
		To:       owner.Email,
		Subject:  "Your subscription has been cancelled",
		BodyHTML: "<p>You've successfully cancelled your subscription. You will not be billed again.</p>",
		Tag:      "subscription-cancelled",
	})
}
