package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrIgnoredEvent is returned for webhook events that do not change a
// subscription.
var ErrIgnoredEvent = errors.New("ignored webhook event")

// SubscriptionEvent is a verified subscription change for one user.
type SubscriptionEvent struct {
	Type   string
	UserID string
	Status Status
}

// ParseWebhook verifies the signature and extracts the subscription change.
func (c *Client) ParseWebhook(payload []byte, sigHeader string) (*SubscriptionEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	userID := sub.Metadata[MetadataUserID]
	if userID == "" {
		return nil, fmt.Errorf("%w: subscription %s has no %s", ErrIgnoredEvent, sub.ID, MetadataUserID)
	}

	st := StatusOf(&sub)
	if event.Type == "customer.subscription.deleted" {
		st.Active = false
	}
	return &SubscriptionEvent{Type: string(event.Type), UserID: userID, Status: st}, nil
}
