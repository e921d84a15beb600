// Package billing talks to Stripe for the pro subscription: checkout,
// status lookup, cancellation and webhook verification.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
)

// ErrInvalidUser is returned for user ids that cannot be used in a search.
var ErrInvalidUser = errors.New("invalid user id")

// MetadataUserID links a Stripe subscription to the identity provider user.
const MetadataUserID = "user_id"

type Config struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Configured reports whether checkout can be offered.
func (c Config) Configured() bool {
	return c.SecretKey != "" && c.PriceID != ""
}

// Status is a user's subscription as Stripe reports it.
type Status struct {
	Active            bool       `json:"active"`
	SubscriptionID    string     `json:"subscription_id,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

type Client struct {
	cfg Config

	newCheckout func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	searchSubs  func(*stripe.SubscriptionSearchParams) ([]*stripe.Subscription, error)
	updateSub   func(string, *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// NewClient returns nil when Stripe is not configured.
func NewClient(cfg Config) *Client {
	if !cfg.Configured() {
		return nil
	}
	stripe.Key = cfg.SecretKey
	return &Client{
		cfg:         cfg,
		newCheckout: checksession.New,
		searchSubs: func(p *stripe.SubscriptionSearchParams) ([]*stripe.Subscription, error) {
			var out []*stripe.Subscription
			iter := subscription.Search(p)
			for iter.Next() {
				out = append(out, iter.Subscription())
			}
			return out, iter.Err()
		},
		updateSub: subscription.Update,
	}
}

// CreateCheckoutSession starts a subscription checkout for userID and returns
// the URL to redirect the browser to.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID string) (string, error) {
	if err := checkUserID(userID); err != nil {
		return "", err
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: userID},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(c.cfg.SuccessURL),
		CancelURL:           stripe.String(c.cfg.CancelURL),
	}
	params.Context = ctx

	sess, err := c.newCheckout(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CheckSubscriptionStatus reports the user's live subscription, if any.
func (c *Client) CheckSubscriptionStatus(ctx context.Context, userID string) (Status, error) {
	sub, err := c.findLive(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if sub == nil {
		return Status{}, nil
	}
	return StatusOf(sub), nil
}

// CancelSubscription cancels the user's subscription at the end of the
// current period. It reports false when there is nothing to cancel.
func (c *Client) CancelSubscription(ctx context.Context, userID string) (bool, error) {
	sub, err := c.findLive(ctx, userID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	if _, err := c.updateSub(sub.ID, params); err != nil {
		return false, fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
	}
	return true, nil
}

// findLive returns the newest active or trialing subscription for userID.
func (c *Client) findLive(ctx context.Context, userID string) (*stripe.Subscription, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	params := &stripe.SubscriptionSearchParams{}
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", MetadataUserID, userID)
	params.Context = ctx

	subs, err := c.searchSubs(params)
	if err != nil {
		return nil, fmt.Errorf("search subscriptions: %w", err)
	}

	var live *stripe.Subscription
	for _, s := range subs {
		if !isLive(s.Status) {
			continue
		}
		if live == nil || s.Created > live.Created {
			live = s
		}
	}
	return live, nil
}

func isLive(s stripe.SubscriptionStatus) bool {
	return s == stripe.SubscriptionStatusActive || s == stripe.SubscriptionStatusTrialing
}

// StatusOf converts a Stripe subscription. The billing period end lives on
// the subscription items.
func StatusOf(sub *stripe.Subscription) Status {
	st := Status{
		Active:            isLive(sub.Status),
		SubscriptionID:    sub.ID,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil {
		var end int64
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
		if end > 0 {
			t := time.Unix(end, 0).UTC()
			st.CurrentPeriodEnd = &t
		}
	}
	return st
}

func checkUserID(userID string) error {
	if userID == "" || strings.ContainsAny(userID, `'\`) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}
