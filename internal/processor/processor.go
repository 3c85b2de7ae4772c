// Package processor resolves a Stripe environment (test or live) to a client
// bound to that environment's keys. There is no package-level default client.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
)

var (
	ErrUnknownMode   = errors.New("unknown stripe mode")
	ErrNotConfigured = errors.New("stripe not configured")
)

// Client is the subset of the Stripe API the services use, bound to one
// environment.
type Client interface {
	Mode() string

	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)

	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)

	CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error)

	CreateVerificationSession(ctx context.Context, params *stripe.IdentityVerificationSessionParams) (*stripe.IdentityVerificationSession, error)
	GetVerificationSession(ctx context.Context, id string) (*stripe.IdentityVerificationSession, error)

	// ConstructEvent verifies the Stripe-Signature header against this
	// environment's webhook secret and parses the event.
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// Resolver hands out the client for an explicit environment.
type Resolver interface {
	Client(mode string) (Client, error)
}

// Registry is a fixed set of environment clients.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Mode()] = c
	}
	return r
}

func (r *Registry) Client(mode string) (Client, error) {
	c, ok := r.clients[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return c, nil
}

// IsNotFound reports whether Stripe said the requested object does not exist
// in the environment the call was made against.
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound
}
