package processor

import (
	"context"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/config"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/metrics"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/identity/verificationsession"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeClient talks to one Stripe environment with that environment's
// secret key and webhook secret.
type StripeClient struct {
	mode          string
	webhookSecret string

	customers      customer.Client
	paymentIntents paymentintent.Client
	checkout       checkoutsession.Client
	subscriptions  subscription.Client
	verifications  verificationsession.Client
}

func NewStripeClient(mode, secretKey, webhookSecret string) (*StripeClient, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	backend := stripe.GetBackend(stripe.APIBackend)
	return &StripeClient{
		mode:           mode,
		webhookSecret:  webhookSecret,
		customers:      customer.Client{B: backend, Key: secretKey},
		paymentIntents: paymentintent.Client{B: backend, Key: secretKey},
		checkout:       checkoutsession.Client{B: backend, Key: secretKey},
		subscriptions:  subscription.Client{B: backend, Key: secretKey},
		verifications:  verificationsession.Client{B: backend, Key: secretKey},
	}, nil
}

// NewStripeRegistry 为每个配置了密钥的环境建立客户端，未配置的环境解析时返回 ErrUnknownMode
func NewStripeRegistry(cfg config.Config) *Registry {
	var clients []Client
	for _, mode := range []string{config.ModeTest, config.ModeLive} {
		keys := cfg.Stripe(mode)
		c, err := NewStripeClient(mode, keys.SecretKey, keys.WebhookSecret)
		if err != nil {
			continue
		}
		clients = append(clients, c)
	}
	return NewRegistry(clients...)
}

func (c *StripeClient) Mode() string { return c.mode }

func (c *StripeClient) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cus, err := c.customers.Get(id, params)
	metrics.ObserveStripeCall("customer.get", c.mode, err)
	return cus, err
}

func (c *StripeClient) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	cus, err := c.customers.New(params)
	metrics.ObserveStripeCall("customer.create", c.mode, err)
	return cus, err
}

func (c *StripeClient) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	pi, err := c.paymentIntents.New(params)
	metrics.ObserveStripeCall("payment_intent.create", c.mode, err)
	return pi, err
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	sess, err := c.checkout.New(params)
	metrics.ObserveStripeCall("checkout_session.create", c.mode, err)
	return sess, err
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.checkout.Get(id, params)
	metrics.ObserveStripeCall("checkout_session.get", c.mode, err)
	return sess, err
}

func (c *StripeClient) CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	sub, err := c.subscriptions.New(params)
	metrics.ObserveStripeCall("subscription.create", c.mode, err)
	return sub, err
}

func (c *StripeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.subscriptions.Get(id, params)
	metrics.ObserveStripeCall("subscription.get", c.mode, err)
	return sub, err
}

func (c *StripeClient) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	sub, err := c.subscriptions.Update(id, params)
	metrics.ObserveStripeCall("subscription.update", c.mode, err)
	return sub, err
}

func (c *StripeClient) CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	sub, err := c.subscriptions.Cancel(id, params)
	metrics.ObserveStripeCall("subscription.cancel", c.mode, err)
	return sub, err
}

func (c *StripeClient) CreateVerificationSession(ctx context.Context, params *stripe.IdentityVerificationSessionParams) (*stripe.IdentityVerificationSession, error) {
	params.Context = ctx
	vs, err := c.verifications.New(params)
	metrics.ObserveStripeCall("verification_session.create", c.mode, err)
	return vs, err
}

func (c *StripeClient) GetVerificationSession(ctx context.Context, id string) (*stripe.IdentityVerificationSession, error) {
	params := &stripe.IdentityVerificationSessionParams{}
	params.Context = ctx
	vs, err := c.verifications.Get(id, params)
	metrics.ObserveStripeCall("verification_session.get", c.mode, err)
	return vs, err
}

func (c *StripeClient) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
