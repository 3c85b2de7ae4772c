package processor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Fake 进程内的 Stripe 替身，供测试和本地演示使用。
// 对象按调用顺序生成 id，Err 中按操作名注入失败。
type Fake struct {
	mu            sync.Mutex
	mode          string
	webhookSecret string
	seq           int
	calls         map[string]int

	Customers            map[string]*stripe.Customer
	PaymentIntents       map[string]*stripe.PaymentIntent
	CheckoutSessions     map[string]*stripe.CheckoutSession
	Subscriptions        map[string]*stripe.Subscription
	VerificationSessions map[string]*stripe.IdentityVerificationSession

	Err map[string]error

	LastCheckoutParams     *stripe.CheckoutSessionParams
	LastPaymentIntent      *stripe.PaymentIntentParams
	LastSubscriptionParams *stripe.SubscriptionParams
	LastUpdateParams       *stripe.SubscriptionParams
	LastVerificationParams *stripe.IdentityVerificationSessionParams
}

func NewFake(mode, webhookSecret string) *Fake {
	return &Fake{
		mode:                 mode,
		webhookSecret:        webhookSecret,
		calls:                make(map[string]int),
		Customers:            make(map[string]*stripe.Customer),
		PaymentIntents:       make(map[string]*stripe.PaymentIntent),
		CheckoutSessions:     make(map[string]*stripe.CheckoutSession),
		Subscriptions:        make(map[string]*stripe.Subscription),
		VerificationSessions: make(map[string]*stripe.IdentityVerificationSession),
		Err:                  make(map[string]error),
	}
}

// Calls 返回某个操作被调用的次数
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls 返回所有操作的调用总数
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Sign 生成与该环境 webhook secret 匹配的 Stripe-Signature 头
func (f *Fake) Sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    f.webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

func (f *Fake) begin(op string) error {
	f.calls[op]++
	return f.Err[op]
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_fake%d", prefix, f.seq)
}

func missing(kind, id string) error {
	return &stripe.Error{
		Code:           stripe.ErrorCodeResourceMissing,
		HTTPStatusCode: http.StatusNotFound,
		Msg:            fmt.Sprintf("No such %s: '%s'", kind, id),
		Type:           stripe.ErrorTypeInvalidRequest,
	}
}

func (f *Fake) Mode() string { return f.mode }

func (f *Fake) GetCustomer(_ context.Context, id string) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("customer.get"); err != nil {
		return nil, err
	}
	cus, ok := f.Customers[id]
	if !ok {
		return nil, missing("customer", id)
	}
	return cus, nil
}

func (f *Fake) CreateCustomer(_ context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("customer.create"); err != nil {
		return nil, err
	}
	cus := &stripe.Customer{
		ID:       f.nextID("cus"),
		Email:    stripe.StringValue(params.Email),
		Metadata: params.Metadata,
	}
	f.Customers[cus.ID] = cus
	return cus, nil
}

func (f *Fake) CreatePaymentIntent(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("payment_intent.create"); err != nil {
		return nil, err
	}
	f.LastPaymentIntent = params
	id := f.nextID("pi")
	pi := &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       stripe.Int64Value(params.Amount),
		Currency:     stripe.Currency(stripe.StringValue(params.Currency)),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata:     params.Metadata,
	}
	f.PaymentIntents[id] = pi
	return pi, nil
}

func (f *Fake) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("checkout_session.create"); err != nil {
		return nil, err
	}
	f.LastCheckoutParams = params
	id := f.nextID("cs")
	sess := &stripe.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.com/c/pay/" + id,
		Status:        stripe.CheckoutSessionStatusOpen,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		Metadata:      params.Metadata,
	}
	if len(params.LineItems) > 0 && params.LineItems[0].PriceData != nil {
		pd := params.LineItems[0].PriceData
		sess.AmountTotal = stripe.Int64Value(pd.UnitAmount)
		sess.Currency = stripe.Currency(stripe.StringValue(pd.Currency))
	}
	f.CheckoutSessions[id] = sess
	return sess, nil
}

func (f *Fake) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("checkout_session.get"); err != nil {
		return nil, err
	}
	sess, ok := f.CheckoutSessions[id]
	if !ok {
		return nil, missing("checkout.session", id)
	}
	return sess, nil
}

func (f *Fake) CreateSubscription(_ context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("subscription.create"); err != nil {
		return nil, err
	}
	f.LastSubscriptionParams = params
	id := f.nextID("sub")
	items := make([]*stripe.SubscriptionItem, 0, len(params.Items))
	for _, it := range params.Items {
		items = append(items, &stripe.SubscriptionItem{
			ID:    f.nextID("si"),
			Price: &stripe.Price{ID: stripe.StringValue(it.Price)},
		})
	}
	sub := &stripe.Subscription{
		ID:               id,
		Status:           stripe.SubscriptionStatusIncomplete,
		CurrentPeriodEnd: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Items:            &stripe.SubscriptionItemList{Data: items},
		Metadata:         params.Metadata,
		LatestInvoice: &stripe.Invoice{
			ID:            f.nextID("in"),
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_" + id, ClientSecret: "pi_" + id + "_secret"},
		},
	}
	f.Subscriptions[id] = sub
	return sub, nil
}

func (f *Fake) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("subscription.get"); err != nil {
		return nil, err
	}
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, missing("subscription", id)
	}
	return sub, nil
}

func (f *Fake) UpdateSubscription(_ context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("subscription.update"); err != nil {
		return nil, err
	}
	f.LastUpdateParams = params
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, missing("subscription", id)
	}
	for _, it := range params.Items {
		for _, existing := range sub.Items.Data {
			if existing.ID == stripe.StringValue(it.ID) {
				existing.Price = &stripe.Price{ID: stripe.StringValue(it.Price)}
			}
		}
	}
	return sub, nil
}

func (f *Fake) CancelSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("subscription.cancel"); err != nil {
		return nil, err
	}
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, missing("subscription", id)
	}
	sub.Status = stripe.SubscriptionStatusCanceled
	return sub, nil
}

func (f *Fake) CreateVerificationSession(_ context.Context, params *stripe.IdentityVerificationSessionParams) (*stripe.IdentityVerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("verification_session.create"); err != nil {
		return nil, err
	}
	f.LastVerificationParams = params
	id := f.nextID("vs")
	vs := &stripe.IdentityVerificationSession{
		ID:           id,
		ClientSecret: id + "_secret",
		URL:          "https://verify.stripe.com/start/" + id,
		Status:       stripe.IdentityVerificationSessionStatusRequiresInput,
		Metadata:     params.Metadata,
	}
	f.VerificationSessions[id] = vs
	return vs, nil
}

func (f *Fake) GetVerificationSession(_ context.Context, id string) (*stripe.IdentityVerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("verification_session.get"); err != nil {
		return nil, err
	}
	vs, ok := f.VerificationSessions[id]
	if !ok {
		return nil, missing("identity.verification_session", id)
	}
	return vs, nil
}

func (f *Fake) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if f.webhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, signature, f.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
