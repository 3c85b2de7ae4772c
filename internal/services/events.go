package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"

	"github.com/stripe/stripe-go/v76"
)

type EventKind string

const (
	KindPaymentSucceeded      EventKind = "payment_succeeded"
	KindPaymentFailed         EventKind = "payment_failed"
	KindSubscriptionChanged   EventKind = "subscription_changed"
	KindCheckoutCompleted     EventKind = "checkout_completed"
	KindIdentityStatusChanged EventKind = "identity_status_changed"
	KindIgnored               EventKind = "ignored"
)

// WebhookEvent 是解码后的 Stripe 事件，只有本文件中的几种类型
type WebhookEvent interface {
	Kind() EventKind
	webhookEvent()
}

type PaymentSucceeded struct {
	PaymentIntentID string
	UserID          string
	Amount          int64
	Currency        string
	Type            string
}

type PaymentFailed struct {
	PaymentIntentID string
}

type SubscriptionChanged struct {
	SubscriptionID   string
	UserID           string
	Status           string
	PlanID           string
	CurrentPeriodEnd time.Time
}

type CheckoutCompleted struct {
	SessionID   string
	UserID      string
	Type        string
	AmountTotal int64
	Currency    string
}

// IsVerificationPurchase 支付页是否为一次性认证费用
func (e CheckoutCompleted) IsVerificationPurchase() bool {
	return e.UserID != "" && e.Type == models.PaymentTypeOneTimeVerification
}

type IdentityStatusChanged struct {
	SessionID string
	UserID    string
	// Status 为 verified / requires_input / processing / failed
	Status string
}

type Ignored struct {
	Type string
}

func (PaymentSucceeded) Kind() EventKind      { return KindPaymentSucceeded }
func (PaymentFailed) Kind() EventKind         { return KindPaymentFailed }
func (SubscriptionChanged) Kind() EventKind   { return KindSubscriptionChanged }
func (CheckoutCompleted) Kind() EventKind     { return KindCheckoutCompleted }
func (IdentityStatusChanged) Kind() EventKind { return KindIdentityStatusChanged }
func (Ignored) Kind() EventKind               { return KindIgnored }

func (PaymentSucceeded) webhookEvent()      {}
func (PaymentFailed) webhookEvent()         {}
func (SubscriptionChanged) webhookEvent()   {}
func (CheckoutCompleted) webhookEvent()     {}
func (IdentityStatusChanged) webhookEvent() {}
func (Ignored) webhookEvent()               {}

// identity.verification_session.* 事件到本地状态的映射
var identityStatuses = map[string]string{
	"identity.verification_session.verified":       models.VerificationVerified,
	"identity.verification_session.requires_input": models.VerificationRequiresInput,
	"identity.verification_session.processing":     models.VerificationProcessing,
	"identity.verification_session.canceled":       models.VerificationFailed,
	"identity.verification_session.redacted":       models.VerificationFailed,
}

type rawPaymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type rawSubscription struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type rawCheckoutSession struct {
	ID          string            `json:"id"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

type rawVerificationSession struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// DecodeEvent 把已验签的 Stripe 事件解码为 WebhookEvent。未处理的类型返回 Ignored。
func DecodeEvent(evt stripe.Event) (WebhookEvent, error) {
	eventType := string(evt.Type)
	if evt.Data == nil {
		if isHandled(eventType) {
			return nil, fmt.Errorf("%w: event %s has no data", ErrInvalidRequest, evt.ID)
		}
		return Ignored{Type: eventType}, nil
	}
	raw := evt.Data.Raw

	switch eventType {
	case "payment_intent.succeeded":
		var pi rawPaymentIntent
		if err := decodeObject(raw, eventType, &pi); err != nil {
			return nil, err
		}
		paymentType := pi.Metadata["type"]
		if paymentType == "" {
			paymentType = models.PaymentTypeUnknown
		}
		return PaymentSucceeded{
			PaymentIntentID: pi.ID,
			UserID:          pi.Metadata["userId"],
			Amount:          pi.Amount,
			Currency:        pi.Currency,
			Type:            paymentType,
		}, nil

	case "payment_intent.payment_failed":
		var pi rawPaymentIntent
		if err := decodeObject(raw, eventType, &pi); err != nil {
			return nil, err
		}
		return PaymentFailed{PaymentIntentID: pi.ID}, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub rawSubscription
		if err := decodeObject(raw, eventType, &sub); err != nil {
			return nil, err
		}
		ev := SubscriptionChanged{
			SubscriptionID: sub.ID,
			UserID:         sub.Metadata["userId"],
			Status:         sub.Status,
		}
		if len(sub.Items.Data) > 0 {
			ev.PlanID = sub.Items.Data[0].Price.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			ev.CurrentPeriodEnd = periodEnd(sub.CurrentPeriodEnd)
		}
		return ev, nil

	case "checkout.session.completed":
		var sess rawCheckoutSession
		if err := decodeObject(raw, eventType, &sess); err != nil {
			return nil, err
		}
		return CheckoutCompleted{
			SessionID:   sess.ID,
			UserID:      sess.Metadata["userId"],
			Type:        sess.Metadata["type"],
			AmountTotal: sess.AmountTotal,
			Currency:    sess.Currency,
		}, nil
	}

	if status, ok := identityStatuses[eventType]; ok {
		var vs rawVerificationSession
		if err := decodeObject(raw, eventType, &vs); err != nil {
			return nil, err
		}
		return IdentityStatusChanged{SessionID: vs.ID, UserID: vs.Metadata["userId"], Status: status}, nil
	}

	return Ignored{Type: eventType}, nil
}

func isHandled(eventType string) bool {
	switch eventType {
	case "payment_intent.succeeded", "payment_intent.payment_failed",
		"customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted",
		"checkout.session.completed":
		return true
	}
	_, ok := identityStatuses[eventType]
	return ok
}

type objectID interface {
	objectID() string
}

func (o *rawPaymentIntent) objectID() string       { return o.ID }
func (o *rawSubscription) objectID() string        { return o.ID }
func (o *rawCheckoutSession) objectID() string     { return o.ID }
func (o *rawVerificationSession) objectID() string { return o.ID }

func decodeObject(raw json.RawMessage, eventType string, v objectID) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidRequest, eventType, err)
	}
	if v.objectID() == "" {
		return fmt.Errorf("%w: %s object has no id", ErrInvalidRequest, eventType)
	}
	return nil
}
