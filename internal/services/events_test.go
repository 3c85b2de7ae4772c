package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func stripeEvent(t *testing.T, eventType string, object any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{ID: "evt_1", Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func TestDecodeEvent(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		object    map[string]any
		want      WebhookEvent
	}{
		{
			name:      "payment succeeded",
			eventType: "payment_intent.succeeded",
			object: map[string]any{
				"id": "pi_1", "amount": 49900, "currency": "inr",
				"metadata": map[string]string{"userId": "u1", "type": "ONE_TIME_VERIFICATION"},
			},
			want: PaymentSucceeded{PaymentIntentID: "pi_1", UserID: "u1", Amount: 49900, Currency: "inr", Type: models.PaymentTypeOneTimeVerification},
		},
		{
			name:      "payment succeeded without metadata",
			eventType: "payment_intent.succeeded",
			object:    map[string]any{"id": "pi_2", "amount": 100, "currency": "usd"},
			want:      PaymentSucceeded{PaymentIntentID: "pi_2", Amount: 100, Currency: "usd", Type: models.PaymentTypeUnknown},
		},
		{
			name:      "payment failed",
			eventType: "payment_intent.payment_failed",
			object:    map[string]any{"id": "pi_3"},
			want:      PaymentFailed{PaymentIntentID: "pi_3"},
		},
		{
			name:      "subscription updated",
			eventType: "customer.subscription.updated",
			object: map[string]any{
				"id": "sub_1", "status": "active", "current_period_end": 1767225600,
				"metadata": map[string]string{"userId": "u1"},
				"items":    map[string]any{"data": []any{map[string]any{"id": "si_1", "price": map[string]any{"id": "price_a"}}}},
			},
			want: SubscriptionChanged{
				SubscriptionID:   "sub_1",
				UserID:           "u1",
				Status:           "active",
				PlanID:           "price_a",
				CurrentPeriodEnd: time.Unix(1767225600, 0).UTC(),
			},
		},
		{
			name:      "subscription deleted without items",
			eventType: "customer.subscription.deleted",
			object:    map[string]any{"id": "sub_2", "status": "canceled"},
			want:      SubscriptionChanged{SubscriptionID: "sub_2", Status: "canceled"},
		},
		{
			name:      "checkout completed",
			eventType: "checkout.session.completed",
			object: map[string]any{
				"id": "cs_1", "amount_total": 49900, "currency": "inr",
				"metadata": map[string]string{"userId": "u1", "type": "ONE_TIME_VERIFICATION"},
			},
			want: CheckoutCompleted{SessionID: "cs_1", UserID: "u1", Type: models.PaymentTypeOneTimeVerification, AmountTotal: 49900, Currency: "inr"},
		},
		{
			name:      "identity verified",
			eventType: "identity.verification_session.verified",
			object:    map[string]any{"id": "vs_1", "metadata": map[string]string{"userId": "u1"}},
			want:      IdentityStatusChanged{SessionID: "vs_1", UserID: "u1", Status: models.VerificationVerified},
		},
		{
			name:      "identity redacted",
			eventType: "identity.verification_session.redacted",
			object:    map[string]any{"id": "vs_2", "metadata": map[string]string{"userId": "u1"}},
			want:      IdentityStatusChanged{SessionID: "vs_2", UserID: "u1", Status: models.VerificationFailed},
		},
		{
			name:      "unhandled type",
			eventType: "invoice.paid",
			object:    map[string]any{"id": "in_1"},
			want:      Ignored{Type: "invoice.paid"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeEvent(stripeEvent(t, tc.eventType, tc.object))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeEventRejectsMalformedObjects(t *testing.T) {
	_, err := DecodeEvent(stripeEvent(t, "payment_intent.succeeded", map[string]any{"amount": 100}))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = DecodeEvent(stripeEvent(t, "checkout.session.completed", []string{"not", "an", "object"}))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = DecodeEvent(stripe.Event{ID: "evt_2", Type: "payment_intent.payment_failed"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	got, err := DecodeEvent(stripe.Event{ID: "evt_3", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, got.Kind())
}

func TestCheckoutCompletedIsVerificationPurchase(t *testing.T) {
	assert.True(t, CheckoutCompleted{UserID: "u1", Type: models.PaymentTypeOneTimeVerification}.IsVerificationPurchase())
	assert.False(t, CheckoutCompleted{Type: models.PaymentTypeOneTimeVerification}.IsVerificationPurchase())
	assert.False(t, CheckoutCompleted{UserID: "u1", Type: models.PaymentTypeOneTime}.IsVerificationPurchase())
}
