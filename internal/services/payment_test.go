package services

import (
	"context"
	"errors"
	"testing"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func checkoutRequest(userID, role, country string) CheckoutRequest {
	return CheckoutRequest{
		UserID:     userID,
		Email:      userID + "@example.com",
		Role:       role,
		Country:    country,
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	svc, store, fake := newTestService(t)

	res, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest("u1", "JOB_SEEKER", "IN"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.URL)
	require.Contains(t, fake.CheckoutSessions, res.SessionID)

	params := fake.LastCheckoutParams
	require.NotNil(t, params)
	assert.Equal(t, string(stripe.CheckoutSessionModePayment), stripe.StringValue(params.Mode))
	require.Len(t, params.LineItems, 1)
	price := params.LineItems[0].PriceData
	assert.Equal(t, int64(49900), stripe.Int64Value(price.UnitAmount))
	assert.Equal(t, "inr", stripe.StringValue(price.Currency))
	assert.Equal(t, "JOB SEEKER Identity Verification", stripe.StringValue(price.ProductData.Name))
	assert.Equal(t, "One-time KYC verification fee for IN", stripe.StringValue(price.ProductData.Description))
	want := map[string]string{"userId": "u1", "type": models.PaymentTypeOneTimeVerification}
	assert.Equal(t, want, params.Metadata)
	assert.Equal(t, want, params.PaymentIntentData.Metadata)

	var payment models.Payment
	decodeDoc(t, store, models.CollectionPayments, res.SessionID, &payment)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, models.PaymentTypeOneTimeVerification, payment.Type)
	assert.Equal(t, int64(49900), payment.Amount)
	assert.Equal(t, "inr", payment.Currency)
	assert.Equal(t, "u1", payment.UserID)
}

func TestCreateCheckoutSessionFallsBackForUnknownRole(t *testing.T) {
	svc, _, fake := newTestService(t)

	_, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest("u2", "ASTRONAUT", "FR"))
	require.NoError(t, err)
	price := fake.LastCheckoutParams.LineItems[0].PriceData
	assert.Equal(t, int64(2000), stripe.Int64Value(price.UnitAmount))
	assert.Equal(t, "usd", stripe.StringValue(price.Currency))
}

func TestCreateCheckoutSessionUpstreamFailure(t *testing.T) {
	svc, store, fake := newTestService(t)
	fake.Err["checkout_session.create"] = &stripe.Error{Code: stripe.ErrorCodeParameterInvalidEmpty, HTTPStatusCode: 400}

	_, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest("u1", "JOB_SEEKER", "IN"))
	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "checkout_session.create", upstreamErr.Op)

	docs, err := store.Query(context.Background(), models.CollectionPayments, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCreatePaymentIntent(t *testing.T) {
	svc, store, fake := newTestService(t)

	res, err := svc.CreatePaymentIntent(context.Background(), PaymentIntentRequest{
		UserID: "u3", Email: "u3@example.com", Role: "STUDENT", Country: "us",
	})
	require.NoError(t, err)
	assert.Equal(t, res.PaymentIntentID+"_secret", res.ClientSecret)

	params := fake.LastPaymentIntent
	assert.Equal(t, int64(500), stripe.Int64Value(params.Amount))
	assert.Equal(t, "usd", stripe.StringValue(params.Currency))
	assert.True(t, stripe.BoolValue(params.AutomaticPaymentMethods.Enabled))
	assert.Equal(t, models.PaymentTypeOneTimeVerification, params.Metadata["type"])

	var payment models.Payment
	decodeDoc(t, store, models.CollectionPayments, res.PaymentIntentID, &payment)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, models.PaymentTypeOneTime, payment.Type)
	assert.Equal(t, int64(500), payment.Amount)
}

func TestPrewriteKeepsWebhookState(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CollectionPayments, "pi_early", db.Fields{
		models.FieldStatus: models.PaymentStatusSucceeded,
		models.FieldType:   models.PaymentTypeOneTimeVerification,
	}))

	descriptive := db.Fields{models.FieldUserID: "u1", models.FieldAmount: int64(1000), models.FieldCurrency: "usd"}
	full := pendingPayment(descriptive, models.PaymentTypeOneTime, fixedNow)
	require.NoError(t, svc.prewrite(ctx, models.CollectionPayments, "pi_early", full, descriptive))

	var payment models.Payment
	decodeDoc(t, store, models.CollectionPayments, "pi_early", &payment)
	assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, models.PaymentTypeOneTimeVerification, payment.Type)
	assert.Equal(t, "u1", payment.UserID)
	assert.Equal(t, int64(1000), payment.Amount)
}

func TestVerifySession(t *testing.T) {
	svc, store, fake := newTestService(t)
	ctx := context.Background()
	fake.CheckoutSessions["cs_paid"] = &stripe.CheckoutSession{ID: "cs_paid", PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}
	fake.CheckoutSessions["cs_open"] = &stripe.CheckoutSession{ID: "cs_open", PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}

	res, err := svc.VerifySession(ctx, "", "u1", "cs_open")
	require.NoError(t, err)
	assert.Equal(t, VerifyResult{Status: "pending", Message: "Payment not completed yet", Verified: false}, res)
	_, err = store.Get(ctx, models.CollectionUsers, "u1")
	assert.ErrorIs(t, err, db.ErrNotFound)

	res, err = svc.VerifySession(ctx, "", "u1", "cs_paid")
	require.NoError(t, err)
	assert.Equal(t, VerifyResult{Status: "success", Message: "Payment verified and status updated", Verified: true}, res)

	var user models.User
	decodeDoc(t, store, models.CollectionUsers, "u1", &user)
	assert.True(t, user.Verified)
	assert.Equal(t, models.VerificationVerified, user.VerificationStatus)

	_, err = svc.VerifySession(ctx, "", "u1", "cs_missing")
	var upstreamErr *UpstreamError
	assert.True(t, errors.As(err, &upstreamErr))
}

func TestGetPayment(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CollectionPayments, "pi_1", db.Fields{
		models.FieldUserID: "u1",
		models.FieldStatus: models.PaymentStatusSucceeded,
		models.FieldAmount: 1000,
	}))

	p, err := svc.GetPayment(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", p.ID)
	assert.Equal(t, models.PaymentStatusSucceeded, p.Status)

	_, err = svc.GetPayment(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
