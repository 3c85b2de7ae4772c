package services

import (
	"context"
	"testing"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func subscriptionRequest(userID, role, country string) SubscriptionRequest {
	return SubscriptionRequest{UserID: userID, Email: userID + "@example.com", Role: role, Country: country}
}

func TestCreateSubscription(t *testing.T) {
	svc, store, fake := newTestService(t)

	res, err := svc.CreateSubscription(context.Background(), subscriptionRequest("u1", "JOB_SEEKER", "IN"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SubscriptionID)
	assert.Equal(t, "pi_"+res.SubscriptionID+"_secret", res.ClientSecret)

	params := fake.LastSubscriptionParams
	require.NotNil(t, params)
	assert.Equal(t, "price_jobseeker_in_monthly", stripe.StringValue(params.Items[0].Price))
	assert.Equal(t, "default_incomplete", stripe.StringValue(params.PaymentBehavior))
	assert.Equal(t, "on_subscription", stripe.StringValue(params.PaymentSettings.SaveDefaultPaymentMethod))
	assert.Equal(t, []*string{stripe.String("latest_invoice.payment_intent")}, params.Expand)
	assert.Equal(t, map[string]string{"userId": "u1", "role": "JOB_SEEKER"}, params.Metadata)

	var sub models.Subscription
	decodeDoc(t, store, models.CollectionSubscriptions, res.SubscriptionID, &sub)
	assert.Equal(t, "u1", sub.UserID)
	assert.Equal(t, string(stripe.SubscriptionStatusIncomplete), sub.Status)
	assert.Equal(t, "price_jobseeker_in_monthly", sub.PlanID)
	assert.Equal(t, 2030, sub.CurrentPeriodEnd.Year())
}

func TestCreateSubscriptionRejectsSecondActive(t *testing.T) {
	svc, store, fake := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CollectionSubscriptions, "sub_existing", db.Fields{
		models.FieldUserID: "u1",
		models.FieldStatus: models.SubscriptionActive,
	}))

	_, err := svc.CreateSubscription(ctx, subscriptionRequest("u1", "JOB_SEEKER", "US"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, fake.Calls("subscription.create"))
}

func TestCreateSubscriptionAllowedAfterCancel(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CollectionSubscriptions, "sub_old", db.Fields{
		models.FieldUserID: "u1",
		models.FieldStatus: models.SubscriptionCanceled,
	}))
	require.NoError(t, store.Set(ctx, models.CollectionSubscriptions, "sub_other_user", db.Fields{
		models.FieldUserID: "u2",
		models.FieldStatus: models.SubscriptionActive,
	}))

	res, err := svc.CreateSubscription(ctx, subscriptionRequest("u1", "COMPANY", "US"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SubscriptionID)
}

func TestCreateSubscriptionWithoutPlan(t *testing.T) {
	svc, _, fake := newTestService(t)

	_, err := svc.CreateSubscription(context.Background(), subscriptionRequest("u1", "RECRUITER", "US"))
	assert.ErrorIs(t, err, pricing.ErrNoPlan)
	assert.Equal(t, 0, fake.TotalCalls())
}

func TestCancelSubscription(t *testing.T) {
	svc, store, fake := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateSubscription(ctx, subscriptionRequest("u1", "JOB_SEEKER", "US"))
	require.NoError(t, err)

	res, err := svc.CancelSubscription(ctx, "", "u1", created.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, CancelResult{Status: string(stripe.SubscriptionStatusCanceled)}, res)
	assert.Equal(t, 1, fake.Calls("subscription.cancel"))
	assert.Equal(t, models.SubscriptionCanceled, getDoc(t, store, models.CollectionSubscriptions, created.SubscriptionID)[models.FieldStatus])

	// 取消后可以重新订阅
	_, err = svc.CreateSubscription(ctx, subscriptionRequest("u1", "JOB_SEEKER", "US"))
	assert.NoError(t, err)
}

func TestCancelForeignSubscriptionMakesNoStripeCall(t *testing.T) {
	svc, store, fake := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CollectionSubscriptions, "sub_u2", db.Fields{
		models.FieldUserID: "u2",
		models.FieldStatus: models.SubscriptionActive,
	}))
	writes := store.Writes()

	_, err := svc.CancelSubscription(ctx, "", "u1", "sub_u2")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 0, fake.TotalCalls())
	assert.Equal(t, writes, store.Writes())
	assert.Equal(t, models.SubscriptionActive, getDoc(t, store, models.CollectionSubscriptions, "sub_u2")[models.FieldStatus])
}

func TestCancelMissingSubscription(t *testing.T) {
	svc, _, fake := newTestService(t)

	_, err := svc.CancelSubscription(context.Background(), "", "u1", "sub_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, fake.TotalCalls())
}

func TestChangeSubscription(t *testing.T) {
	svc, store, fake := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateSubscription(ctx, subscriptionRequest("u1", "JOB_SEEKER", "IN"))
	require.NoError(t, err)
	writes := store.Writes()

	updated, err := svc.ChangeSubscription(ctx, "", "u1", created.SubscriptionID, "COMPANY", "US")
	require.NoError(t, err)
	assert.Equal(t, "price_company_us_monthly", updated.Items.Data[0].Price.ID)

	params := fake.LastUpdateParams
	require.Len(t, params.Items, 1)
	assert.Equal(t, updated.Items.Data[0].ID, stripe.StringValue(params.Items[0].ID))
	assert.Equal(t, "always_invoice", stripe.StringValue(params.ProrationBehavior))

	// 本地记录等待 webhook 更新
	assert.Equal(t, writes, store.Writes())
	assert.Equal(t, "price_jobseeker_in_monthly", getDoc(t, store, models.CollectionSubscriptions, created.SubscriptionID)[models.FieldPlanID])
}

func TestChangeSubscriptionChecksOwnership(t *testing.T) {
	svc, store, fake := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CollectionSubscriptions, "sub_u2", db.Fields{models.FieldUserID: "u2"}))

	_, err := svc.ChangeSubscription(ctx, "", "u1", "sub_u2", "COMPANY", "US")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ChangeSubscription(ctx, "", "u1", "sub_missing", "COMPANY", "US")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, fake.TotalCalls())
}
