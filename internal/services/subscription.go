package services

import (
	"context"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

type SubscriptionRequest struct {
	UserID  string
	Email   string
	Role    string
	Country string
	Mode    string
}

type SubscriptionResult struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
}

type CancelResult struct {
	Status string `json:"status"`
}

// CreateSubscription 创建处于 incomplete 状态的订阅，客户端用返回的 client secret 完成首期付款。
// 同一用户只能有一个 active 订阅；检查与创建之间没有原子保证。
func (s *Service) CreateSubscription(ctx context.Context, req SubscriptionRequest) (SubscriptionResult, error) {
	if req.UserID == "" || req.Email == "" {
		return SubscriptionResult{}, ErrInvalidRequest
	}
	client, err := s.client(req.Mode)
	if err != nil {
		return SubscriptionResult{}, err
	}
	priceID, err := s.pricing.PlanFor(req.Role, req.Country)
	if err != nil {
		return SubscriptionResult{}, err
	}

	customerID, err := s.resolveCustomer(ctx, client, req.UserID, req.Email, req.Role, req.Country)
	if err != nil {
		return SubscriptionResult{}, err
	}

	active, err := s.store.Query(ctx, models.CollectionSubscriptions, []db.Filter{
		db.Eq(models.FieldUserID, req.UserID),
		db.Eq(models.FieldStatus, models.SubscriptionActive),
	}, 1)
	if err != nil {
		return SubscriptionResult{}, err
	}
	if len(active) > 0 {
		return SubscriptionResult{}, ErrConflict
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: map[string]string{"userId": req.UserID, "role": req.Role},
	}
	params.AddExpand("latest_invoice.payment_intent")
	sub, err := client.CreateSubscription(ctx, params)
	if err != nil {
		return SubscriptionResult{}, upstream("subscription.create", err)
	}

	now := s.now()
	descriptive := db.Fields{
		models.FieldUserID:           req.UserID,
		models.FieldPlanID:           priceID,
		models.FieldCurrentPeriodEnd: periodEnd(sub.CurrentPeriodEnd),
		models.FieldUpdatedAt:        now,
	}
	full := db.Fields{
		models.FieldStatus:    string(sub.Status),
		models.FieldCreatedAt: now,
	}
	for k, v := range descriptive {
		full[k] = v
	}
	if err := s.prewrite(ctx, models.CollectionSubscriptions, sub.ID, full, descriptive); err != nil {
		return SubscriptionResult{}, err
	}

	result := SubscriptionResult{SubscriptionID: sub.ID}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		result.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	log.Info().
		Str("user_id", req.UserID).
		Str("mode", client.Mode()).
		Str("subscription_id", sub.ID).
		Str("plan_id", priceID).
		Str("status", string(sub.Status)).
		Msg("Subscription created")
	return result, nil
}

// CancelSubscription 立即取消订阅，只允许订阅所属用户操作
func (s *Service) CancelSubscription(ctx context.Context, mode, userID, subscriptionID string) (CancelResult, error) {
	if userID == "" || subscriptionID == "" {
		return CancelResult{}, ErrInvalidRequest
	}
	client, err := s.client(mode)
	if err != nil {
		return CancelResult{}, err
	}
	if _, err := s.ownedSubscription(ctx, userID, subscriptionID); err != nil {
		return CancelResult{}, err
	}

	canceled, err := client.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		return CancelResult{}, upstream("subscription.cancel", err)
	}
	if err := s.store.Set(ctx, models.CollectionSubscriptions, subscriptionID, db.Fields{
		models.FieldStatus:    models.SubscriptionCanceled,
		models.FieldUpdatedAt: s.now(),
	}); err != nil {
		return CancelResult{}, err
	}
	log.Info().Str("user_id", userID).Str("subscription_id", subscriptionID).Msg("Subscription canceled")
	return CancelResult{Status: string(canceled.Status)}, nil
}

// ChangeSubscription 把订阅切换到新角色/国家对应的价格，差额立即开票。
// 本地记录由随后的 customer.subscription.updated 事件更新。
func (s *Service) ChangeSubscription(ctx context.Context, mode, userID, subscriptionID, newRole, newCountry string) (*stripe.Subscription, error) {
	if userID == "" || subscriptionID == "" {
		return nil, ErrInvalidRequest
	}
	client, err := s.client(mode)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedSubscription(ctx, userID, subscriptionID); err != nil {
		return nil, err
	}
	priceID, err := s.pricing.PlanFor(newRole, newCountry)
	if err != nil {
		return nil, err
	}

	current, err := client.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, upstream("subscription.get", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, upstream("subscription.get", errNoSubscriptionItems)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(current.Items.Data[0].ID), Price: stripe.String(priceID)},
		},
		ProrationBehavior: stripe.String("always_invoice"),
	}
	updated, err := client.UpdateSubscription(ctx, subscriptionID, params)
	if err != nil {
		return nil, upstream("subscription.update", err)
	}
	log.Info().
		Str("user_id", userID).
		Str("subscription_id", subscriptionID).
		Str("plan_id", priceID).
		Msg("Subscription plan changed")
	return updated, nil
}

func (s *Service) ownedSubscription(ctx context.Context, userID, subscriptionID string) (models.Subscription, error) {
	var sub models.Subscription
	if err := s.load(ctx, models.CollectionSubscriptions, subscriptionID, &sub); err != nil {
		return models.Subscription{}, err
	}
	if sub.UserID != userID {
		return models.Subscription{}, ErrForbidden
	}
	sub.ID = subscriptionID
	return sub, nil
}

func periodEnd(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}
