package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/metrics"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/processor"

	"github.com/rs/zerolog/log"
)

// WebhookResult 描述一次已处理的 webhook 投递
type WebhookResult struct {
	EventID   string
	EventType string
	Kind      EventKind
}

// HandleWebhook 用配置环境的 webhook secret 验签，解码后写入对应文档。
// 验签或解码失败时不做任何写入。
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	client, err := s.stripe.Client(s.config.StripeMode)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %s mode", ErrStripeNotConfigured, s.config.StripeMode)
	}
	evt, err := client.ConstructEvent(payload, signature)
	if errors.Is(err, processor.ErrNotConfigured) {
		return WebhookResult{}, fmt.Errorf("%w: webhook secret for %s mode", ErrStripeNotConfigured, s.config.StripeMode)
	}
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	result := WebhookResult{EventID: evt.ID, EventType: string(evt.Type)}
	ev, err := DecodeEvent(evt)
	if err != nil {
		return result, err
	}
	result.Kind = ev.Kind()

	at := s.now()
	if evt.Created > 0 {
		at = time.Unix(evt.Created, 0).UTC()
	}
	if err := s.Reconcile(ctx, ev, at); err != nil {
		log.Error().Err(err).
			Str("event_id", evt.ID).
			Str("type", result.EventType).
			Msg("Error handling webhook event")
		return result, err
	}
	return result, nil
}

// Reconcile 把事件合并写入文档。所有写入都是字段合并，
// 同一事件重复投递得到相同结果；at 为事件发生时间，用作 updatedAt。
func (s *Service) Reconcile(ctx context.Context, ev WebhookEvent, at time.Time) error {
	var err error
	switch e := ev.(type) {
	case PaymentSucceeded:
		err = s.applyPaymentSucceeded(ctx, e, at)
	case PaymentFailed:
		log.Warn().Str("payment_intent_id", e.PaymentIntentID).Msg("PaymentIntent failed")
		err = s.store.Set(ctx, models.CollectionPayments, e.PaymentIntentID, db.Fields{
			models.FieldStatus:    models.PaymentStatusFailed,
			models.FieldUpdatedAt: at,
		})
	case SubscriptionChanged:
		err = s.applySubscriptionChanged(ctx, e, at)
	case CheckoutCompleted:
		err = s.applyCheckoutCompleted(ctx, e, at)
	case IdentityStatusChanged:
		err = s.applyIdentityStatus(ctx, e, at)
	case Ignored:
		log.Debug().Str("type", e.Type).Msg("Ignoring webhook event")
		return nil
	default:
		return fmt.Errorf("unhandled webhook event %T", ev)
	}
	if err != nil {
		return err
	}
	metrics.ReconciledTotal.WithLabelValues(string(ev.Kind())).Inc()
	return nil
}

func (s *Service) applyPaymentSucceeded(ctx context.Context, e PaymentSucceeded, at time.Time) error {
	log.Info().Str("payment_intent_id", e.PaymentIntentID).Str("user_id", e.UserID).Msg("PaymentIntent succeeded")
	fields := db.Fields{
		models.FieldStatus:    models.PaymentStatusSucceeded,
		models.FieldAmount:    e.Amount,
		models.FieldCurrency:  e.Currency,
		models.FieldType:      e.Type,
		models.FieldUpdatedAt: at,
	}
	if e.UserID != "" {
		fields[models.FieldUserID] = e.UserID
	}
	if err := s.store.Set(ctx, models.CollectionPayments, e.PaymentIntentID, fields); err != nil {
		return err
	}
	if e.UserID == "" || e.Type != models.PaymentTypeOneTimeVerification {
		return nil
	}
	log.Info().Str("user_id", e.UserID).Msg("Marking user verified via PaymentIntent")
	return s.markVerified(ctx, e.UserID, at)
}

func (s *Service) applySubscriptionChanged(ctx context.Context, e SubscriptionChanged, at time.Time) error {
	log.Info().Str("subscription_id", e.SubscriptionID).Str("status", e.Status).Msg("Subscription updated")
	fields := db.Fields{
		models.FieldStatus:    e.Status,
		models.FieldUpdatedAt: at,
	}
	if e.UserID != "" {
		fields[models.FieldUserID] = e.UserID
	}
	if e.PlanID != "" {
		fields[models.FieldPlanID] = e.PlanID
	}
	if !e.CurrentPeriodEnd.IsZero() {
		fields[models.FieldCurrentPeriodEnd] = e.CurrentPeriodEnd
	}
	return s.store.Set(ctx, models.CollectionSubscriptions, e.SubscriptionID, fields)
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, e CheckoutCompleted, at time.Time) error {
	if !e.IsVerificationPurchase() {
		log.Info().Str("session_id", e.SessionID).Msg("CheckoutSession did not match verification criteria")
		return nil
	}
	log.Info().Str("session_id", e.SessionID).Str("user_id", e.UserID).Msg("Marking user verified via CheckoutSession")
	if err := s.markVerified(ctx, e.UserID, at); err != nil {
		return err
	}
	return s.store.Set(ctx, models.CollectionPayments, e.SessionID, db.Fields{
		models.FieldUserID:    e.UserID,
		models.FieldAmount:    e.AmountTotal,
		models.FieldCurrency:  e.Currency,
		models.FieldStatus:    models.PaymentStatusSucceeded,
		models.FieldType:      models.PaymentTypeOneTimeVerification,
		models.FieldUpdatedAt: at,
	})
}

func (s *Service) applyIdentityStatus(ctx context.Context, e IdentityStatusChanged, at time.Time) error {
	if e.UserID == "" {
		log.Info().Str("session_id", e.SessionID).Msg("Identity session without userId metadata, skipping")
		return nil
	}
	log.Info().
		Str("session_id", e.SessionID).
		Str("user_id", e.UserID).
		Str("status", e.Status).
		Msg("Identity verification status changed")
	user := db.Fields{
		models.FieldIdentityVerificationStatus: e.Status,
		models.FieldUpdatedAt:                  at,
	}
	if e.Status == models.VerificationVerified {
		user[models.FieldIdentityVerified] = true
	}
	if err := s.store.Set(ctx, models.CollectionUsers, e.UserID, user); err != nil {
		return err
	}
	return s.store.Set(ctx, models.CollectionVerifications, e.SessionID, db.Fields{
		models.FieldStatus:    e.Status,
		models.FieldUpdatedAt: at,
	})
}

func (s *Service) markVerified(ctx context.Context, userID string, at time.Time) error {
	return s.store.Set(ctx, models.CollectionUsers, userID, db.Fields{
		models.FieldVerified:           true,
		models.FieldVerificationStatus: models.VerificationVerified,
		models.FieldUpdatedAt:          at,
	})
}
