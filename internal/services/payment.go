package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/pricing"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

type CheckoutRequest struct {
	UserID     string
	Email      string
	Role       string
	Country    string
	SuccessURL string
	CancelURL  string
	Mode       string
}

type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type PaymentIntentRequest struct {
	UserID  string
	Email   string
	Role    string
	Country string
	Mode    string
}

type PaymentIntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type VerifyResult struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

func verificationMetadata(userID string) map[string]string {
	return map[string]string{"userId": userID, "type": models.PaymentTypeOneTimeVerification}
}

// CreateCheckoutSession 为一次性认证费用创建 Stripe 托管支付页
func (s *Service) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if req.UserID == "" || req.Email == "" || req.SuccessURL == "" || req.CancelURL == "" {
		return CheckoutResult{}, ErrInvalidRequest
	}
	client, err := s.client(req.Mode)
	if err != nil {
		return CheckoutResult{}, err
	}
	amount := s.pricing.FeeFor(req.Role, req.Country)
	currency := pricing.CurrencyFor(req.Country)

	customerID, err := s.resolveCustomer(ctx, client, req.UserID, req.Email, req.Role, req.Country)
	if err != nil {
		return CheckoutResult{}, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(strings.Replace(req.Role, "_", " ", 1) + " Identity Verification"),
						Description: stripe.String(fmt.Sprintf("One-time KYC verification fee for %s", req.Country)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: verificationMetadata(req.UserID),
		},
		Metadata: verificationMetadata(req.UserID),
	}
	sess, err := client.CreateCheckoutSession(ctx, params)
	if err != nil {
		return CheckoutResult{}, upstream("checkout_session.create", err)
	}

	now := s.now()
	descriptive := db.Fields{
		models.FieldUserID:    req.UserID,
		models.FieldAmount:    amount,
		models.FieldCurrency:  currency,
		models.FieldUpdatedAt: now,
	}
	full := pendingPayment(descriptive, models.PaymentTypeOneTimeVerification, now)
	if err := s.prewrite(ctx, models.CollectionPayments, sess.ID, full, descriptive); err != nil {
		return CheckoutResult{}, err
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("mode", client.Mode()).
		Str("session_id", sess.ID).
		Int64("amount", amount).
		Str("currency", currency).
		Msg("Checkout session created")
	return CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

// CreatePaymentIntent 为一次性认证费用创建 PaymentIntent，由客户端完成确认
func (s *Service) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntentResult, error) {
	if req.UserID == "" || req.Email == "" {
		return PaymentIntentResult{}, ErrInvalidRequest
	}
	client, err := s.client(req.Mode)
	if err != nil {
		return PaymentIntentResult{}, err
	}
	amount := s.pricing.FeeFor(req.Role, req.Country)
	currency := pricing.CurrencyFor(req.Country)

	customerID, err := s.resolveCustomer(ctx, client, req.UserID, req.Email, req.Role, req.Country)
	if err != nil {
		return PaymentIntentResult{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: verificationMetadata(req.UserID),
	}
	pi, err := client.CreatePaymentIntent(ctx, params)
	if err != nil {
		return PaymentIntentResult{}, upstream("payment_intent.create", err)
	}

	now := s.now()
	descriptive := db.Fields{
		models.FieldUserID:    req.UserID,
		models.FieldAmount:    amount,
		models.FieldCurrency:  currency,
		models.FieldUpdatedAt: now,
	}
	full := pendingPayment(descriptive, models.PaymentTypeOneTime, now)
	if err := s.prewrite(ctx, models.CollectionPayments, pi.ID, full, descriptive); err != nil {
		return PaymentIntentResult{}, err
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("mode", client.Mode()).
		Str("payment_intent_id", pi.ID).
		Int64("amount", amount).
		Msg("Payment intent created")
	return PaymentIntentResult{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
}

func pendingPayment(descriptive db.Fields, paymentType string, now time.Time) db.Fields {
	full := db.Fields{
		models.FieldStatus:    models.PaymentStatusPending,
		models.FieldType:      paymentType,
		models.FieldCreatedAt: now,
	}
	for k, v := range descriptive {
		full[k] = v
	}
	return full
}

// VerifySession 同步查询支付页状态，供等不到 webhook 的客户端使用
func (s *Service) VerifySession(ctx context.Context, mode, userID, sessionID string) (VerifyResult, error) {
	if userID == "" || sessionID == "" {
		return VerifyResult{}, ErrInvalidRequest
	}
	client, err := s.client(mode)
	if err != nil {
		return VerifyResult{}, err
	}
	sess, err := client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, upstream("checkout_session.get", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return VerifyResult{Status: "pending", Message: "Payment not completed yet", Verified: false}, nil
	}
	if err := s.store.Set(ctx, models.CollectionUsers, userID, db.Fields{
		models.FieldVerified:           true,
		models.FieldVerificationStatus: models.VerificationVerified,
		models.FieldUpdatedAt:          s.now(),
	}); err != nil {
		return VerifyResult{}, err
	}
	log.Info().Str("user_id", userID).Str("session_id", sessionID).Msg("User verified via checkout session poll")
	return VerifyResult{Status: "success", Message: "Payment verified and status updated", Verified: true}, nil
}
