package models

import "time"

// 文档集合名称
const (
	CollectionUsers         = "users"
	CollectionPayments      = "payments"
	CollectionSubscriptions = "subscriptions"
	CollectionVerifications = "verifications"
)

type User struct {
	ID                         string    `json:"id"`
	Email                      string    `json:"email"`
	Role                       string    `json:"role"`
	Country                    string    `json:"country,omitempty"`
	StripeCustomerID           string    `json:"stripeCustomerId,omitempty"`
	Verified                   bool      `json:"verified"`
	VerificationStatus         string    `json:"verificationStatus,omitempty"`
	IdentityVerified           bool      `json:"identityVerified"`
	IdentityVerificationStatus string    `json:"identityVerificationStatus,omitempty"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

type Payment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Subscription struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Status           string    `json:"status"`
	PlanID           string    `json:"planId"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Verification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	VerificationRequiresInput = "requires_input"
	VerificationProcessing    = "processing"
	VerificationVerified      = "verified"
	VerificationFailed        = "failed"
)

const VerificationTypeStripeIdentity = "STRIPE_IDENTITY"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

const (
	PaymentTypeOneTime             = "ONE_TIME"
	PaymentTypeOneTimeVerification = "ONE_TIME_VERIFICATION"
	PaymentTypeUnknown             = "UNKNOWN"
)

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// 文档字段名，与已存储的数据保持一致
const (
	FieldUserID                     = "userId"
	FieldEmail                      = "email"
	FieldRole                       = "role"
	FieldCountry                    = "country"
	FieldStripeCustomerID           = "stripeCustomerId"
	FieldVerified                   = "verified"
	FieldVerificationStatus         = "verificationStatus"
	FieldIdentityVerified           = "identityVerified"
	FieldIdentityVerificationStatus = "identityVerificationStatus"
	FieldAmount                     = "amount"
	FieldCurrency                   = "currency"
	FieldStatus                     = "status"
	FieldType                       = "type"
	FieldPlanID                     = "planId"
	FieldCurrentPeriodEnd           = "currentPeriodEnd"
	FieldSessionID                  = "sessionId"
	FieldCreatedAt                  = "createdAt"
	FieldUpdatedAt                  = "updatedAt"
)
