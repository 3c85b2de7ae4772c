package services

import (
	"context"
	"errors"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

type VerificationResult struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	URL          string `json:"url"`
}

// CreateVerificationSession 创建证件加自拍的身份认证会话，结果由 identity.* webhook 回写
func (s *Service) CreateVerificationSession(ctx context.Context, mode, userID, email, role string) (VerificationResult, error) {
	if userID == "" || email == "" {
		return VerificationResult{}, ErrInvalidRequest
	}
	client, err := s.client(mode)
	if err != nil {
		return VerificationResult{}, err
	}

	now := s.now()
	err = s.store.Create(ctx, models.CollectionUsers, userID, db.Fields{
		models.FieldEmail:              email,
		models.FieldRole:               role,
		models.FieldVerificationStatus: models.VerificationRequiresInput,
		models.FieldCreatedAt:          now,
		models.FieldUpdatedAt:          now,
	})
	if err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		return VerificationResult{}, err
	}

	params := &stripe.IdentityVerificationSessionParams{
		Type: stripe.String(string(stripe.IdentityVerificationSessionTypeDocument)),
		Options: &stripe.IdentityVerificationSessionOptionsParams{
			Document: &stripe.IdentityVerificationSessionOptionsDocumentParams{
				RequireMatchingSelfie: stripe.Bool(true),
			},
		},
		Metadata:  map[string]string{"userId": userID, "email": email, "role": role},
		ReturnURL: stripe.String(s.config.FrontendURL + "/verification-status?session_id={VERIFICATION_SESSION_ID}"),
	}
	vs, err := client.CreateVerificationSession(ctx, params)
	if err != nil {
		return VerificationResult{}, upstream("verification_session.create", err)
	}

	descriptive := db.Fields{
		models.FieldUserID:    userID,
		models.FieldSessionID: vs.ID,
		models.FieldUpdatedAt: now,
	}
	full := db.Fields{
		models.FieldStatus:    string(vs.Status),
		models.FieldType:      models.VerificationTypeStripeIdentity,
		models.FieldCreatedAt: now,
	}
	for k, v := range descriptive {
		full[k] = v
	}
	if err := s.prewrite(ctx, models.CollectionVerifications, vs.ID, full, descriptive); err != nil {
		return VerificationResult{}, err
	}

	log.Info().
		Str("user_id", userID).
		Str("mode", client.Mode()).
		Str("session_id", vs.ID).
		Msg("Identity verification session created")
	return VerificationResult{ID: vs.ID, ClientSecret: vs.ClientSecret, URL: vs.URL}, nil
}

// GetVerificationSession 直接返回 Stripe 上的会话
func (s *Service) GetVerificationSession(ctx context.Context, mode, sessionID string) (*stripe.IdentityVerificationSession, error) {
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}
	client, err := s.client(mode)
	if err != nil {
		return nil, err
	}
	vs, err := client.GetVerificationSession(ctx, sessionID)
	if err != nil {
		return nil, upstream("verification_session.get", err)
	}
	return vs, nil
}
