package services

import (
	"context"
	"errors"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/processor"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

// ResolveCustomer 返回用户在指定 Stripe 环境下的客户 id。
// 缓存的 id 在该环境中不存在时（测试/正式环境的客户互不相通）重新创建并覆盖。
func (s *Service) ResolveCustomer(ctx context.Context, mode, userID, email, role, country string) (string, error) {
	if userID == "" || email == "" {
		return "", ErrInvalidRequest
	}
	client, err := s.client(mode)
	if err != nil {
		return "", err
	}
	return s.resolveCustomer(ctx, client, userID, email, role, country)
}

func (s *Service) resolveCustomer(ctx context.Context, client processor.Client, userID, email, role, country string) (string, error) {
	var user models.User
	err := s.load(ctx, models.CollectionUsers, userID, &user)
	if errors.Is(err, ErrNotFound) {
		return s.createUserWithCustomer(ctx, client, userID, email, role, country)
	}
	if err != nil {
		return "", err
	}

	if cached := user.StripeCustomerID; cached != "" {
		cus, err := client.GetCustomer(ctx, cached)
		switch {
		case err == nil && !cus.Deleted:
			return cached, nil
		case err == nil || processor.IsNotFound(err):
			log.Info().
				Str("user_id", userID).
				Str("mode", client.Mode()).
				Str("stale_customer_id", cached).
				Msg("Resetting stripe customer id not present in this environment")
		default:
			return "", upstream("customer.get", err)
		}
	}

	customerID, err := s.createCustomer(ctx, client, userID, email, role)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, models.CollectionUsers, userID, db.Fields{
		models.FieldStripeCustomerID: customerID,
		models.FieldUpdatedAt:        s.now(),
	}); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *Service) createUserWithCustomer(ctx context.Context, client processor.Client, userID, email, role, country string) (string, error) {
	customerID, err := s.createCustomer(ctx, client, userID, email, role)
	if err != nil {
		return "", err
	}
	now := s.now()
	doc := db.Fields{
		models.FieldEmail:            email,
		models.FieldRole:             role,
		models.FieldStripeCustomerID: customerID,
		models.FieldCreatedAt:        now,
		models.FieldUpdatedAt:        now,
	}
	if country != "" {
		doc[models.FieldCountry] = country
	}
	err = s.store.Create(ctx, models.CollectionUsers, userID, doc)
	if errors.Is(err, db.ErrAlreadyExists) {
		// 并发请求已建好用户文档，只补上客户 id
		err = s.store.Set(ctx, models.CollectionUsers, userID, db.Fields{
			models.FieldStripeCustomerID: customerID,
			models.FieldUpdatedAt:        now,
		})
	}
	if err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *Service) createCustomer(ctx context.Context, client processor.Client, userID, email, role string) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"userId": userID, "role": role},
	}
	cus, err := client.CreateCustomer(ctx, params)
	if err != nil {
		return "", upstream("customer.create", err)
	}
	log.Info().
		Str("user_id", userID).
		Str("mode", client.Mode()).
		Str("customer_id", cus.ID).
		Msg("Created stripe customer")
	return cus.ID, nil
}
