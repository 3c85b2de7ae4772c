package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/config"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/models"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/pricing"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/processor"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrForbidden           = errors.New("access denied")
	ErrConflict            = errors.New("user already has an active subscription")
	ErrStripeNotConfigured = errors.New("stripe not configured")
	ErrWebhookSignature    = errors.New("webhook signature verification failed")

	errNoSubscriptionItems = errors.New("subscription has no items")
)

// UpstreamError Stripe 调用失败，保留原始错误以便 errors.As 取出 *stripe.Error
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("stripe %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

type Service struct {
	store   db.Store
	stripe  processor.Resolver
	pricing pricing.Table
	config  config.Config
	now     func() time.Time
}

func New(store db.Store, stripe processor.Resolver, table pricing.Table, cfg config.Config) *Service {
	return &Service{
		store:   store,
		stripe:  stripe,
		pricing: table,
		config:  cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Pricing 返回当前生效的价格表
func (s *Service) Pricing() pricing.Table {
	return s.pricing
}

// Mode 把请求中的 stripeMode 解析为实际环境，空值使用配置的环境
func (s *Service) Mode(requested string) (string, error) {
	mode := requested
	if mode == "" {
		mode = s.config.StripeMode
	}
	if mode != config.ModeTest && mode != config.ModeLive {
		return "", fmt.Errorf("%w: stripeMode must be %q or %q", ErrInvalidRequest, config.ModeTest, config.ModeLive)
	}
	return mode, nil
}

func (s *Service) client(requested string) (processor.Client, error) {
	mode, err := s.Mode(requested)
	if err != nil {
		return nil, err
	}
	c, err := s.stripe.Client(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s mode", ErrStripeNotConfigured, mode)
	}
	return c, nil
}

// GetPayment 读取一条支付记录
func (s *Service) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	if id == "" {
		return models.Payment{}, ErrInvalidRequest
	}
	var p models.Payment
	if err := s.load(ctx, models.CollectionPayments, id, &p); err != nil {
		return models.Payment{}, err
	}
	p.ID = id
	return p, nil
}

func (s *Service) load(ctx context.Context, collection, id string, v any) error {
	doc, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return doc.Decode(v)
}

// prewrite 写入本地初始记录。文档不存在时整体创建；
// 已存在说明 webhook 先到，只合并描述字段，不覆盖 status/type。
func (s *Service) prewrite(ctx context.Context, collection, id string, full, descriptive db.Fields) error {
	err := s.store.Create(ctx, collection, id, full)
	if !errors.Is(err, db.ErrAlreadyExists) {
		return err
	}
	return s.store.Set(ctx, collection, id, descriptive)
}
