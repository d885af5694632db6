package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
)

const (
	productGrowth     = "Course Builder - Growth"
	productAdditional = "Extra Generation Credit"
)

type CheckoutClient interface {
	CreateCheckout(ctx context.Context, in whop.CreateCheckoutInput) (whop.Checkout, error)
}

var _ CheckoutClient = (*whop.Client)(nil)

type CheckoutResult struct {
	CheckoutID  string  `json:"id"`
	PlanID      string  `json:"planId"`
	Plan        string  `json:"plan"`
	Price       float64 `json:"price"`
	ProductName string  `json:"productName"`
	PurchaseURL string  `json:"purchaseUrl,omitempty"`
}

type CheckoutService interface {
	Create(ctx context.Context, user *types.User, companyID, plan string) (*CheckoutResult, error)
}

type checkoutService struct {
	log            *logger.Logger
	billing        BillingConfig
	defaultCompany string
	client         CheckoutClient
	now            func() time.Time
}

func NewCheckoutService(baseLog *logger.Logger, billing BillingConfig, defaultCompany string, client CheckoutClient) CheckoutService {
	return &checkoutService{
		log:            baseLog.With("service", "CheckoutService"),
		billing:        billing,
		defaultCompany: strings.TrimSpace(defaultCompany),
		client:         client,
		now:            time.Now,
	}
}

func (s *checkoutService) Create(ctx context.Context, user *types.User, companyID, plan string) (*CheckoutResult, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	companyID = firstNonEmpty(companyID, user.WhopCompanyID, s.defaultCompany)
	if companyID == "" {
		return nil, fmt.Errorf("%w: company id is required", apperr.ErrInvalidArgument)
	}

	var (
		p           whop.CheckoutPlan
		productName string
		priceCents  int64
		generations int
	)
	switch strings.TrimSpace(plan) {
	case whop.PurchaseGrowth:
		productName = productGrowth
		priceCents = s.billing.GrowthPriceCents
		generations = s.billing.GrowthMonthlyLimit
		p = whop.CheckoutPlan{
			PlanType:      whop.PlanTypeRenewal,
			RenewalPrice:  dollars(priceCents),
			BillingPeriod: int(s.billing.CycleLength / (24 * time.Hour)),
			Product: whop.CheckoutProduct{
				ExternalIdentifier: fmt.Sprintf("course-builder-%s-%s", plan, companyID),
				Title:              productName,
			},
		}
	case whop.PurchaseAdditional:
		productName = productAdditional
		priceCents = s.billing.CreditPackCents
		generations = s.billing.CreditPackGenerations
		p = whop.CheckoutPlan{
			PlanType: whop.PlanTypeOneTime,
			Product: whop.CheckoutProduct{
				ExternalIdentifier: fmt.Sprintf("course-builder-%s-%s-%d", plan, user.ID, s.now().UnixMilli()),
				Title:              productName,
			},
		}
	default:
		return nil, fmt.Errorf("%w: invalid plan %q, use %q or %q", apperr.ErrInvalidArgument, plan, whop.PurchaseGrowth, whop.PurchaseAdditional)
	}
	p.CompanyID = companyID
	p.InitialPrice = dollars(priceCents)
	p.Currency = "usd"

	co, err := s.client.CreateCheckout(ctx, whop.CreateCheckoutInput{
		Plan: p,
		Metadata: map[string]string{
			"userId":              user.ID.String(),
			"companyId":           companyID,
			"purchaseType":        plan,
			"generationsIncluded": strconv.Itoa(generations),
		},
	})
	if err != nil {
		s.log.Error("checkout creation failed", "plan", plan, "error", err)
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	s.log.Info("checkout created", "plan", plan, "checkout_id", co.ID)
	return &CheckoutResult{
		CheckoutID:  co.ID,
		PlanID:      co.PlanID,
		Plan:        plan,
		Price:       dollars(priceCents),
		ProductName: productName,
		PurchaseURL: co.PurchaseURL,
	}, nil
}

func dollars(cents int64) float64 { return float64(cents) / 100 }
