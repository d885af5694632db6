package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/pgerr"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

// BillingConfig is the plan catalog. Money is in cents.
type BillingConfig struct {
	FreeMonthlyLimit      int           `yaml:"free_monthly_limit" validate:"gte=0"`
	GrowthMonthlyLimit    int           `yaml:"growth_monthly_limit" validate:"gt=0"`
	GrowthPriceCents      int64         `yaml:"growth_price_cents" validate:"gte=0"`
	OverageCents          int64         `yaml:"overage_cents" validate:"gte=0"`
	CreditPackCents       int64         `yaml:"credit_pack_cents" validate:"gte=0"`
	CreditPackGenerations int           `yaml:"credit_pack_generations" validate:"gt=0"`
	CycleLength           time.Duration `yaml:"cycle_length" validate:"gt=0"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		FreeMonthlyLimit:      2,
		GrowthMonthlyLimit:    10,
		GrowthPriceCents:      2900,
		OverageCents:          500,
		CreditPackCents:       500,
		CreditPackGenerations: 1,
		CycleLength:           30 * 24 * time.Hour,
	}
}

type PlanInfo struct {
	Type                string `json:"type"`
	Name                string `json:"name"`
	PriceCents          int64  `json:"priceCents"`
	GenerationsIncluded int    `json:"generationsIncluded"`
	OveragePriceCents   int64  `json:"overagePriceCents"`
}

func (c BillingConfig) Plan(planType string) (PlanInfo, bool) {
	switch planType {
	case billing.PlanFree:
		return PlanInfo{Type: planType, Name: "Free Plan", GenerationsIncluded: c.FreeMonthlyLimit, OveragePriceCents: c.OverageCents}, true
	case billing.PlanGrowth:
		return PlanInfo{Type: planType, Name: "Growth Plan", PriceCents: c.GrowthPriceCents, GenerationsIncluded: c.GrowthMonthlyLimit, OveragePriceCents: c.OverageCents}, true
	}
	return PlanInfo{}, false
}

type UsageCheck struct {
	SubscriptionID            uuid.UUID `json:"subscriptionId"`
	CurrentUsage              int       `json:"currentUsage"`
	MonthlyLimit              int       `json:"monthlyLimit"`
	RemainingIncluded         int       `json:"remainingIncluded"`
	PurchasedCreditsAvailable int       `json:"purchasedCreditsAvailable"`
	IsOverage                 bool      `json:"isOverage"`
	OverageCostCents          int64     `json:"overageCostCents"`
}

// Allowed is always true; overage is billed, never refused.
func (u UsageCheck) Allowed() bool { return true }

type UsageCharge struct {
	SubscriptionID      uuid.UUID `json:"subscriptionId"`
	CurrentUsage        int       `json:"currentUsage"`
	RemainingIncluded   int       `json:"remainingIncluded"`
	IsOverage           bool      `json:"isOverage"`
	OverageChargeCents  int64     `json:"overageChargeCents"`
	UsedPurchasedCredit bool      `json:"usedPurchasedCredit"`
}

type UsageMonth struct {
	GenerationsUsed           int   `json:"generationsUsed"`
	GenerationsIncluded       int   `json:"generationsIncluded"`
	OverageCount              int64 `json:"overageCount"`
	OverageAmountCents        int64 `json:"overageAmountCents"`
	PurchasedCreditsAvailable int   `json:"purchasedCreditsAvailable"`
}

type UsageSummary struct {
	CurrentMonth UsageMonth `json:"currentMonth"`
	Plan         PlanInfo   `json:"plan"`
	CycleStart   time.Time  `json:"cycleStart"`
	CycleEnd     time.Time  `json:"cycleEnd"`
}

type UsageLedger interface {
	EnsureSubscription(dbc dbctx.Context, user *types.User) (*types.Subscription, error)
	CheckUsageLimit(dbc dbctx.Context, user *types.User) (*UsageCheck, error)
	// IncrementUsage charges exactly one generation. Call it once per
	// CourseGeneration, before any LLM work.
	IncrementUsage(dbc dbctx.Context, user *types.User, generationID uuid.UUID) (*UsageCharge, error)
	UsageSummary(dbc dbctx.Context, user *types.User) (*UsageSummary, error)
	GrantCredits(dbc dbctx.Context, userID uuid.UUID, paymentID string, credits int, amountPaidCents int64, meta map[string]any) (*types.PurchasedCredit, error)
	UpgradePlan(dbc dbctx.Context, user *types.User, planType string, membershipID string) (*types.Subscription, error)
	ResetMonthlyUsage(dbc dbctx.Context, subscriptionID uuid.UUID) error
}

type usageLedger struct {
	db      *gorm.DB
	log     *logger.Logger
	cfg     BillingConfig
	subs    repos.SubscriptionRepo
	credits repos.PurchasedCreditRepo
	events  repos.UsageEventRepo
	gens    repos.CourseGenerationRepo
	now     func() time.Time
}

func NewUsageLedger(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg BillingConfig,
	subs repos.SubscriptionRepo,
	credits repos.PurchasedCreditRepo,
	events repos.UsageEventRepo,
	gens repos.CourseGenerationRepo,
) UsageLedger {
	return &usageLedger{
		db:      db,
		log:     baseLog.With("service", "UsageLedger"),
		cfg:     cfg,
		subs:    subs,
		credits: credits,
		events:  events,
		gens:    gens,
		now:     time.Now,
	}
}

// lockedSubscription returns the row-locked active subscription, creating a
// free one or rolling an expired cycle first. Must run inside a transaction.
func (l *usageLedger) lockedSubscription(dbc dbctx.Context, user *types.User) (*types.Subscription, error) {
	sub, err := l.subs.GetActiveForUpdate(dbc, user.ID, user.WhopCompanyID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	now := l.now()
	if sub == nil {
		fresh := &types.Subscription{
			ID:                uuid.New(),
			UserID:            user.ID,
			WhopCompanyID:     user.WhopCompanyID,
			PlanType:          billing.PlanFree,
			Status:            billing.SubscriptionActive,
			MonthlyLimit:      l.cfg.FreeMonthlyLimit,
			BillingCycleStart: now,
			BillingCycleEnd:   now.Add(l.cfg.CycleLength),
		}
		cErr := dbc.Tx.Transaction(func(sp *gorm.DB) error {
			_, e := l.subs.Create(dbc.WithTx(sp), fresh)
			return e
		})
		if cErr != nil && !pgerr.IsUniqueViolation(cErr) {
			return nil, fmt.Errorf("create subscription: %w", cErr)
		}
		// A concurrent request may have won the insert; lock whichever row is active now.
		sub, err = l.subs.GetActiveForUpdate(dbc, user.ID, user.WhopCompanyID)
		if err != nil {
			return nil, fmt.Errorf("load subscription: %w", err)
		}
		if sub == nil {
			return nil, fmt.Errorf("subscription missing after create")
		}
	}
	if now.After(sub.BillingCycleEnd) {
		end := now.Add(l.cfg.CycleLength)
		if err := l.subs.ResetCycle(dbc, sub.ID, now, end); err != nil {
			return nil, fmt.Errorf("reset billing cycle: %w", err)
		}
		sub.CurrentUsage = 0
		sub.BillingCycleStart = now
		sub.BillingCycleEnd = end
		l.log.Info("billing cycle rolled", "subscription_id", sub.ID, "user_id", user.ID)
	}
	return sub, nil
}

func (l *usageLedger) EnsureSubscription(dbc dbctx.Context, user *types.User) (*types.Subscription, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user required", apperr.ErrInvalidArgument)
	}
	var out *types.Subscription
	err := inTx(dbc, l.db, func(tx dbctx.Context) error {
		sub, err := l.lockedSubscription(tx, user)
		out = sub
		return err
	})
	return out, err
}

func (l *usageLedger) CheckUsageLimit(dbc dbctx.Context, user *types.User) (*UsageCheck, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user required", apperr.ErrInvalidArgument)
	}
	var out *UsageCheck
	err := inTx(dbc, l.db, func(tx dbctx.Context) error {
		sub, err := l.lockedSubscription(tx, user)
		if err != nil {
			return err
		}
		avail, err := l.credits.SumAvailable(tx, user.ID)
		if err != nil {
			return fmt.Errorf("sum credits: %w", err)
		}
		remaining := sub.MonthlyLimit - sub.CurrentUsage
		check := &UsageCheck{
			SubscriptionID:            sub.ID,
			CurrentUsage:              sub.CurrentUsage,
			MonthlyLimit:              sub.MonthlyLimit,
			RemainingIncluded:         max(remaining, 0),
			PurchasedCreditsAvailable: avail,
			IsOverage:                 remaining <= 0 && avail <= 0,
		}
		if check.IsOverage {
			check.OverageCostCents = l.cfg.OverageCents
		}
		out = check
		return nil
	})
	return out, err
}

func (l *usageLedger) IncrementUsage(dbc dbctx.Context, user *types.User, generationID uuid.UUID) (*UsageCharge, error) {
	if user == nil || generationID == uuid.Nil {
		return nil, fmt.Errorf("%w: user and generation required", apperr.ErrInvalidArgument)
	}
	var out *UsageCharge
	err := inTx(dbc, l.db, func(tx dbctx.Context) error {
		sub, err := l.lockedSubscription(tx, user)
		if err != nil {
			return err
		}
		usage, err := l.subs.IncrementUsage(tx, sub.ID)
		if err != nil {
			return fmt.Errorf("increment usage: %w", err)
		}
		charge := &UsageCharge{
			SubscriptionID:    sub.ID,
			CurrentUsage:      usage,
			RemainingIncluded: max(sub.MonthlyLimit-usage, 0),
		}
		if usage > sub.MonthlyLimit {
			credit, err := l.credits.ConsumeOldest(tx, user.ID)
			if err != nil {
				return fmt.Errorf("consume credit: %w", err)
			}
			if credit != nil {
				charge.UsedPurchasedCredit = true
			} else {
				charge.IsOverage = true
				charge.OverageChargeCents = l.cfg.OverageCents
			}
		}

		eventType := billing.EventGenerationStarted
		if charge.IsOverage {
			eventType = billing.EventOverageCharged
		}
		recordUsageEvent(tx, l.db, l.events, l.log, user.ID, &generationID, eventType, map[string]any{
			"usageCount":          usage,
			"monthlyLimit":        sub.MonthlyLimit,
			"isOverage":           charge.IsOverage,
			"overageChargeCents":  charge.OverageChargeCents,
			"usedPurchasedCredit": charge.UsedPurchasedCredit,
		})
		out = charge
		return nil
	})
	if err != nil {
		return nil, err
	}

	genType, source := course.GenerationIncluded, "plan"
	switch {
	case out.IsOverage:
		genType, source = course.GenerationOverage, "overage"
	case out.UsedPurchasedCredit:
		source = "credit"
	}
	observability.Current().ObserveCharge(genType, source, out.OverageChargeCents)
	return out, nil
}

func (l *usageLedger) UsageSummary(dbc dbctx.Context, user *types.User) (*UsageSummary, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user required", apperr.ErrInvalidArgument)
	}
	var out *UsageSummary
	err := inTx(dbc, l.db, func(tx dbctx.Context) error {
		sub, err := l.lockedSubscription(tx, user)
		if err != nil {
			return err
		}
		avail, err := l.credits.SumAvailable(tx, user.ID)
		if err != nil {
			return fmt.Errorf("sum credits: %w", err)
		}
		n, cents, err := l.gens.SumOverageSince(tx, user.ID, sub.BillingCycleStart)
		if err != nil {
			return fmt.Errorf("sum overage: %w", err)
		}
		plan, ok := l.cfg.Plan(sub.PlanType)
		if !ok {
			plan, _ = l.cfg.Plan(billing.PlanFree)
		}
		plan.GenerationsIncluded = sub.MonthlyLimit
		out = &UsageSummary{
			CurrentMonth: UsageMonth{
				GenerationsUsed:           sub.CurrentUsage,
				GenerationsIncluded:       sub.MonthlyLimit,
				OverageCount:              n,
				OverageAmountCents:        cents,
				PurchasedCreditsAvailable: avail,
			},
			Plan:       plan,
			CycleStart: sub.BillingCycleStart,
			CycleEnd:   sub.BillingCycleEnd,
		}
		return nil
	})
	return out, err
}

func (l *usageLedger) GrantCredits(dbc dbctx.Context, userID uuid.UUID, paymentID string, credits int, amountPaidCents int64, meta map[string]any) (*types.PurchasedCredit, error) {
	if userID == uuid.Nil || paymentID == "" || credits <= 0 {
		return nil, fmt.Errorf("%w: user, payment id and positive credits required", apperr.ErrInvalidArgument)
	}
	var out *types.PurchasedCredit
	err := inTx(dbc, l.db, func(tx dbctx.Context) error {
		row, err := l.credits.Create(tx, &types.PurchasedCredit{
			ID:               uuid.New(),
			UserID:           userID,
			WhopPaymentID:    paymentID,
			CreditsAmount:    credits,
			CreditsRemaining: credits,
			AmountPaidCents:  amountPaidCents,
			Status:           billing.CreditAvailable,
			Metadata:         jsonOf(meta),
			PurchasedAt:      l.now(),
		})
		if err != nil {
			return err
		}
		recordUsageEvent(tx, l.db, l.events, l.log, userID, nil, billing.EventCreditsGranted, map[string]any{
			"paymentId":       paymentID,
			"credits":         credits,
			"amountPaidCents": amountPaidCents,
		})
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("credits granted", "user_id", userID, "credits", credits)
	return out, nil
}

func (l *usageLedger) UpgradePlan(dbc dbctx.Context, user *types.User, planType string, membershipID string) (*types.Subscription, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user required", apperr.ErrInvalidArgument)
	}
	plan, ok := l.cfg.Plan(planType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan %q", apperr.ErrInvalidArgument, planType)
	}
	var out *types.Subscription
	err := inTx(dbc, l.db, func(tx dbctx.Context) error {
		sub, err := l.lockedSubscription(tx, user)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"plan_type":     plan.Type,
			"monthly_limit": plan.GenerationsIncluded,
		}
		if membershipID != "" {
			updates["whop_membership_id"] = membershipID
			sub.WhopMembershipID = &membershipID
		}
		if err := l.subs.UpdateFields(tx, sub.ID, updates); err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		l.log.Info("plan upgraded", "user_id", user.ID, "from", sub.PlanType, "to", plan.Type)
		sub.PlanType = plan.Type
		sub.MonthlyLimit = plan.GenerationsIncluded
		out = sub
		return nil
	})
	return out, err
}

func (l *usageLedger) ResetMonthlyUsage(dbc dbctx.Context, subscriptionID uuid.UUID) error {
	sub, err := l.subs.GetByID(dbc, subscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return apperr.ErrNotFound
	}
	now := l.now()
	return l.subs.ResetCycle(dbc, sub.ID, now, now.Add(l.cfg.CycleLength))
}
