package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
)

func newTestLedger(t *testing.T, db *gorm.DB) (UsageLedger, repos.UsageEventRepo, repos.SubscriptionRepo) {
	t.Helper()
	log := testutil.Logger(t)
	subs := repos.NewSubscriptionRepo(db, log)
	events := repos.NewUsageEventRepo(db, log)
	l := NewUsageLedger(db, log, DefaultBillingConfig(), subs,
		repos.NewPurchasedCreditRepo(db, log), events, repos.NewCourseGenerationRepo(db, log))
	return l, events, subs
}

func TestIncrementUsageChargesExactlyOncePerCall(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, events, subs := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_once", "biz_ledger")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_ledger", 10, 0)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := ledger.IncrementUsage(dbc, u, uuid.New())
		require.NoError(t, err)
	}

	got, err := subs.GetByID(dbc, sub.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.CurrentUsage)

	list, err := events.ListByUser(dbc, u.ID, 100)
	require.NoError(t, err)
	require.Len(t, list, n)
}

func TestIncrementUsageConcurrentCallsAllCount(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	ledger, events, subs := newTestLedger(t, db)

	// Committed rows: each call below runs in its own transaction.
	u := testutil.SeedUser(t, ctx, db, "user_concurrent_"+uuid.NewString()[:8], "biz_ledger")
	sub := testutil.SeedSubscription(t, ctx, db, u.ID, "biz_ledger", 100, 0)
	t.Cleanup(func() {
		db.Where("user_id = ?", u.ID).Delete(&types.UsageEvent{})
		db.Unscoped().Where("id = ?", sub.ID).Delete(&types.Subscription{})
		db.Unscoped().Where("id = ?", u.ID).Delete(&types.User{})
	})

	const n = 12
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := ledger.IncrementUsage(dbctx.Context{Ctx: ctx}, u, uuid.New())
			return err
		})
	}
	require.NoError(t, g.Wait())

	dbc := dbctx.Context{Ctx: ctx}
	got, err := subs.GetByID(dbc, sub.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.CurrentUsage)

	list, err := events.ListByUser(dbc, u.ID, 100)
	require.NoError(t, err)
	require.Len(t, list, n)
}

func TestIncrementUsageOverageBoundary(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, events, _ := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_boundary", "biz_ledger")
	testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_ledger", 10, 9)

	tenth, err := ledger.IncrementUsage(dbc, u, uuid.New())
	require.NoError(t, err)
	require.False(t, tenth.IsOverage)
	require.Zero(t, tenth.OverageChargeCents)
	require.Equal(t, 10, tenth.CurrentUsage)

	genID := uuid.New()
	eleventh, err := ledger.IncrementUsage(dbc, u, genID)
	require.NoError(t, err)
	require.True(t, eleventh.IsOverage)
	require.Equal(t, DefaultBillingConfig().OverageCents, eleventh.OverageChargeCents)
	require.False(t, eleventh.UsedPurchasedCredit)

	evs, err := events.ListByGeneration(dbc, genID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, billing.EventOverageCharged, evs[0].EventType)
}

func TestIncrementUsagePrefersPurchasedCredit(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, _, _ := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_credit", "biz_ledger")
	testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_ledger", 10, 10)
	credit := testutil.SeedCredit(t, ctx, tx, u.ID, 1, time.Now().Add(-time.Hour))

	check, err := ledger.CheckUsageLimit(dbc, u)
	require.NoError(t, err)
	require.False(t, check.IsOverage)
	require.Equal(t, 1, check.PurchasedCreditsAvailable)

	charge, err := ledger.IncrementUsage(dbc, u, uuid.New())
	require.NoError(t, err)
	require.True(t, charge.UsedPurchasedCredit)
	require.False(t, charge.IsOverage)

	var after types.PurchasedCredit
	require.NoError(t, tx.First(&after, "id = ?", credit.ID).Error)
	require.Equal(t, 0, after.CreditsRemaining)
	require.Equal(t, billing.CreditUsed, after.Status)

	next, err := ledger.IncrementUsage(dbc, u, uuid.New())
	require.NoError(t, err)
	require.True(t, next.IsOverage)
}

func TestCheckUsageLimitCreatesFreeSubscription(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, _, _ := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_fresh", "biz_ledger")
	check, err := ledger.CheckUsageLimit(dbc, u)
	require.NoError(t, err)
	require.Equal(t, DefaultBillingConfig().FreeMonthlyLimit, check.RemainingIncluded)
	require.False(t, check.IsOverage)
	require.True(t, check.Allowed())

	again, err := ledger.EnsureSubscription(dbc, u)
	require.NoError(t, err)
	require.Equal(t, check.SubscriptionID, again.ID)
	require.Equal(t, billing.PlanFree, again.PlanType)
}

func TestExpiredCycleResetsBeforeCharge(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, _, subs := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_cycle", "biz_ledger")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_ledger", 10, 10)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, subs.ResetCycle(dbc, sub.ID, past.Add(-30*24*time.Hour), past))
	require.NoError(t, subs.UpdateFields(dbc, sub.ID, map[string]interface{}{"current_usage": 10}))

	charge, err := ledger.IncrementUsage(dbc, u, uuid.New())
	require.NoError(t, err)
	require.False(t, charge.IsOverage)
	require.Equal(t, 1, charge.CurrentUsage)
}

func TestGrantCreditsIsIdempotentByPayment(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, _, _ := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_grant", "biz_ledger")
	_, err := ledger.GrantCredits(dbc, u.ID, "pay_1", 3, 1500, nil)
	require.NoError(t, err)
	_, err = ledger.GrantCredits(dbc, u.ID, "pay_1", 3, 1500, nil)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
}

func TestUpgradePlanSetsCatalogLimit(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	ledger, events, _ := newTestLedger(t, db)

	u := testutil.SeedUser(t, ctx, tx, "user_upgrade", "biz_ledger")
	sub, err := ledger.UpgradePlan(dbc, u, billing.PlanGrowth, "mem_1")
	require.NoError(t, err)
	require.Equal(t, billing.PlanGrowth, sub.PlanType)
	require.Equal(t, DefaultBillingConfig().GrowthMonthlyLimit, sub.MonthlyLimit)

	// Only the subscription row changes.
	evs, err := events.ListByUser(dbc, u.ID, 10)
	require.NoError(t, err)
	require.Empty(t, evs)

	_, err = ledger.UpgradePlan(dbc, u, "platinum", "")
	require.Error(t, err)

	summary, err := ledger.UsageSummary(dbc, u)
	require.NoError(t, err)
	require.Equal(t, "Growth Plan", summary.Plan.Name)
	require.Equal(t, 10, summary.CurrentMonth.GenerationsIncluded)
}
