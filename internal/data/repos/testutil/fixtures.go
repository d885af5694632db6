package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, whopUserID, companyID string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:            uuid.New(),
		WhopUserID:    whopUserID,
		WhopCompanyID: companyID,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedSubscription(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, companyID string, limit, usage int) *types.Subscription {
	tb.Helper()
	now := time.Now().UTC()
	s := &types.Subscription{
		ID:                uuid.New(),
		UserID:            userID,
		WhopCompanyID:     companyID,
		PlanType:          billing.PlanGrowth,
		Status:            billing.SubscriptionActive,
		MonthlyLimit:      limit,
		CurrentUsage:      usage,
		BillingCycleStart: now.Add(-24 * time.Hour),
		BillingCycleEnd:   now.Add(29 * 24 * time.Hour),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed subscription: %v", err)
	}
	return s
}

func SeedCredit(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, credits int, purchasedAt time.Time) *types.PurchasedCredit {
	tb.Helper()
	c := &types.PurchasedCredit{
		ID:               uuid.New(),
		UserID:           userID,
		WhopPaymentID:    "pay_" + uuid.NewString(),
		CreditsAmount:    credits,
		CreditsRemaining: credits,
		AmountPaidCents:  int64(credits) * 500,
		Status:           billing.CreditAvailable,
		PurchasedAt:      purchasedAt,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed credit: %v", err)
	}
	return c
}

func SeedUpload(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, text *string) *types.PdfUpload {
	tb.Helper()
	status := course.ExtractionUploading
	if text != nil {
		status = course.ExtractionReady
	}
	u := &types.PdfUpload{
		ID:               uuid.New(),
		UserID:           userID,
		Filename:         "handbook.pdf",
		StorageKey:       "uploads/" + userID.String() + "/handbook.pdf",
		StorageURL:       "https://storage.googleapis.com/test/handbook.pdf",
		FileSize:         1024,
		MimeType:         "application/pdf",
		PageCount:        5,
		ExtractionStatus: status,
		ExtractedText:    text,
		ExpiresAt:        time.Now().UTC().Add(30 * 24 * time.Hour),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed upload: %v", err)
	}
	return u
}

func SeedGeneration(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, subscriptionID, uploadID uuid.UUID, status string) *types.CourseGeneration {
	tb.Helper()
	g := &types.CourseGeneration{
		ID:             uuid.New(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		PdfUploadID:    uploadID,
		Title:          "Handbook",
		Status:         status,
		GenerationType: course.GenerationIncluded,
		WhopCompanyID:  "biz_test",
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed generation: %v", err)
	}
	return g
}

// SeedTree builds modules x chapters x lessons under generationID and returns the modules.
func SeedTree(tb testing.TB, ctx context.Context, tx *gorm.DB, generationID uuid.UUID, modules, chapters, lessons int) []*types.CourseModule {
	tb.Helper()
	out := make([]*types.CourseModule, 0, modules)
	for m := 0; m < modules; m++ {
		mod := &types.CourseModule{ID: uuid.New(), GenerationID: generationID, Title: fmt.Sprintf("Module %d", m), OrderIndex: m}
		if err := tx.WithContext(ctx).Create(mod).Error; err != nil {
			tb.Fatalf("seed module: %v", err)
		}
		for c := 0; c < chapters; c++ {
			ch := &types.CourseChapter{ID: uuid.New(), ModuleID: mod.ID, Title: fmt.Sprintf("Chapter %d.%d", m, c), OrderIndex: c}
			if err := tx.WithContext(ctx).Create(ch).Error; err != nil {
				tb.Fatalf("seed chapter: %v", err)
			}
			for l := 0; l < lessons; l++ {
				ls := &types.CourseLesson{
					ID:         uuid.New(),
					ChapterID:  ch.ID,
					Title:      fmt.Sprintf("Lesson %d.%d.%d", m, c, l),
					LessonType: course.LessonText,
					Content:    fmt.Sprintf("# Lesson %d.%d.%d\n\nBody.", m, c, l),
					OrderIndex: l,
				}
				if err := tx.WithContext(ctx).Create(ls).Error; err != nil {
					tb.Fatalf("seed lesson: %v", err)
				}
				ch.Lessons = append(ch.Lessons, ls)
			}
			mod.Chapters = append(mod.Chapters, ch)
		}
		out = append(out, mod)
	}
	return out
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
