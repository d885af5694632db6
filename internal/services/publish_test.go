package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
)

// fakePlatform answers every create with an id derived from the idempotency
// key, so tests can check which node each external id landed on.
type fakePlatform struct {
	mu          sync.Mutex
	keys        []string
	failLessons int // fail the Nth lesson create when > 0
	lessons     int
	products    []whop.CreateProductInput
	attached    map[string]string // experience id -> product id
}

func (f *fakePlatform) record(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "ext_" + key
}

func (f *fakePlatform) CreateExperience(ctx context.Context, key string, in whop.CreateExperienceInput) (whop.Experience, error) {
	return whop.Experience{ID: f.record(key)}, nil
}

func (f *fakePlatform) CreateCourse(ctx context.Context, key string, in whop.CreateCourseInput) (whop.Course, error) {
	return whop.Course{ID: f.record(key)}, nil
}

func (f *fakePlatform) CreateChapter(ctx context.Context, key string, in whop.CreateChapterInput) (whop.Chapter, error) {
	return whop.Chapter{ID: f.record(key)}, nil
}

func (f *fakePlatform) CreateLesson(ctx context.Context, key string, in whop.CreateLessonInput) (whop.Lesson, error) {
	f.mu.Lock()
	f.lessons++
	n := f.lessons
	f.mu.Unlock()
	if f.failLessons > 0 && n == f.failLessons {
		return whop.Lesson{}, &whop.APIError{StatusCode: 502, Body: "bad gateway"}
	}
	return whop.Lesson{ID: f.record(key)}, nil
}

func (f *fakePlatform) CreateProduct(ctx context.Context, key string, in whop.CreateProductInput) (whop.Product, error) {
	f.mu.Lock()
	f.products = append(f.products, in)
	f.mu.Unlock()
	// Same external identifier, same product, as the platform upserts on it.
	return whop.Product{ID: "prod_" + in.ExternalIdentifier}, nil
}

func (f *fakePlatform) AttachExperience(ctx context.Context, experienceID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attached == nil {
		f.attached = map[string]string{}
	}
	f.attached[experienceID] = productID
	return nil
}

// ownedOnly satisfies GenerationService with just the ownership lookup.
type ownedOnly struct {
	GenerationService
	gens repos.CourseGenerationRepo
}

func (o ownedOnly) Owned(dbc dbctx.Context, userID, id uuid.UUID) (*types.CourseGeneration, error) {
	g, err := o.gens.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.ErrNotFound
	}
	if g.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return g, nil
}

func newTestPublisher(t *testing.T, tx *gorm.DB, platform CoursePlatform) (PublishService, repos.CourseGenerationRepo, repos.CourseTreeRepo) {
	t.Helper()
	log := testutil.Logger(t)
	gens := repos.NewCourseGenerationRepo(tx, log)
	tree := repos.NewCourseTreeRepo(tx, log)
	svc := NewPublishService(tx, log, PublishConfig{AppID: "app_test", CompanyID: "biz_default"}, platform,
		ownedOnly{gens: gens}, gens, tree, repos.NewUsageEventRepo(tx, log), NewGenerationNotifier(nil, log))
	return svc, gens, tree
}

func seedPublishable(t *testing.T, tx *gorm.DB, status string) (*types.User, *types.CourseGeneration, []*types.CourseModule) {
	t.Helper()
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, tx, "user_pub_"+uuid.NewString()[:8], "biz_pub")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_pub", 10, 1)
	text := "source"
	up := testutil.SeedUpload(t, ctx, tx, u.ID, &text)
	g := testutil.SeedGeneration(t, ctx, tx, u.ID, sub.ID, up.ID, status)
	mods := testutil.SeedTree(t, ctx, tx, g.ID, 2, 2, 2)
	return u, g, mods
}

func TestPublishFreshStoresIDsByNode(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	platform := &fakePlatform{}
	svc, gens, tree := newTestPublisher(t, tx, platform)
	u, g, _ := seedPublishable(t, tx, course.StatusCompleted)

	res, err := svc.Publish(dbc, u, g.ID, PublishInput{Mode: PublishFresh})
	require.NoError(t, err)
	require.Equal(t, PublishCounts{Modules: 2, Chapters: 4, Lessons: 8}, res.Counts)
	require.Equal(t, "ext_experience:"+g.ID.String(), res.ExperienceID)
	require.Len(t, res.CourseIDs, 2)
	require.Contains(t, res.URL, "biz_pub")
	require.Equal(t, "prod_"+whop.ProductExternalID("biz_pub"), res.ProductID)
	require.Equal(t, res.ProductID, platform.attached[res.ExperienceID])
	require.Len(t, platform.products, 1)
	require.Equal(t, "biz_pub", platform.products[0].CompanyID)

	got, err := gens.GetByID(dbc, g.ID)
	require.NoError(t, err)
	require.Equal(t, course.StatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	require.NotNil(t, got.WhopProductID)
	require.Equal(t, res.ProductID, *got.WhopProductID)

	mods, err := tree.Hydrate(dbc, g.ID)
	require.NoError(t, err)
	for _, m := range mods {
		require.NotNil(t, m.WhopCourseID)
		require.Equal(t, "ext_course:"+m.ID.String(), *m.WhopCourseID)
		for _, ch := range m.Chapters {
			require.NotNil(t, ch.WhopChapterID)
			require.Equal(t, "ext_chapter:"+ch.ID.String(), *ch.WhopChapterID)
			for _, l := range ch.Lessons {
				require.NotNil(t, l.WhopLessonID)
				require.Equal(t, "ext_lesson:"+l.ID.String(), *l.WhopLessonID)
			}
		}
	}

	_, err = svc.Publish(dbc, u, g.ID, PublishInput{Mode: PublishFresh})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPublishPartialFailureKeepsCreatedIDs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	platform := &fakePlatform{failLessons: 3}
	svc, gens, tree := newTestPublisher(t, tx, platform)
	u, g, _ := seedPublishable(t, tx, course.StatusCompleted)

	_, err := svc.Publish(dbc, u, g.ID, PublishInput{Mode: PublishFresh})
	var pe *PublishError
	require.True(t, errors.As(err, &pe), "expected PublishError, got %v", err)
	require.Equal(t, PublishCounts{Modules: 1, Chapters: 2, Lessons: 2}, pe.Counts)

	got, err := gens.GetByID(dbc, g.ID)
	require.NoError(t, err)
	require.Equal(t, course.StatusCompleted, got.Status)

	mods, err := tree.Hydrate(dbc, g.ID)
	require.NoError(t, err)
	withIDs := 0
	for _, m := range mods {
		for _, ch := range m.Chapters {
			for _, l := range ch.Lessons {
				if l.WhopLessonID != nil {
					withIDs++
				}
			}
		}
	}
	require.Equal(t, 2, withIDs)
}

func TestPublishFreshReusesCompanyProduct(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	platform := &fakePlatform{}
	svc, _, _ := newTestPublisher(t, tx, platform)
	u, g1, _ := seedPublishable(t, tx, course.StatusCompleted)
	sub := testutil.SeedSubscription(t, context.Background(), tx, u.ID, "biz_pub", 10, 0)
	text := "second source"
	up := testutil.SeedUpload(t, context.Background(), tx, u.ID, &text)
	g2 := testutil.SeedGeneration(t, context.Background(), tx, u.ID, sub.ID, up.ID, course.StatusCompleted)
	testutil.SeedTree(t, context.Background(), tx, g2.ID, 1, 1, 1)

	first, err := svc.Publish(dbc, u, g1.ID, PublishInput{Mode: PublishFresh})
	require.NoError(t, err)
	second, err := svc.Publish(dbc, u, g2.ID, PublishInput{Mode: PublishFresh})
	require.NoError(t, err)

	require.NotEqual(t, first.ExperienceID, second.ExperienceID)
	require.Equal(t, first.ProductID, second.ProductID)
	require.Len(t, platform.products, 2)
	require.Equal(t, platform.products[0].ExternalIdentifier, platform.products[1].ExternalIdentifier)
	require.Equal(t, first.ProductID, platform.attached[second.ExperienceID])
}

func TestPublishAppendUsesGivenCourse(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	platform := &fakePlatform{}
	svc, _, tree := newTestPublisher(t, tx, platform)
	u, g, _ := seedPublishable(t, tx, course.StatusCompleted)

	res, err := svc.Publish(dbc, u, g.ID, PublishInput{Mode: PublishAppend, CourseID: "course_existing", ExperienceID: "exp_existing"})
	require.NoError(t, err)
	require.Equal(t, 0, res.Counts.Modules)
	require.Equal(t, 4, res.Counts.Chapters)
	require.Equal(t, []string{"course_existing"}, res.CourseIDs)
	for _, k := range platform.keys {
		require.False(t, strings.HasPrefix(k, "experience:") || strings.HasPrefix(k, "course:"), "append created %s", k)
	}
	require.Empty(t, platform.products)
	require.Empty(t, platform.attached)

	mods, err := tree.Hydrate(dbc, g.ID)
	require.NoError(t, err)
	for _, m := range mods {
		require.NotNil(t, m.WhopCourseID)
		require.Equal(t, "course_existing", *m.WhopCourseID)
	}
}

func TestPublishRequiresCompletedGeneration(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	platform := &fakePlatform{}
	svc, _, _ := newTestPublisher(t, tx, platform)

	for _, status := range []string{course.StatusProcessing, course.StatusFailed} {
		t.Run(status, func(t *testing.T) {
			u, g, _ := seedPublishable(t, tx, status)
			_, err := svc.Publish(dbc, u, g.ID, PublishInput{Mode: PublishFresh})
			require.ErrorIs(t, err, apperr.ErrInvalidState)
			require.Empty(t, platform.keys)
		})
	}
}

func TestPublishRejectsBadInput(t *testing.T) {
	log := testutil.Logger(t)
	svc := NewPublishService(nil, log, PublishConfig{AppID: "app"}, &fakePlatform{}, nil, nil, nil, nil, nil)
	u := &types.User{ID: uuid.New()}
	cases := []PublishInput{
		{Mode: "merge"},
		{Mode: PublishAppend},
		{Mode: PublishAppend, CourseID: "   "},
	}
	for i, in := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := svc.Publish(dbctx.Context{Ctx: context.Background()}, u, uuid.New(), in)
			require.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}
	_, err := svc.Publish(dbctx.Context{Ctx: context.Background()}, nil, uuid.New(), PublishInput{})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}
