package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/pointers"
)

func newTestTreeService(t *testing.T, tx *gorm.DB, status string) (CourseTreeService, *types.User, *types.CourseGeneration, []*types.CourseModule) {
	t.Helper()
	log := testutil.Logger(t)
	gens := repos.NewCourseGenerationRepo(tx, log)
	tree := repos.NewCourseTreeRepo(tx, log)
	svc := NewCourseTreeService(log, ownedOnly{gens: gens}, tree)

	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, tx, "user_tree_"+uuid.NewString()[:8], "biz_tree")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_tree", 10, 1)
	text := "source"
	up := testutil.SeedUpload(t, ctx, tx, u.ID, &text)
	g := testutil.SeedGeneration(t, ctx, tx, u.ID, sub.ID, up.ID, status)
	mods := testutil.SeedTree(t, ctx, tx, g.ID, 1, 1, 2)
	return svc, u, g, mods
}

func TestTreeEditsRequireOwner(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	svc, _, g, mods := newTestTreeService(t, tx, course.StatusCompleted)
	lesson := mods[0].Chapters[0].Lessons[0]

	_, err := svc.UpdateLesson(dbc, uuid.New(), g.ID, lesson.ID, LessonPatch{Title: pointers.Ptr("Hijacked")})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	err = svc.DeleteModule(dbc, uuid.New(), g.ID, mods[0].ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.CreateModule(dbc, uuid.New(), uuid.New(), ModuleInput{Title: "x"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTreeEditsRejectUnfinishedGeneration(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	for _, status := range []string{course.StatusProcessing, course.StatusFailed} {
		t.Run(status, func(t *testing.T) {
			svc, u, g, mods := newTestTreeService(t, tx, status)
			_, err := svc.UpdateModule(dbc, u.ID, g.ID, mods[0].ID, ModulePatch{Title: pointers.Ptr("New")})
			require.ErrorIs(t, err, apperr.ErrInvalidState)
			_, err = svc.CreateLesson(dbc, u.ID, g.ID, LessonInput{ChapterID: mods[0].Chapters[0].ID, Title: "Extra"})
			require.ErrorIs(t, err, apperr.ErrInvalidState)
		})
	}
}

func TestTreeLessonPatchTouchesOnlyGivenFields(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	svc, u, g, mods := newTestTreeService(t, tx, course.StatusPublished)
	before := mods[0].Chapters[0].Lessons[0]

	got, err := svc.UpdateLesson(dbc, u.ID, g.ID, before.ID, LessonPatch{KeyTakeaway: pointers.Ptr("Remember this")})
	require.NoError(t, err)
	require.Equal(t, "Remember this", got.KeyTakeaway)
	require.Equal(t, before.Title, got.Title)
	require.Equal(t, before.Content, got.Content)
	require.Equal(t, before.LessonType, got.LessonType)

	got, err = svc.UpdateLesson(dbc, u.ID, g.ID, before.ID, LessonPatch{Content: pointers.Ptr("one two three")})
	require.NoError(t, err)
	require.Equal(t, "one two three", got.Content)
	require.Equal(t, 3, got.WordCount)
	require.Equal(t, "Remember this", got.KeyTakeaway)
	require.Equal(t, before.Title, got.Title)

	_, err = svc.UpdateLesson(dbc, u.ID, g.ID, before.ID, LessonPatch{Title: pointers.Ptr("   ")})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = svc.UpdateLesson(dbc, u.ID, g.ID, uuid.New(), LessonPatch{Title: pointers.Ptr("Ghost")})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTreeModulePatchKeepsDescription(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	svc, u, g, mods := newTestTreeService(t, tx, course.StatusCompleted)

	_, err := svc.UpdateModule(dbc, u.ID, g.ID, mods[0].ID, ModulePatch{Description: pointers.Ptr("Overview")})
	require.NoError(t, err)
	got, err := svc.UpdateModule(dbc, u.ID, g.ID, mods[0].ID, ModulePatch{EstimatedMinutes: pointers.Ptr(25)})
	require.NoError(t, err)
	require.Equal(t, 25, got.EstimatedMinutes)
	require.Equal(t, "Overview", got.Description)
	require.Equal(t, mods[0].Title, got.Title)

	_, err = svc.UpdateModule(dbc, u.ID, g.ID, mods[0].ID, ModulePatch{EstimatedMinutes: pointers.Ptr(-1)})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
