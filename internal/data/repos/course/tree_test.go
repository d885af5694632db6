package course

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
)

func TestCourseTreeRepoRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	repo := NewCourseTreeRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "user_tree", "biz_test")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_test", 10, 0)
	up := testutil.SeedUpload(t, ctx, tx, u.ID, nil)
	gen := testutil.SeedGeneration(t, ctx, tx, u.ID, sub.ID, up.ID, course.StatusProcessing)

	var modules []*types.CourseModule
	for m := 0; m < 3; m++ {
		mod := &types.CourseModule{Title: "M", OrderIndex: m}
		for c := 0; c < 2; c++ {
			ch := &types.CourseChapter{Title: "C", OrderIndex: c}
			for l := 0; l < 4; l++ {
				ch.Lessons = append(ch.Lessons, &types.CourseLesson{
					Title:      "L",
					LessonType: course.LessonText,
					Content:    uuid.NewString(),
					OrderIndex: l,
				})
			}
			mod.Chapters = append(mod.Chapters, ch)
		}
		modules = append(modules, mod)
	}
	require.NoError(t, repo.InsertTree(dbc, gen.ID, modules))

	tree, err := repo.Hydrate(dbc, gen.ID)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	for mi, m := range tree {
		require.Equal(t, modules[mi].ID, m.ID)
		require.Equal(t, mi, m.OrderIndex)
		require.Len(t, m.Chapters, 2)
		for ci, c := range m.Chapters {
			require.Equal(t, modules[mi].Chapters[ci].ID, c.ID)
			require.Len(t, c.Lessons, 4)
			for li, l := range c.Lessons {
				want := modules[mi].Chapters[ci].Lessons[li]
				require.Equal(t, want.ID, l.ID)
				require.Equal(t, want.Content, l.Content)
				require.Equal(t, li, l.OrderIndex)
			}
		}
	}
}

func TestCourseTreeRepoOrderIndexAndCascade(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	repo := NewCourseTreeRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "user_order", "biz_test")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_test", 10, 0)
	up := testutil.SeedUpload(t, ctx, tx, u.ID, nil)
	gen := testutil.SeedGeneration(t, ctx, tx, u.ID, sub.ID, up.ID, course.StatusCompleted)

	modA, err := repo.CreateModule(dbc, &types.CourseModule{GenerationID: gen.ID, Title: "A"})
	require.NoError(t, err)
	modB, err := repo.CreateModule(dbc, &types.CourseModule{GenerationID: gen.ID, Title: "B"})
	require.NoError(t, err)
	require.Equal(t, 0, modA.OrderIndex)
	require.Equal(t, 1, modB.OrderIndex)

	// Interleave creates in a sibling module; A's chapters must still be 0,1,2.
	var aChapters []*types.CourseChapter
	for i := 0; i < 3; i++ {
		c, err := repo.CreateChapter(dbc, &types.CourseChapter{ModuleID: modA.ID, Title: "a"})
		require.NoError(t, err)
		aChapters = append(aChapters, c)
		_, err = repo.CreateChapter(dbc, &types.CourseChapter{ModuleID: modB.ID, Title: "b"})
		require.NoError(t, err)
	}
	for i, c := range aChapters {
		require.Equal(t, i, c.OrderIndex)
	}

	l0, err := repo.CreateLesson(dbc, &types.CourseLesson{ChapterID: aChapters[1].ID, Title: "l0", LessonType: course.LessonText})
	require.NoError(t, err)
	require.Equal(t, 0, l0.OrderIndex)

	// Deleting the middle chapter leaves a gap and removes its lessons.
	require.NoError(t, repo.DeleteChapter(dbc, aChapters[1].ID))
	gone, err := repo.GetLesson(dbc, gen.ID, l0.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	next, err := repo.CreateChapter(dbc, &types.CourseChapter{ModuleID: modA.ID, Title: "a4"})
	require.NoError(t, err)
	require.Equal(t, 3, next.OrderIndex)

	tree, err := repo.Hydrate(dbc, gen.ID)
	require.NoError(t, err)
	require.Len(t, tree[0].Chapters, 3)
	require.Equal(t, []int{0, 2, 3}, []int{tree[0].Chapters[0].OrderIndex, tree[0].Chapters[1].OrderIndex, tree[0].Chapters[2].OrderIndex})

	// Scoped lookups reject nodes from another generation.
	other, err := repo.GetChapter(dbc, uuid.New(), aChapters[0].ID)
	require.NoError(t, err)
	require.Nil(t, other)
}
