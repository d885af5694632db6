package coursegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

var idLine = regexp.MustCompile(`(?m)^ID: (\S+)$`)

// fakeLLM answers outline requests with a fixed outline and lesson requests
// by echoing every requested id, unless drop says otherwise.
type fakeLLM struct {
	mu       sync.Mutex
	outline  string
	drop     map[string]bool
	calls    []llm.Request
	badFirst bool
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if req.SchemaName == SchemaOutline {
		if f.badFirst && n == 1 {
			return llm.Response{Text: "Sure! Here is your course."}, nil
		}
		return llm.Response{Text: f.outline, InputTokens: 100, OutputTokens: 50}, nil
	}
	var out struct {
		Lessons []LessonContent `json:"lessons"`
	}
	for _, m := range idLine.FindAllStringSubmatch(req.User, -1) {
		if f.drop[m[1]] {
			continue
		}
		out.Lessons = append(out.Lessons, LessonContent{ID: m[1], Content: "## " + m[1] + "\n\nYou will learn **one** thing.", WordCount: 6})
	}
	b, _ := json.Marshal(out)
	return llm.Response{Text: string(b), InputTokens: 10, OutputTokens: 20}, nil
}

func testOutline(modules, chapters, lessons int) Outline {
	o := Outline{CourseTitle: "Retention Playbook", CourseDescription: "Keep customers.", EstimatedTotalMinutes: 60}
	for m := 0; m < modules; m++ {
		mod := OutlineModule{Title: fmt.Sprintf("Module %d", m), Description: "d", EstimatedMinutes: 20}
		for c := 0; c < chapters; c++ {
			ch := OutlineChapter{Title: fmt.Sprintf("Chapter %d.%d", m, c), Description: "d", EstimatedMinutes: 10}
			for l := 0; l < lessons; l++ {
				ch.Lessons = append(ch.Lessons, OutlineLesson{Title: fmt.Sprintf("Lesson %d.%d.%d", m, c, l), KeyTakeaway: "k", EstimatedMinutes: 5})
			}
			mod.Chapters = append(mod.Chapters, ch)
		}
		o.Modules = append(o.Modules, mod)
	}
	return o
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestParseOutlineRejectsContractViolations(t *testing.T) {
	valid := testOutline(3, 3, 3)
	_, err := ParseOutline(mustJSON(t, valid), DefaultLimits)
	require.NoError(t, err)

	fenced := "```json\n" + mustJSON(t, valid) + "\n```"
	_, err = ParseOutline(fenced, DefaultLimits)
	require.NoError(t, err)

	noLessons := testOutline(1, 1, 1)
	noLessons.Modules[0].Chapters[0].Lessons = nil
	zeroMinutes := testOutline(1, 1, 1)
	zeroMinutes.Modules[0].Chapters[0].Lessons[0].EstimatedMinutes = 0

	cases := map[string]string{
		"not json":      "Here is your outline",
		"empty":         "",
		"unknown field": `{"courseTitle":"x","modules":[],"extra":1}`,
		"no modules":    `{"courseTitle":"x","courseDescription":"","estimatedTotalMinutes":1,"modules":[]}`,
		"no lessons":    mustJSON(t, noLessons),
		"zero minutes":  mustJSON(t, zeroMinutes),
		"too many":      mustJSON(t, testOutline(13, 1, 1)),
		"trailing":      mustJSON(t, valid) + " {}",
	}
	for name, raw := range cases {
		_, err := ParseOutline(raw, DefaultLimits)
		var ce *ContractError
		require.True(t, errors.As(err, &ce), name)
		require.Equal(t, StageOutline, ce.Stage, name)
	}
}

func TestParseLessonsRequiresEveryKey(t *testing.T) {
	refs := Plan(testOutline(1, 1, 3))
	raw := `{"lessons":[{"id":"lesson-0-0-0","content":"a","wordCount":1},{"id":"lesson-0-0-2","content":"c","wordCount":1}]}`
	_, err := ParseLessons(raw, refs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "lesson-0-0-1")

	raw = `{"lessons":[{"id":"lesson-0-0-2","content":"c","wordCount":1},{"id":"lesson-0-0-0","content":"a","wordCount":1},{"id":"lesson-0-0-1","content":"b","wordCount":1}]}`
	got, err := ParseLessons(raw, refs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "b", got["lesson-0-0-1"].Content)

	raw = `{"lessons":[{"id":"lesson-0-0-0","content":"  ","wordCount":0}]}`
	_, err = ParseLessons(raw, refs[:1])
	require.True(t, IsContractError(err))
}

func TestParseLessonsRejectsUnrequestedKey(t *testing.T) {
	refs := Plan(testOutline(1, 1, 2))
	raw := `{"lessons":[{"id":"lesson-0-0-0","content":"a","wordCount":1},{"id":"lesson-0-0-1","content":"b","wordCount":1},{"id":"lesson-9-9-9","content":"x","wordCount":1}]}`
	_, err := ParseLessons(raw, refs)
	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, StageLessons, ce.Stage)
	require.Contains(t, ce.Reason, "lesson-9-9-9")

	// A key from another batch is just as foreign.
	_, err = ParseLessons(`{"lessons":[{"id":"lesson-0-0-1","content":"b","wordCount":1}]}`, refs[:1])
	require.True(t, IsContractError(err))
}

func TestBatchesNeverExceedTen(t *testing.T) {
	refs := Plan(testOutline(3, 3, 3))
	require.Len(t, refs, 27)
	for _, size := range []int{0, 4, 10, 25} {
		batches := Batches(refs, size)
		total := 0
		for _, b := range batches {
			require.LessOrEqual(t, len(b), MaxBatchSize)
			total += len(b)
		}
		require.Equal(t, 27, total)
	}
	require.Len(t, Batches(refs, 4), 7)
	require.Equal(t, "lesson-0-0-0", refs[0].Key)
	require.Equal(t, "lesson-2-2-2", refs[26].Key)
}

func TestGenerateBuildsTreeInOutlineOrder(t *testing.T) {
	outline := testOutline(3, 2, 4)
	fake := &fakeLLM{outline: mustJSON(t, outline)}
	cfg := DefaultConfig()
	cfg.BatchSize = 5
	cfg.Parallelism = 4
	g := NewGenerator(logger.Nop(), fake, cfg)

	var lastDone, lastTotal int
	var mu sync.Mutex
	res, err := g.Generate(context.Background(), "handbook.pdf", "source text", func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if done > lastDone {
			lastDone = done
		}
		lastTotal = total
	})
	require.NoError(t, err)
	require.Equal(t, 24, lastDone)
	require.Equal(t, 24, lastTotal)

	require.Len(t, res.Modules, 3)
	for mi, m := range res.Modules {
		require.Equal(t, mi, m.OrderIndex)
		require.Equal(t, outline.Modules[mi].Title, m.Title)
		for ci, c := range m.Chapters {
			require.Equal(t, ci, c.OrderIndex)
			require.Len(t, c.Lessons, 4)
			for li, l := range c.Lessons {
				require.Equal(t, li, l.OrderIndex)
				require.True(t, strings.HasPrefix(l.Content, "## "+LessonKey(mi, ci, li)))
				require.Equal(t, "text", l.LessonType)
				require.Positive(t, l.WordCount)
			}
		}
	}
	// 1 outline call + ceil(24/5) batch calls.
	require.Equal(t, 6, res.Usage.Calls)
	for _, c := range fake.calls {
		require.True(t, c.JSON)
		require.NotNil(t, c.Schema)
	}
	require.NotEmpty(t, res.Structure)
}

func TestGenerateFailsOnMissingLesson(t *testing.T) {
	fake := &fakeLLM{
		outline: mustJSON(t, testOutline(2, 2, 3)),
		drop:    map[string]bool{"lesson-1-0-2": true},
	}
	cfg := DefaultConfig()
	cfg.Attempts = 2
	g := NewGenerator(logger.Nop(), fake, cfg)

	_, err := g.Generate(context.Background(), "f.pdf", "text", nil)
	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, StageLessons, ce.Stage)
	require.Contains(t, ce.Reason, "lesson-1-0-2")
}

func TestGenerateRetriesMalformedOutline(t *testing.T) {
	fake := &fakeLLM{outline: mustJSON(t, testOutline(1, 1, 2)), badFirst: true}
	cfg := DefaultConfig()
	cfg.Attempts = 2
	g := NewGenerator(logger.Nop(), fake, cfg)

	res, err := g.Generate(context.Background(), "f.pdf", "text", nil)
	require.NoError(t, err)
	require.Len(t, res.Modules, 1)
	require.Contains(t, fake.calls[1].User, "PREVIOUS RESPONSE WAS REJECTED")

	cfg.Attempts = 1
	fake = &fakeLLM{outline: mustJSON(t, testOutline(1, 1, 2)), badFirst: true}
	_, err = NewGenerator(logger.Nop(), fake, cfg).Generate(context.Background(), "f.pdf", "text", nil)
	require.True(t, IsContractError(err))
}

func TestBuildTreeRejectsMissingContent(t *testing.T) {
	_, err := BuildTree(testOutline(1, 1, 2), map[string]LessonContent{
		"lesson-0-0-0": {ID: "lesson-0-0-0", Content: "x"},
	})
	require.True(t, IsContractError(err))
}
