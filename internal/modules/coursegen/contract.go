package coursegen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
)

const (
	StageOutline = "outline"
	StageLessons = "lessons"
)

// ContractError is a completion that does not match the expected JSON
// contract. Reason is stored verbatim on the failed generation.
type ContractError struct {
	Stage  string
	Reason string
	Raw    string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s response invalid: %s", e.Stage, e.Reason)
}

func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

func contractErr(stage, raw, format string, args ...any) *ContractError {
	if len(raw) > 2000 {
		raw = raw[:2000]
	}
	return &ContractError{Stage: stage, Reason: fmt.Sprintf(format, args...), Raw: raw}
}

type Outline struct {
	CourseTitle           string          `json:"courseTitle"`
	CourseDescription     string          `json:"courseDescription"`
	EstimatedTotalMinutes int             `json:"estimatedTotalMinutes"`
	Modules               []OutlineModule `json:"modules"`
}

type OutlineModule struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	EstimatedMinutes int              `json:"estimatedMinutes"`
	Chapters         []OutlineChapter `json:"chapters"`
}

type OutlineChapter struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
	Lessons          []OutlineLesson `json:"lessons"`
}

type OutlineLesson struct {
	Title            string `json:"title"`
	KeyTakeaway      string `json:"keyTakeaway"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
}

// Limits bounds what a parsed outline may contain.
type Limits struct {
	MaxModules           int
	MaxChaptersPerModule int
	MaxLessonsPerChapter int
	MaxLessonMinutes     int
}

var DefaultLimits = Limits{
	MaxModules:           12,
	MaxChaptersPerModule: 10,
	MaxLessonsPerChapter: 12,
	MaxLessonMinutes:     60,
}

// LessonCount is the number of leaf lessons in the outline.
func (o Outline) LessonCount() int {
	n := 0
	for _, m := range o.Modules {
		for _, c := range m.Chapters {
			n += len(c.Lessons)
		}
	}
	return n
}

// ParseOutline decodes and validates an outline completion. Unknown fields,
// missing titles, empty levels and non-positive estimates are all rejected.
func ParseOutline(raw string, lim Limits) (Outline, error) {
	var out Outline
	if err := decodeStrict(raw, &out); err != nil {
		return Outline{}, contractErr(StageOutline, raw, "%v", err)
	}
	if strings.TrimSpace(out.CourseTitle) == "" {
		return Outline{}, contractErr(StageOutline, raw, "courseTitle is empty")
	}
	if len(out.Modules) == 0 {
		return Outline{}, contractErr(StageOutline, raw, "no modules")
	}
	if lim.MaxModules > 0 && len(out.Modules) > lim.MaxModules {
		return Outline{}, contractErr(StageOutline, raw, "%d modules exceeds limit %d", len(out.Modules), lim.MaxModules)
	}
	for mi, m := range out.Modules {
		where := fmt.Sprintf("modules[%d]", mi)
		if strings.TrimSpace(m.Title) == "" {
			return Outline{}, contractErr(StageOutline, raw, "%s.title is empty", where)
		}
		if len(m.Chapters) == 0 {
			return Outline{}, contractErr(StageOutline, raw, "%s has no chapters", where)
		}
		if lim.MaxChaptersPerModule > 0 && len(m.Chapters) > lim.MaxChaptersPerModule {
			return Outline{}, contractErr(StageOutline, raw, "%s has %d chapters, limit %d", where, len(m.Chapters), lim.MaxChaptersPerModule)
		}
		for ci, c := range m.Chapters {
			where := fmt.Sprintf("modules[%d].chapters[%d]", mi, ci)
			if strings.TrimSpace(c.Title) == "" {
				return Outline{}, contractErr(StageOutline, raw, "%s.title is empty", where)
			}
			if len(c.Lessons) == 0 {
				return Outline{}, contractErr(StageOutline, raw, "%s has no lessons", where)
			}
			if lim.MaxLessonsPerChapter > 0 && len(c.Lessons) > lim.MaxLessonsPerChapter {
				return Outline{}, contractErr(StageOutline, raw, "%s has %d lessons, limit %d", where, len(c.Lessons), lim.MaxLessonsPerChapter)
			}
			for li, l := range c.Lessons {
				where := fmt.Sprintf("%s.lessons[%d]", where, li)
				if strings.TrimSpace(l.Title) == "" {
					return Outline{}, contractErr(StageOutline, raw, "%s.title is empty", where)
				}
				if l.EstimatedMinutes <= 0 {
					return Outline{}, contractErr(StageOutline, raw, "%s.estimatedMinutes must be positive", where)
				}
				if lim.MaxLessonMinutes > 0 && l.EstimatedMinutes > lim.MaxLessonMinutes {
					return Outline{}, contractErr(StageOutline, raw, "%s.estimatedMinutes %d exceeds %d", where, l.EstimatedMinutes, lim.MaxLessonMinutes)
				}
			}
		}
	}
	return out, nil
}

type LessonContent struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

// ParseLessons decodes a batch completion and matches it to the requested
// keys. Every requested key must come back exactly once with non-empty
// content, and no other key may appear.
func ParseLessons(raw string, requested []LessonRef) (map[string]LessonContent, error) {
	var env struct {
		Lessons []LessonContent `json:"lessons"`
	}
	if err := decodeStrict(raw, &env); err != nil {
		return nil, contractErr(StageLessons, raw, "%v", err)
	}
	want := make(map[string]bool, len(requested))
	for _, r := range requested {
		want[r.Key] = true
	}
	got := make(map[string]LessonContent, len(requested))
	for _, l := range env.Lessons {
		id := strings.TrimSpace(l.ID)
		if !want[id] {
			return nil, contractErr(StageLessons, raw, "unexpected lesson %q", id)
		}
		if _, dup := got[id]; dup {
			return nil, contractErr(StageLessons, raw, "lesson %s returned twice", id)
		}
		if strings.TrimSpace(l.Content) == "" {
			return nil, contractErr(StageLessons, raw, "lesson %s has empty content", id)
		}
		l.ID = id
		got[id] = l
	}
	var missing []string
	for _, r := range requested {
		if _, ok := got[r.Key]; !ok {
			missing = append(missing, r.Key)
		}
	}
	if len(missing) > 0 {
		return nil, contractErr(StageLessons, raw, "missing lessons %s", strings.Join(missing, ", "))
	}
	return got, nil
}

func decodeStrict(raw string, out any) error {
	body := llm.StripCodeFence(raw)
	if body == "" {
		return fmt.Errorf("empty response")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("not valid JSON for schema: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON object")
	}
	return nil
}

func sortStrings(in []string) []string {
	sort.Strings(in)
	return in
}
