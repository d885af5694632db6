// Package coursegen turns extracted source text into a course tree with two
// completion contracts: one outline call, then lesson bodies in batches.
package coursegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/markdown"
	"github.com/yungbote/coursebuilder-backend/internal/platform/pdftext"
)

type Config struct {
	BatchSize          int     `yaml:"batch_size" validate:"gte=1,lte=10"`
	Parallelism        int     `yaml:"parallelism" validate:"gte=1,lte=16"`
	OutlineMaxChars    int     `yaml:"outline_max_chars" validate:"gte=1000"`
	ContentMaxChars    int     `yaml:"content_max_chars" validate:"gte=1000"`
	OutlineTemperature float64 `yaml:"outline_temperature" validate:"gte=0,lte=2"`
	ContentTemperature float64 `yaml:"content_temperature" validate:"gte=0,lte=2"`
	OutlineMaxTokens   int     `yaml:"outline_max_tokens" validate:"gte=256"`
	ContentMaxTokens   int     `yaml:"content_max_tokens" validate:"gte=256"`
	// Attempts per completion when the response breaks its contract. Provider
	// transport errors are retried inside the provider client instead.
	Attempts int    `yaml:"attempts" validate:"gte=1,lte=5"`
	Tone     string `yaml:"tone" validate:"oneof=professional casual technical"`
	Limits   Limits `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		BatchSize:          MaxBatchSize,
		Parallelism:        3,
		OutlineMaxChars:    60000,
		ContentMaxChars:    80000,
		OutlineTemperature: 0.7,
		ContentTemperature: 0.8,
		OutlineMaxTokens:   8000,
		ContentMaxTokens:   16000,
		Attempts:           2,
		Tone:               "professional",
		Limits:             DefaultLimits,
	}
}

// Usage sums provider-reported tokens across every completion of a run.
type Usage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
}

func (u *Usage) add(r llm.Response) {
	u.Calls++
	u.InputTokens += r.InputTokens
	u.OutputTokens += r.OutputTokens
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Progress receives (done, total) lesson counts as batches finish.
type Progress func(done, total int)

type Result struct {
	Outline Outline
	Modules []*types.CourseModule
	// Structure is the serialized tree stored on the generation row.
	Structure datatypes.JSON
	Usage     Usage
}

type Generator struct {
	log *logger.Logger
	llm llm.Client
	cfg Config
}

func NewGenerator(baseLog *logger.Logger, client llm.Client, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.OutlineMaxChars <= 0 {
		cfg.OutlineMaxChars = def.OutlineMaxChars
	}
	if cfg.ContentMaxChars <= 0 {
		cfg.ContentMaxChars = def.ContentMaxChars
	}
	if cfg.OutlineMaxTokens <= 0 {
		cfg.OutlineMaxTokens = def.OutlineMaxTokens
	}
	if cfg.ContentMaxTokens <= 0 {
		cfg.ContentMaxTokens = def.ContentMaxTokens
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Tone == "" {
		cfg.Tone = def.Tone
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = def.Limits
	}
	return &Generator{
		log: baseLog.With("service", "CourseGenerator"),
		llm: client,
		cfg: cfg,
	}
}

// Generate runs the outline call, every lesson batch, and assembles the tree.
// Any contract violation fails the whole run; nothing is substituted.
func (g *Generator) Generate(ctx context.Context, filename, sourceText string, progress Progress) (*Result, error) {
	var usage Usage
	outline, err := g.Outline(ctx, filename, sourceText, &usage)
	if err != nil {
		return nil, err
	}
	contents, err := g.Lessons(ctx, outline, sourceText, &usage, progress)
	if err != nil {
		return nil, err
	}
	modules, err := BuildTree(outline, contents)
	if err != nil {
		return nil, err
	}
	structure, err := MarshalStructure(outline, modules)
	if err != nil {
		return nil, err
	}
	return &Result{Outline: outline, Modules: modules, Structure: structure, Usage: usage}, nil
}

func (g *Generator) Outline(ctx context.Context, filename, sourceText string, usage *Usage) (Outline, error) {
	ctx, span := observability.StartSpan(ctx, "coursegen.outline", attribute.Int("source_chars", len(sourceText)))
	defer span.End()
	start := time.Now()

	p := OutlinePrompt(filename, pdftext.Truncate(sourceText, g.cfg.OutlineMaxChars))
	var outline Outline
	err := g.complete(ctx, p, g.cfg.OutlineTemperature, g.cfg.OutlineMaxTokens, usage, func(raw string) error {
		o, perr := ParseOutline(raw, g.cfg.Limits)
		if perr != nil {
			return perr
		}
		outline = o
		return nil
	})
	observability.Current().ObserveGenerationStage(StageOutline, stageStatus(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outline{}, err
	}
	span.SetAttributes(attribute.Int("modules", len(outline.Modules)), attribute.Int("lessons", outline.LessonCount()))
	g.log.Info("outline generated", "modules", len(outline.Modules), "lessons", outline.LessonCount())
	return outline, nil
}

// Lessons generates every lesson body, running up to Parallelism batches at
// once. Results are keyed by LessonRef.Key so completion order is irrelevant.
func (g *Generator) Lessons(ctx context.Context, outline Outline, sourceText string, usage *Usage, progress Progress) (map[string]LessonContent, error) {
	ctx, span := observability.StartSpan(ctx, "coursegen.lessons")
	defer span.End()
	start := time.Now()

	refs := Plan(outline)
	batches := Batches(refs, g.cfg.BatchSize)
	source := pdftext.Truncate(sourceText, g.cfg.ContentMaxChars)
	span.SetAttributes(attribute.Int("lessons", len(refs)), attribute.Int("batches", len(batches)))

	var (
		mu      sync.Mutex
		merged  = make(map[string]LessonContent, len(refs))
		done    int32
		grp, gc = errgroup.WithContext(ctx)
	)
	grp.SetLimit(g.cfg.Parallelism)
	for i := range batches {
		batch := batches[i]
		idx := i
		grp.Go(func() error {
			var local Usage
			p := LessonsPrompt(g.cfg.Tone, source, batch)
			var got map[string]LessonContent
			err := g.complete(gc, p, g.cfg.ContentTemperature, g.cfg.ContentMaxTokens, &local, func(raw string) error {
				m, perr := ParseLessons(raw, batch)
				if perr != nil {
					return perr
				}
				got = m
				return nil
			})
			observability.Current().IncLessonBatch(stageStatus(err))
			mu.Lock()
			usage.Calls += local.Calls
			usage.InputTokens += local.InputTokens
			usage.OutputTokens += local.OutputTokens
			if err == nil {
				for k, v := range got {
					merged[k] = v
				}
			}
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("lesson batch %d/%d: %w", idx+1, len(batches), err)
			}
			n := atomic.AddInt32(&done, int32(len(batch)))
			if progress != nil {
				progress(int(n), len(refs))
			}
			return nil
		})
	}
	err := grp.Wait()
	observability.Current().ObserveGenerationStage(StageLessons, stageStatus(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return merged, nil
}

// complete calls the model and hands the text to parse. Contract violations
// are retried up to Attempts with the violation appended to the prompt.
func (g *Generator) complete(ctx context.Context, p Prompt, temp float64, maxTokens int, usage *Usage, parse func(string) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		user := p.User
		if lastErr != nil {
			user += "\n\nYOUR PREVIOUS RESPONSE WAS REJECTED: " + lastErr.Error() + "\nReturn a corrected JSON object."
		}
		t := temp
		resp, err := g.llm.Complete(ctx, llm.Request{
			System:      p.System,
			User:        user,
			JSON:        true,
			SchemaName:  p.SchemaName,
			Schema:      p.Schema,
			Temperature: &t,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			if errors.Is(err, llm.ErrEmptyResponse) {
				lastErr = contractErr(stageFor(p), "", "empty response")
				continue
			}
			return err
		}
		usage.add(resp)
		if perr := parse(resp.Text); perr != nil {
			lastErr = perr
			g.log.Warn("completion rejected", "schema", p.SchemaName, "attempt", attempt, "error", perr.Error())
			continue
		}
		return nil
	}
	return lastErr
}

func stageFor(p Prompt) string {
	if p.SchemaName == SchemaOutline {
		return StageOutline
	}
	return StageLessons
}

func stageStatus(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case IsContractError(err):
		return "contract_error"
	default:
		return "failed"
	}
}

// BuildTree assembles module/chapter/lesson rows in outline order. It fails
// when any lesson lacks generated content.
func BuildTree(o Outline, contents map[string]LessonContent) ([]*types.CourseModule, error) {
	modules := make([]*types.CourseModule, 0, len(o.Modules))
	for mi, m := range o.Modules {
		mod := &types.CourseModule{
			Title:            strings.TrimSpace(m.Title),
			Description:      strings.TrimSpace(m.Description),
			OrderIndex:       mi,
			EstimatedMinutes: m.EstimatedMinutes,
		}
		for ci, c := range m.Chapters {
			objectives, _ := json.Marshal([]string{strings.TrimSpace(c.Description)})
			ch := &types.CourseChapter{
				Title:              strings.TrimSpace(c.Title),
				Description:        strings.TrimSpace(c.Description),
				LearningObjectives: datatypes.JSON(objectives),
				OrderIndex:         ci,
				EstimatedMinutes:   c.EstimatedMinutes,
			}
			for li, l := range c.Lessons {
				key := LessonKey(mi, ci, li)
				body, ok := contents[key]
				if !ok || strings.TrimSpace(body.Content) == "" {
					return nil, contractErr(StageLessons, "", "no content for %s", key)
				}
				ch.Lessons = append(ch.Lessons, &types.CourseLesson{
					Title:            strings.TrimSpace(l.Title),
					LessonType:       course.LessonText,
					Content:          body.Content,
					KeyTakeaway:      strings.TrimSpace(l.KeyTakeaway),
					EstimatedMinutes: l.EstimatedMinutes,
					WordCount:        markdown.WordCount(body.Content),
					OrderIndex:       li,
				})
			}
			mod.Chapters = append(mod.Chapters, ch)
		}
		modules = append(modules, mod)
	}
	return modules, nil
}

type structureDoc struct {
	CourseTitle           string                `json:"courseTitle"`
	CourseDescription     string                `json:"courseDescription"`
	EstimatedTotalMinutes int                   `json:"estimatedTotalMinutes"`
	Modules               []*types.CourseModule `json:"modules"`
}

func MarshalStructure(o Outline, modules []*types.CourseModule) (datatypes.JSON, error) {
	b, err := json.Marshal(structureDoc{
		CourseTitle:           o.CourseTitle,
		CourseDescription:     o.CourseDescription,
		EstimatedTotalMinutes: o.EstimatedTotalMinutes,
		Modules:               modules,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal structure: %w", err)
	}
	return datatypes.JSON(b), nil
}
