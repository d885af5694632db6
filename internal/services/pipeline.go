package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/modules/coursegen"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type PipelineConfig struct {
	Generator coursegen.Config `yaml:"generator"`
	// StaleAfter is how long a generation may stay processing before the
	// watchdog fails it.
	StaleAfter time.Duration `yaml:"stale_after" validate:"gte=1m"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{Generator: coursegen.DefaultConfig(), StaleAfter: 45 * time.Minute}
}

// CourseGenerator turns source text into a course tree.
type CourseGenerator interface {
	Generate(ctx context.Context, filename, sourceText string, progress coursegen.Progress) (*coursegen.Result, error)
}

// StageProgress reports pipeline progress as a stage name and a 0..100 value.
type StageProgress func(stage string, pct int, message string)

type GenerationPipeline interface {
	// Run drives a processing generation to completed or failed. A generation
	// that already left processing is returned with ErrAlreadyProcessed.
	Run(ctx context.Context, generationID uuid.UUID, progress StageProgress) (*types.CourseGeneration, error)
	// FailStuck fails generations that stayed processing past the stale window.
	FailStuck(ctx context.Context, limit int) (int, error)
}

type generationPipeline struct {
	db         *gorm.DB
	log        *logger.Logger
	cfg        PipelineConfig
	gens       repos.CourseGenerationRepo
	uploads    repos.PdfUploadRepo
	tree       repos.CourseTreeRepo
	events     repos.UsageEventRepo
	extraction ExtractionService
	generator  CourseGenerator
	notify     GenerationNotifier
	now        func() time.Time
}

func NewGenerationPipeline(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg PipelineConfig,
	gens repos.CourseGenerationRepo,
	uploads repos.PdfUploadRepo,
	tree repos.CourseTreeRepo,
	events repos.UsageEventRepo,
	extraction ExtractionService,
	generator CourseGenerator,
	notify GenerationNotifier,
) GenerationPipeline {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultPipelineConfig().StaleAfter
	}
	return &generationPipeline{
		db:         db,
		log:        baseLog.With("service", "GenerationPipeline"),
		cfg:        cfg,
		gens:       gens,
		uploads:    uploads,
		tree:       tree,
		events:     events,
		extraction: extraction,
		generator:  generator,
		notify:     notify,
		now:        time.Now,
	}
}

func (p *generationPipeline) Run(ctx context.Context, generationID uuid.UUID, progress StageProgress) (*types.CourseGeneration, error) {
	if progress == nil {
		progress = func(string, int, string) {}
	}
	dbc := dbctx.Context{Ctx: ctx}
	gen, err := p.gens.GetByID(dbc, generationID)
	if err != nil {
		return nil, fmt.Errorf("load generation: %w", err)
	}
	if gen == nil {
		return nil, apperr.ErrNotFound
	}
	if gen.Status != course.StatusProcessing {
		return gen, apperr.ErrAlreadyProcessed
	}

	ctx, span := observability.StartSpan(ctx, "pipeline.course_generate",
		attribute.String("generation_id", gen.ID.String()))
	defer span.End()
	dbc.Ctx = ctx
	start := p.now()

	out, err := p.run(dbc, gen, start, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, apperr.ErrInvalidState) {
			return gen, err
		}
		if cerr := ctx.Err(); cerr != nil {
			// Shutdown, not a generation fault: the row stays processing so the
			// job can be reclaimed and rerun.
			p.log.Info("generation interrupted, left processing", "generation_id", gen.ID, "error", err)
			return gen, fmt.Errorf("generation interrupted: %w", errors.Join(cerr, err))
		}
		p.fail(context.WithoutCancel(ctx), gen, err.Error())
		observability.Current().ObserveGeneration("failed", time.Since(start))
		return gen, err
	}
	observability.Current().ObserveGeneration("completed", time.Since(start))
	return out, nil
}

func (p *generationPipeline) run(dbc dbctx.Context, gen *types.CourseGeneration, start time.Time, progress StageProgress) (*types.CourseGeneration, error) {
	progress("extract", 5, "Reading source document")
	up, err := p.uploads.GetByID(dbc, gen.PdfUploadID)
	if err != nil {
		return nil, fmt.Errorf("load upload: %w", err)
	}
	if up == nil {
		return nil, fmt.Errorf("source upload %s no longer exists", gen.PdfUploadID)
	}
	text, err := p.extraction.EnsureText(dbc, up)
	if err != nil {
		return nil, err
	}

	progress("outline", 15, "Analyzing document structure")
	res, err := p.generator.Generate(dbc.Ctx, up.Filename, text, func(done, total int) {
		if total <= 0 {
			return
		}
		progress("lessons", 20+done*70/total, fmt.Sprintf("Generated %d of %d lessons", done, total))
	})
	if err != nil {
		return nil, err
	}

	progress("persist", 92, "Saving course")
	tokens := res.Usage.Total()
	if tokens <= 0 {
		tokens = llm.EstimateTokens(text)
	}
	now := p.now()
	elapsed := now.Sub(start).Milliseconds()
	updates := map[string]interface{}{
		"structure_json":     res.Structure,
		"ai_tokens_used":     tokens,
		"generation_time_ms": elapsed,
		"completed_at":       now,
		"error_message":      "",
	}
	if gen.Title == defaultCourseTitle && res.Outline.CourseTitle != "" {
		updates["title"] = res.Outline.CourseTitle
		gen.Title = res.Outline.CourseTitle
	}

	err = p.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbc.WithTx(tx)
		// Leftovers from a crashed earlier attempt of this same row.
		if err := p.tree.DeleteByGeneration(tdbc, gen.ID); err != nil {
			return fmt.Errorf("clear tree: %w", err)
		}
		if err := p.tree.InsertTree(tdbc, gen.ID, res.Modules); err != nil {
			return fmt.Errorf("persist tree: %w", err)
		}
		moved, err := p.gens.Transition(tdbc, gen.ID, []string{course.StatusProcessing}, course.StatusCompleted, updates)
		if err != nil {
			return fmt.Errorf("complete generation: %w", err)
		}
		if !moved {
			return fmt.Errorf("%w: generation left processing during run", apperr.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	gen.Status = course.StatusCompleted
	gen.StructureJSON = res.Structure
	gen.AITokensUsed = tokens
	gen.GenerationTimeMs = elapsed
	gen.CompletedAt = &now
	recordUsageEvent(dbc, p.db, p.events, p.log, gen.UserID, &gen.ID, billing.EventGenerationCompleted, map[string]any{
		"generationTimeMs": elapsed,
		"moduleCount":      len(res.Modules),
		"lessonCount":      res.Outline.LessonCount(),
		"tokens":           tokens,
		"llmCalls":         res.Usage.Calls,
	})
	p.notify.GenerationCompleted(gen)
	progress("done", 100, "Course ready")
	p.log.Info("generation completed",
		"generation_id", gen.ID,
		"modules", len(res.Modules),
		"lessons", res.Outline.LessonCount(),
		"duration_ms", elapsed,
	)
	return gen, nil
}

// fail moves processing -> failed and records the audit event. It is a no-op
// when the row already left processing.
func (p *generationPipeline) fail(ctx context.Context, gen *types.CourseGeneration, msg string) {
	dbc := dbctx.Context{Ctx: ctx}
	moved, err := p.gens.Transition(dbc, gen.ID, []string{course.StatusProcessing}, course.StatusFailed, map[string]interface{}{
		"error_message": msg,
	})
	if err != nil {
		p.log.Error("mark generation failed", "generation_id", gen.ID, "error", err)
		return
	}
	if !moved {
		return
	}
	gen.Status = course.StatusFailed
	gen.ErrorMessage = msg
	recordUsageEvent(dbc, p.db, p.events, p.log, gen.UserID, &gen.ID, billing.EventGenerationFailed, map[string]any{
		"error": msg,
	})
	p.notify.GenerationFailed(gen, msg)
	p.log.Warn("generation failed", "generation_id", gen.ID, "error", msg)
}

func (p *generationPipeline) FailStuck(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := p.now().Add(-p.cfg.StaleAfter)
	rows, err := p.gens.ListStuck(dbctx.Context{Ctx: ctx}, course.StatusProcessing, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stuck generations: %w", err)
	}
	msg := fmt.Sprintf("generation timed out after %s without completing", p.cfg.StaleAfter)
	for _, g := range rows {
		p.fail(ctx, g, msg)
		observability.Current().ObserveGeneration("timeout", p.now().Sub(g.CreatedAt))
	}
	return len(rows), nil
}
