package course

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

// CourseTreeRepo owns module/chapter/lesson rows. Sibling order_index values
// are assigned as max+1 under a lock on the parent row and never renumbered.
type CourseTreeRepo interface {
	InsertTree(dbc dbctx.Context, generationID uuid.UUID, modules []*types.CourseModule) error
	DeleteByGeneration(dbc dbctx.Context, generationID uuid.UUID) error
	Hydrate(dbc dbctx.Context, generationID uuid.UUID) ([]*types.CourseModule, error)

	CreateModule(dbc dbctx.Context, m *types.CourseModule) (*types.CourseModule, error)
	CreateChapter(dbc dbctx.Context, c *types.CourseChapter) (*types.CourseChapter, error)
	CreateLesson(dbc dbctx.Context, l *types.CourseLesson) (*types.CourseLesson, error)

	GetModule(dbc dbctx.Context, generationID, id uuid.UUID) (*types.CourseModule, error)
	GetChapter(dbc dbctx.Context, generationID, id uuid.UUID) (*types.CourseChapter, error)
	GetLesson(dbc dbctx.Context, generationID, id uuid.UUID) (*types.CourseLesson, error)

	UpdateModule(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateChapter(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateLesson(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	DeleteModule(dbc dbctx.Context, id uuid.UUID) error
	DeleteChapter(dbc dbctx.Context, id uuid.UUID) error
	DeleteLesson(dbc dbctx.Context, id uuid.UUID) error
}

type courseTreeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseTreeRepo(db *gorm.DB, baseLog *logger.Logger) CourseTreeRepo {
	return &courseTreeRepo{db: db, log: baseLog.With("repo", "CourseTreeRepo")}
}

// InsertTree writes modules, then chapters, then lessons. Callers pass a
// transaction so a failure leaves nothing behind.
func (r *courseTreeRepo) InsertTree(dbc dbctx.Context, generationID uuid.UUID, modules []*types.CourseModule) error {
	if len(modules) == 0 {
		return nil
	}
	var chapters []*types.CourseChapter
	var lessons []*types.CourseLesson
	for _, m := range modules {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.GenerationID = generationID
		for _, c := range m.Chapters {
			if c.ID == uuid.Nil {
				c.ID = uuid.New()
			}
			c.ModuleID = m.ID
			chapters = append(chapters, c)
			for _, l := range c.Lessons {
				if l.ID == uuid.Nil {
					l.ID = uuid.New()
				}
				l.ChapterID = c.ID
				lessons = append(lessons, l)
			}
		}
	}
	conn := dbc.Conn(r.db)
	if err := conn.CreateInBatches(modules, 100).Error; err != nil {
		return fmt.Errorf("insert modules: %w", err)
	}
	if len(chapters) > 0 {
		if err := conn.CreateInBatches(chapters, 200).Error; err != nil {
			return fmt.Errorf("insert chapters: %w", err)
		}
	}
	if len(lessons) > 0 {
		if err := conn.CreateInBatches(lessons, 200).Error; err != nil {
			return fmt.Errorf("insert lessons: %w", err)
		}
	}
	return nil
}

func (r *courseTreeRepo) DeleteByGeneration(dbc dbctx.Context, generationID uuid.UUID) error {
	return dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		moduleIDs := txx.Model(&types.CourseModule{}).Select("id").Where("generation_id = ?", generationID)
		chapterIDs := txx.Model(&types.CourseChapter{}).Select("id").Where("module_id IN (?)", moduleIDs)
		if err := txx.Where("chapter_id IN (?)", chapterIDs).Delete(&types.CourseLesson{}).Error; err != nil {
			return err
		}
		if err := txx.Where("module_id IN (?)", moduleIDs).Delete(&types.CourseChapter{}).Error; err != nil {
			return err
		}
		return txx.Where("generation_id = ?", generationID).Delete(&types.CourseModule{}).Error
	})
}

func (r *courseTreeRepo) Hydrate(dbc dbctx.Context, generationID uuid.UUID) ([]*types.CourseModule, error) {
	conn := dbc.Conn(r.db)
	var modules []*types.CourseModule
	if err := conn.Where("generation_id = ?", generationID).Order("order_index ASC").Find(&modules).Error; err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return modules, nil
	}
	moduleIDs := make([]uuid.UUID, 0, len(modules))
	byModule := make(map[uuid.UUID]*types.CourseModule, len(modules))
	for _, m := range modules {
		moduleIDs = append(moduleIDs, m.ID)
		byModule[m.ID] = m
	}

	var chapters []*types.CourseChapter
	if err := conn.Where("module_id IN ?", moduleIDs).Order("order_index ASC").Find(&chapters).Error; err != nil {
		return nil, err
	}
	chapterIDs := make([]uuid.UUID, 0, len(chapters))
	byChapter := make(map[uuid.UUID]*types.CourseChapter, len(chapters))
	for _, c := range chapters {
		chapterIDs = append(chapterIDs, c.ID)
		byChapter[c.ID] = c
		if m := byModule[c.ModuleID]; m != nil {
			m.Chapters = append(m.Chapters, c)
		}
	}
	if len(chapterIDs) == 0 {
		return modules, nil
	}

	var lessons []*types.CourseLesson
	if err := conn.Where("chapter_id IN ?", chapterIDs).Order("order_index ASC").Find(&lessons).Error; err != nil {
		return nil, err
	}
	for _, l := range lessons {
		if c := byChapter[l.ChapterID]; c != nil {
			c.Lessons = append(c.Lessons, l)
		}
	}
	return modules, nil
}

func (r *courseTreeRepo) CreateModule(dbc dbctx.Context, m *types.CourseModule) (*types.CourseModule, error) {
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		if err := lockRow(txx, &types.CourseGeneration{}, m.GenerationID); err != nil {
			return err
		}
		next, err := nextOrder(txx, "course_module", "generation_id", m.GenerationID)
		if err != nil {
			return err
		}
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.OrderIndex = next
		return txx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *courseTreeRepo) CreateChapter(dbc dbctx.Context, c *types.CourseChapter) (*types.CourseChapter, error) {
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		if err := lockRow(txx, &types.CourseModule{}, c.ModuleID); err != nil {
			return err
		}
		next, err := nextOrder(txx, "course_chapter", "module_id", c.ModuleID)
		if err != nil {
			return err
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.OrderIndex = next
		return txx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *courseTreeRepo) CreateLesson(dbc dbctx.Context, l *types.CourseLesson) (*types.CourseLesson, error) {
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		if err := lockRow(txx, &types.CourseChapter{}, l.ChapterID); err != nil {
			return err
		}
		next, err := nextOrder(txx, "course_lesson", "chapter_id", l.ChapterID)
		if err != nil {
			return err
		}
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.OrderIndex = next
		return txx.Create(l).Error
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *courseTreeRepo) GetModule(dbc dbctx.Context, generationID, id uuid.UUID) (*types.CourseModule, error) {
	var m types.CourseModule
	err := dbc.Conn(r.db).
		Where("id = ? AND generation_id = ?", id, generationID).
		Limit(1).
		Find(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *courseTreeRepo) GetChapter(dbc dbctx.Context, generationID, id uuid.UUID) (*types.CourseChapter, error) {
	var c types.CourseChapter
	err := dbc.Conn(r.db).
		Table("course_chapter").
		Select("course_chapter.*").
		Joins("JOIN course_module ON course_module.id = course_chapter.module_id").
		Where("course_chapter.id = ? AND course_module.generation_id = ?", id, generationID).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *courseTreeRepo) GetLesson(dbc dbctx.Context, generationID, id uuid.UUID) (*types.CourseLesson, error) {
	var l types.CourseLesson
	err := dbc.Conn(r.db).
		Table("course_lesson").
		Select("course_lesson.*").
		Joins("JOIN course_chapter ON course_chapter.id = course_lesson.chapter_id").
		Joins("JOIN course_module ON course_module.id = course_chapter.module_id").
		Where("course_lesson.id = ? AND course_module.generation_id = ?", id, generationID).
		Limit(1).
		Find(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == uuid.Nil {
		return nil, nil
	}
	return &l, nil
}

func (r *courseTreeRepo) UpdateModule(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.update(dbc, &types.CourseModule{}, id, updates)
}

func (r *courseTreeRepo) UpdateChapter(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.update(dbc, &types.CourseChapter{}, id, updates)
}

func (r *courseTreeRepo) UpdateLesson(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.update(dbc, &types.CourseLesson{}, id, updates)
}

func (r *courseTreeRepo) update(dbc dbctx.Context, model interface{}, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).Model(model).Where("id = ?", id).Updates(updates).Error
}

func (r *courseTreeRepo) DeleteModule(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		chapterIDs := txx.Model(&types.CourseChapter{}).Select("id").Where("module_id = ?", id)
		if err := txx.Where("chapter_id IN (?)", chapterIDs).Delete(&types.CourseLesson{}).Error; err != nil {
			return err
		}
		if err := txx.Where("module_id = ?", id).Delete(&types.CourseChapter{}).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", id).Delete(&types.CourseModule{}).Error
	})
}

func (r *courseTreeRepo) DeleteChapter(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("chapter_id = ?", id).Delete(&types.CourseLesson{}).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", id).Delete(&types.CourseChapter{}).Error
	})
}

func (r *courseTreeRepo) DeleteLesson(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.Conn(r.db).Where("id = ?", id).Delete(&types.CourseLesson{}).Error
}

func lockRow(txx *gorm.DB, model interface{}, id uuid.UUID) error {
	var row struct{ ID uuid.UUID }
	if err := txx.Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		Limit(1).
		Scan(&row).Error; err != nil {
		return err
	}
	if row.ID == uuid.Nil {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func nextOrder(txx *gorm.DB, table, parentCol string, parentID uuid.UUID) (int, error) {
	var next int
	err := txx.Table(table).
		Select("COALESCE(MAX(order_index), -1) + 1").
		Where(parentCol+" = ?", parentID).
		Scan(&next).Error
	return next, err
}
