package db

import (
	"fmt"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := EnsureBillingIndexes(db); err != nil {
		return err
	}
	if err := EnsureCourseConstraints(db); err != nil {
		return err
	}
	return EnsureJobIndexes(db)
}

// EnsureBillingIndexes adds the indexes AutoMigrate cannot express.
func EnsureBillingIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_subscription_user_company_active
		ON subscription(user_id, whop_company_id)
		WHERE status = 'active' AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_subscription_user_company_active: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_purchased_credit_user_available
		ON purchased_credit(user_id, purchased_at)
		WHERE status = 'available' AND credits_remaining > 0 AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_purchased_credit_user_available: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_usage_event_user_type_created
		ON usage_event(user_id, event_type, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_usage_event_user_type_created: %w", err)
	}
	return nil
}

// EnsureCourseConstraints installs cascading foreign keys for the course tree
// and the generation listing index.
func EnsureCourseConstraints(db *gorm.DB) error {
	fks := []struct {
		name, table, column, refTable string
	}{
		{"fk_course_module_generation", "course_module", "generation_id", "course_generation"},
		{"fk_course_chapter_module", "course_chapter", "module_id", "course_module"},
		{"fk_course_lesson_chapter", "course_lesson", "chapter_id", "course_chapter"},
		{"fk_purchased_credit_user", "purchased_credit", "user_id", "app_user"},
		{"fk_subscription_user", "subscription", "user_id", "app_user"},
		{"fk_pdf_upload_user", "pdf_upload", "user_id", "app_user"},
		{"fk_course_generation_user", "course_generation", "user_id", "app_user"},
		{"fk_usage_event_user", "usage_event", "user_id", "app_user"},
		{"fk_lesson_progress_user", "lesson_progress", "user_id", "app_user"},
	}
	for _, fk := range fks {
		stmt := fmt.Sprintf(`
			DO $$
			BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
					ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(id) ON DELETE CASCADE;
				END IF;
			END $$;`, fk.name, fk.table, fk.name, fk.column, fk.refTable)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create %s: %w", fk.name, err)
		}
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_course_generation_user_created
		ON course_generation(user_id, created_at DESC)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_course_generation_user_created: %w", err)
	}
	return nil
}

func EnsureJobIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_runnable
		ON job_run(status, created_at)
		WHERE deleted_at IS NULL AND status IN ('queued', 'failed', 'running');
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_runnable: %w", err)
	}
	return nil
}
