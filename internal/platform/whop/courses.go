package whop

import (
	"context"
	"fmt"
	"strings"
)

const (
	LessonTypeText = "text"
)

type Experience struct {
	ID string `json:"id"`
}

type Course struct {
	ID string `json:"id"`
}

type Chapter struct {
	ID string `json:"id"`
}

type Lesson struct {
	ID string `json:"id"`
}

type CreateExperienceInput struct {
	AppID     string `json:"app_id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

type CreateCourseInput struct {
	ExperienceID string `json:"experience_id"`
	Title        string `json:"title"`
	Tagline      string `json:"tagline,omitempty"`
}

type CreateChapterInput struct {
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
}

type CreateLessonInput struct {
	ChapterID  string `json:"chapter_id"`
	LessonType string `json:"lesson_type"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
}

func (c *Client) CreateExperience(ctx context.Context, key string, in CreateExperienceInput) (Experience, error) {
	var out Experience
	if err := c.post(ctx, "/experiences", key, in, &out); err != nil {
		return Experience{}, err
	}
	return out, requireID("experience", out.ID)
}

func (c *Client) CreateCourse(ctx context.Context, key string, in CreateCourseInput) (Course, error) {
	var out Course
	if err := c.post(ctx, "/courses", key, in, &out); err != nil {
		return Course{}, err
	}
	return out, requireID("course", out.ID)
}

func (c *Client) CreateChapter(ctx context.Context, key string, in CreateChapterInput) (Chapter, error) {
	var out Chapter
	if err := c.post(ctx, "/course_chapters", key, in, &out); err != nil {
		return Chapter{}, err
	}
	return out, requireID("chapter", out.ID)
}

func (c *Client) CreateLesson(ctx context.Context, key string, in CreateLessonInput) (Lesson, error) {
	if in.LessonType == "" {
		in.LessonType = LessonTypeText
	}
	var out Lesson
	if err := c.post(ctx, "/course_lessons", key, in, &out); err != nil {
		return Lesson{}, err
	}
	return out, requireID("lesson", out.ID)
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("whop %s create returned no id", kind)
	}
	return nil
}

// CourseURL is the hub link members use to open a published experience.
func CourseURL(companyID, experienceID string) string {
	if companyID == "" || experienceID == "" {
		return ""
	}
	return fmt.Sprintf("https://whop.com/hub/%s/experiences/%s", companyID, experienceID)
}
