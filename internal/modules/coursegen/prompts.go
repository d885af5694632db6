package coursegen

import (
	"fmt"
	"strings"
)

const (
	SchemaOutline = "course_outline"
	SchemaLessons = "lesson_batch"
)

const outlineSystem = `You are an instructional designer turning a source document into an online course that follows adult learning principles.

STRUCTURE
- 3 to 7 modules, each a broad section of the course.
- 3 to 5 chapters per module, each building on the previous one.
- 3 to 8 lessons per chapter, each a focused 5 to 15 minute unit.
- Progress from fundamentals to advanced material.
- Aim for 30 to 120 minutes in total.

TITLES
- Modules state an outcome ("Master Customer Retention", not "Customer Retention").
- Chapters promise a concrete skill.
- Lessons are actionable.

Return only a JSON object of this shape, with no markdown fences and no commentary:
{
  "courseTitle": string,
  "courseDescription": string,
  "estimatedTotalMinutes": integer,
  "modules": [{
    "title": string,
    "description": string,
    "estimatedMinutes": integer,
    "chapters": [{
      "title": string,
      "description": string,
      "estimatedMinutes": integer,
      "lessons": [{"title": string, "keyTakeaway": string, "estimatedMinutes": integer}]
    }]
  }]
}`

const lessonsSystem = `You write lesson bodies for an online course, several lessons per request.

EACH LESSON
- Opens with a hook explaining why it matters.
- Uses short paragraphs, concrete examples and actionable steps.
- Ends with a clear takeaway or next action.
- Runs 300 to 800 words, about 150 words per estimated minute.
- Addresses the learner as "you", in active voice. Bold key terms on first use.
- Draws facts, numbers and examples from the source material when it has them.
- Stands alone and never refers to other lessons.
- Contains only the body: no title, no preamble.

TONE
- professional: polished and credible.
- casual: friendly, with contractions.
- technical: precise, assumes domain knowledge.

Return only a JSON object, with one entry for every lesson id you were given:
{"lessons": [{"id": string, "content": string (markdown), "wordCount": integer}]}`

// Prompt is one rendered request for the completion capability.
type Prompt struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

func OutlinePrompt(filename, sourceText string) Prompt {
	var b strings.Builder
	b.WriteString("Design a course from this document.\n\n")
	fmt.Fprintf(&b, "FILENAME: %s\n\n", filename)
	b.WriteString("SOURCE:\n")
	b.WriteString(sourceText)
	b.WriteString("\n\nReturn only the JSON outline.")
	return Prompt{
		System:     outlineSystem,
		User:       b.String(),
		SchemaName: SchemaOutline,
		Schema:     outlineSchema(),
	}
}

func LessonsPrompt(tone, sourceText string, batch []LessonRef) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "TONE: %s\n\n", tone)
	b.WriteString("SOURCE:\n")
	b.WriteString(sourceText)
	b.WriteString("\n\nLESSONS:\n")
	for i, l := range batch {
		fmt.Fprintf(&b, "---\nLESSON %d\nID: %s\nMODULE: %s\nCHAPTER: %s\nTITLE: %s\nKEY TAKEAWAY: %s\nTARGET: %d minutes\n",
			i+1, l.Key, l.ModuleTitle, l.ChapterTitle, l.Title, l.KeyTakeaway, l.EstimatedMinutes)
	}
	b.WriteString("---\n\nWrite every lesson listed above. Return only the JSON object.")
	return Prompt{
		System:     lessonsSystem,
		User:       b.String(),
		SchemaName: SchemaLessons,
		Schema:     lessonsSchema(),
	}
}

func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             sortStrings(required),
		"additionalProperties": false,
	}
}

func arrayOf(item map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": item}
}

var (
	str = map[string]any{"type": "string"}
	num = map[string]any{"type": "integer"}
)

func outlineSchema() map[string]any {
	lesson := object(map[string]any{"title": str, "keyTakeaway": str, "estimatedMinutes": num})
	chapter := object(map[string]any{"title": str, "description": str, "estimatedMinutes": num, "lessons": arrayOf(lesson)})
	module := object(map[string]any{"title": str, "description": str, "estimatedMinutes": num, "chapters": arrayOf(chapter)})
	return object(map[string]any{
		"courseTitle":           str,
		"courseDescription":     str,
		"estimatedTotalMinutes": num,
		"modules":               arrayOf(module),
	})
}

func lessonsSchema() map[string]any {
	item := object(map[string]any{"id": str, "content": str, "wordCount": num})
	return object(map[string]any{"lessons": arrayOf(item)})
}
