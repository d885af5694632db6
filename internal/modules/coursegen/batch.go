package coursegen

import "fmt"

// MaxBatchSize caps how many lessons go into one completion.
const MaxBatchSize = 10

// LessonRef is one leaf of the outline addressed by a stable key. The key is
// what the model echoes back and what results are merged on.
type LessonRef struct {
	Key              string
	ModuleIndex      int
	ChapterIndex     int
	LessonIndex      int
	ModuleTitle      string
	ChapterTitle     string
	Title            string
	KeyTakeaway      string
	EstimatedMinutes int
}

func LessonKey(mi, ci, li int) string {
	return fmt.Sprintf("lesson-%d-%d-%d", mi, ci, li)
}

// Plan flattens the outline into lesson refs in outline order.
func Plan(o Outline) []LessonRef {
	refs := make([]LessonRef, 0, o.LessonCount())
	for mi, m := range o.Modules {
		for ci, c := range m.Chapters {
			for li, l := range c.Lessons {
				takeaway := l.KeyTakeaway
				if takeaway == "" {
					takeaway = l.Title
				}
				refs = append(refs, LessonRef{
					Key:              LessonKey(mi, ci, li),
					ModuleIndex:      mi,
					ChapterIndex:     ci,
					LessonIndex:      li,
					ModuleTitle:      m.Title,
					ChapterTitle:     c.Title,
					Title:            l.Title,
					KeyTakeaway:      takeaway,
					EstimatedMinutes: l.EstimatedMinutes,
				})
			}
		}
	}
	return refs
}

// Batches splits refs into consecutive groups of at most size (clamped to
// 1..MaxBatchSize).
func Batches(refs []LessonRef, size int) [][]LessonRef {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	out := make([][]LessonRef, 0, (len(refs)+size-1)/size)
	for start := 0; start < len(refs); start += size {
		end := start + size
		if end > len(refs) {
			end = len(refs)
		}
		out = append(out, refs[start:end])
	}
	return out
}
