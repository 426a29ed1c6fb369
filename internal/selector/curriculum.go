package selector

import (
	"context"

	"github.com/p-n-ai/teachmate/internal/curriculum"
)

// Level names of the curriculum chain.
const (
	LevelGrade   = "grade"
	LevelSubject = "subject"
	LevelChapter = "chapter"
)

// Selection is the current grade/subject/chapter with their display data.
type Selection struct {
	GradeID   string `json:"gradeId"`
	SubjectID string `json:"subjectId"`
	ChapterID string `json:"chapterId"`

	Grade   *curriculum.Grade   `json:"grade,omitempty"`
	Subject *curriculum.Subject `json:"subject,omitempty"`
	Chapter *curriculum.Chapter `json:"chapter,omitempty"`
}

// Complete reports whether all three levels are chosen.
func (s Selection) Complete() bool {
	return s.GradeID != "" && s.SubjectID != "" && s.ChapterID != ""
}

// CurriculumSelector is the grade → subject → chapter chain over a
// curriculum.Source.
type CurriculumSelector struct {
	chain *Chain
}

// NewCurriculumSelector builds the three-level chain. Call Init to load
// grades.
func NewCurriculumSelector(src curriculum.Source, opts ...ChainOption) *CurriculumSelector {
	levels := []Level{
		{
			Name:  LevelGrade,
			Label: "grades",
			Load: func(ctx context.Context, _ map[string]string) ([]Option, error) {
				grades, err := src.Grades(ctx)
				if err != nil {
					return nil, err
				}
				out := make([]Option, len(grades))
				for i, g := range grades {
					out[i] = Option{ID: g.ID, Name: g.Name, Data: g}
				}
				return out, nil
			},
		},
		{
			Name:   LevelSubject,
			Parent: LevelGrade,
			Label:  "subjects for selected grade",
			Load: func(ctx context.Context, a map[string]string) ([]Option, error) {
				subjects, err := src.Subjects(ctx, a[LevelGrade])
				if err != nil {
					return nil, err
				}
				out := make([]Option, len(subjects))
				for i, s := range subjects {
					out[i] = Option{ID: s.ID, Name: s.Name, Data: s}
				}
				return out, nil
			},
		},
		{
			Name:   LevelChapter,
			Parent: LevelSubject,
			Label:  "chapters for selected subject",
			Load: func(ctx context.Context, a map[string]string) ([]Option, error) {
				chapters, err := src.Chapters(ctx, a[LevelSubject], a[LevelGrade])
				if err != nil {
					return nil, err
				}
				out := make([]Option, len(chapters))
				for i, ch := range chapters {
					out[i] = Option{ID: ch.ID, Name: ch.Name, Data: ch}
				}
				return out, nil
			},
		},
	}

	chain, err := NewChain(levels, opts...)
	if err != nil {
		// The level graph above is static.
		panic(err)
	}
	return &CurriculumSelector{chain: chain}
}

// Chain exposes the underlying generic chain.
func (s *CurriculumSelector) Chain() *Chain { return s.chain }

// Init loads the grade list.
func (s *CurriculumSelector) Init() { s.chain.Init() }

// ReloadGrades retries the grade list.
func (s *CurriculumSelector) ReloadGrades() { _ = s.chain.Reload(LevelGrade) }

func (s *CurriculumSelector) SelectGrade(gradeID string) {
	_ = s.chain.Select(LevelGrade, gradeID)
}

func (s *CurriculumSelector) SelectSubject(subjectID string) {
	_ = s.chain.Select(LevelSubject, subjectID)
}

func (s *CurriculumSelector) SelectChapter(chapterID string) {
	_ = s.chain.Select(LevelChapter, chapterID)
}

// Reset clears the selection while keeping the grade list.
func (s *CurriculumSelector) Reset() {
	_ = s.chain.Select(LevelGrade, "")
}

func (s *CurriculumSelector) Grades() []curriculum.Grade {
	return dataOf[curriculum.Grade](s.chain.Options(LevelGrade))
}

func (s *CurriculumSelector) Subjects() []curriculum.Subject {
	return dataOf[curriculum.Subject](s.chain.Options(LevelSubject))
}

func (s *CurriculumSelector) Chapters() []curriculum.Chapter {
	return dataOf[curriculum.Chapter](s.chain.Options(LevelChapter))
}

// Loading reports whether level has a load in flight.
func (s *CurriculumSelector) Loading(level string) bool {
	return s.chain.Snapshot().Levels[level].Loading
}

// Selection resolves the current ids against the loaded lists.
func (s *CurriculumSelector) Selection() Selection {
	snap := s.chain.Snapshot()
	sel := Selection{
		GradeID:   snap.Levels[LevelGrade].Value,
		SubjectID: snap.Levels[LevelSubject].Value,
		ChapterID: snap.Levels[LevelChapter].Value,
	}
	sel.Grade = find[curriculum.Grade](snap.Levels[LevelGrade])
	sel.Subject = find[curriculum.Subject](snap.Levels[LevelSubject])
	sel.Chapter = find[curriculum.Chapter](snap.Levels[LevelChapter])
	return sel
}

// Settle waits for in-flight loads.
func (s *CurriculumSelector) Settle() { s.chain.Settle() }

// Close cancels in-flight loads.
func (s *CurriculumSelector) Close() { s.chain.Close() }

func dataOf[T any](opts []Option) []T {
	out := make([]T, 0, len(opts))
	for _, o := range opts {
		if v, ok := o.Data.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func find[T any](lv LevelView) *T {
	if lv.Value == "" {
		return nil
	}
	for _, o := range lv.Options {
		if o.ID != lv.Value {
			continue
		}
		if v, ok := o.Data.(T); ok {
			return &v
		}
	}
	return nil
}
