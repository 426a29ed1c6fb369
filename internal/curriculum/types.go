// Package curriculum holds the grade → subject → chapter reference taxonomy
// and the sources it is loaded from.
package curriculum

import "context"

// Grade is a school grade (e.g. "Grade 9").
type Grade struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Subject is taught within one grade.
type Subject struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	GradeID string `json:"gradeId" yaml:"-"`
}

// Chapter belongs to one subject of one grade. Ordinal is the chapter number
// printed in the textbook.
type Chapter struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	SubjectID string `json:"subjectId" yaml:"-"`
	GradeID   string `json:"gradeId" yaml:"-"`
	Ordinal   int    `json:"ordinal" yaml:"number"`
}

// Source serves reference data. Implementations: the remote gateway, the
// YAML Loader and CachedSource.
type Source interface {
	Grades(ctx context.Context) ([]Grade, error)
	Subjects(ctx context.Context, gradeID string) ([]Subject, error)
	Chapters(ctx context.Context, subjectID, gradeID string) ([]Chapter, error)
}
