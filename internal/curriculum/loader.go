package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// gradeFile is the on-disk layout of one grade catalog.
type gradeFile struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Subjects []subjectFile `yaml:"subjects"`
}

type subjectFile struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Chapters []Chapter `yaml:"chapters"`
}

// Loader serves reference data from YAML catalogs on disk, one grade per
// file. It is used when the backend is unreachable during development and as
// a seed for demos.
type Loader struct {
	rootDir  string
	grades   []Grade
	subjects map[string][]Subject // grade id -> subjects
	chapters map[string][]Chapter // subject id + grade id -> chapters
	mu       sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads all catalogs.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:  rootDir,
		subjects: make(map[string][]Subject),
		chapters: make(map[string][]Chapter),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "grades", len(l.grades), "path", rootDir)
	return l, nil
}

func (l *Loader) Grades(_ context.Context) ([]Grade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Grade(nil), l.grades...), nil
}

func (l *Loader) Subjects(_ context.Context, gradeID string) ([]Subject, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Subject(nil), l.subjects[gradeID]...), nil
}

func (l *Loader) Chapters(_ context.Context, subjectID, gradeID string) ([]Chapter, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Chapter(nil), l.chapters[chapterKey(subjectID, gradeID)]...), nil
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadGrade(path)
		}
		return nil
	})
}

func (l *Loader) loadGrade(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var gf gradeFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", path, "error", err)
		return nil
	}

	if gf.ID == "" {
		return nil // Not a grade catalog
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.grades = append(l.grades, Grade{ID: gf.ID, Name: gf.Name})
	for _, sf := range gf.Subjects {
		l.subjects[gf.ID] = append(l.subjects[gf.ID], Subject{ID: sf.ID, Name: sf.Name, GradeID: gf.ID})

		chapters := make([]Chapter, 0, len(sf.Chapters))
		for _, c := range sf.Chapters {
			c.SubjectID = sf.ID
			c.GradeID = gf.ID
			chapters = append(chapters, c)
		}
		sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].Ordinal < chapters[j].Ordinal })
		l.chapters[chapterKey(sf.ID, gf.ID)] = chapters
	}

	return nil
}

func chapterKey(subjectID, gradeID string) string {
	return subjectID + "|" + gradeID
}
