package report

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Template is a parent-report message template.
type Template struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`

	subject *template.Template
	body    *template.Template
}

// Recipient holds the fields a template can reference.
type Recipient struct {
	ParentName  string
	StudentName string
	TeacherName string
	Grade       string
	Score       int
	Band        Band
	Subjects    map[string]int
	Weakest     string
}

// NewRecipient fills a recipient from a progress row.
func NewRecipient(p StudentProgress, parentName, teacherName string) Recipient {
	r := Recipient{
		ParentName:  parentName,
		StudentName: p.Name,
		TeacherName: teacherName,
		Grade:       p.Grade,
		Score:       p.OverallScore,
		Band:        BandFor(p.OverallScore),
		Subjects:    p.Subjects,
	}
	if r.ParentName == "" {
		r.ParentName = "Parent"
	}
	low := 101
	for _, name := range sortedKeys(p.Subjects) {
		if s := p.Subjects[name]; s < low {
			low, r.Weakest = s, name
		}
	}
	return r
}

// Message is a rendered report.
type Message struct {
	TemplateID string `json:"templateId"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// Templates is a set of parsed templates keyed by id.
type Templates struct {
	byID  map[string]*Template
	order []string
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() (*Templates, error) {
	return parseTemplates(defaultTemplates, "built-in")
}

// LoadTemplates reads every .yaml file in dir on top of the built-in
// templates. A template with an existing id replaces it. A missing dir yields
// the defaults.
func LoadTemplates(dir string) (*Templates, error) {
	ts, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return ts, nil
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return ts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading templates dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !(strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		extra, err := parseTemplates(data, e.Name())
		if err != nil {
			return nil, err
		}
		for _, id := range extra.order {
			ts.add(extra.byID[id])
		}
	}
	return ts, nil
}

func parseTemplates(data []byte, source string) (*Templates, error) {
	var list []*Template
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing %s templates: %w", source, err)
	}
	ts := &Templates{byID: make(map[string]*Template)}
	for _, t := range list {
		if t.ID == "" {
			return nil, fmt.Errorf("%s: template without id", source)
		}
		var err error
		if t.subject, err = template.New(t.ID + ".subject").Option("missingkey=zero").Parse(t.Subject); err != nil {
			return nil, fmt.Errorf("%s: template %s subject: %w", source, t.ID, err)
		}
		if t.body, err = template.New(t.ID + ".body").Option("missingkey=zero").Parse(t.Body); err != nil {
			return nil, fmt.Errorf("%s: template %s body: %w", source, t.ID, err)
		}
		ts.add(t)
	}
	return ts, nil
}

func (ts *Templates) add(t *Template) {
	if _, ok := ts.byID[t.ID]; !ok {
		ts.order = append(ts.order, t.ID)
	}
	ts.byID[t.ID] = t
}

// List returns the templates in load order.
func (ts *Templates) List() []Template {
	out := make([]Template, 0, len(ts.order))
	for _, id := range ts.order {
		out = append(out, *ts.byID[id])
	}
	return out
}

// Render fills template id for r.
func (ts *Templates) Render(id string, r Recipient) (Message, error) {
	t, ok := ts.byID[id]
	if !ok {
		return Message{}, fmt.Errorf("unknown report template %q", id)
	}
	var subject, body strings.Builder
	if err := t.subject.Execute(&subject, r); err != nil {
		return Message{}, fmt.Errorf("rendering %s subject: %w", id, err)
	}
	if err := t.body.Execute(&body, r); err != nil {
		return Message{}, fmt.Errorf("rendering %s body: %w", id, err)
	}
	return Message{TemplateID: id, Subject: subject.String(), Body: strings.TrimSpace(body.String())}, nil
}

// Suggest picks a template for a score band.
func Suggest(score int) string {
	switch BandFor(score) {
	case BandExcellent:
		return "achievement"
	case BandNeedsAttention:
		return "support-needed"
	default:
		return "weekly-progress"
	}
}

var titleCaser = cases.Title(language.English)

// Title capitalizes a band or trend for display.
func Title(s string) string {
	return titleCaser.String(s)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
