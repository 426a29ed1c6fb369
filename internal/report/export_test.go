package report_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/teachmate/internal/report"
)

func TestExportProgress(t *testing.T) {
	rows := []report.StudentProgress{
		{Name: "Alice", Grade: "Grade 9", OverallScore: 92, Trend: report.TrendUp, Subjects: map[string]int{"Mathematics": 95, "Science": 89}},
		{Name: "Bob", Grade: "Grade 9", OverallScore: 65, Trend: report.TrendDown, Subjects: map[string]int{"History": 65}},
	}

	var buf bytes.Buffer
	if err := report.ExportProgress(&buf, rows); err != nil {
		t.Fatalf("ExportProgress() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	got, err := f.GetRows("Progress")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}
	wantHeader := []string{"Student", "Grade", "Overall", "Band", "Trend", "Last Activity", "History", "Mathematics", "Science"}
	for i, h := range wantHeader {
		if got[0][i] != h {
			t.Errorf("header[%d] = %q, want %q", i, got[0][i], h)
		}
	}
	if got[1][0] != "Alice" || got[1][3] != "Excellent" || got[1][7] != "95" {
		t.Errorf("Alice row = %v", got[1])
	}
	if got[2][3] != "Needs Attention" || got[2][6] != "65" {
		t.Errorf("Bob row = %v", got[2])
	}

	avg, err := f.GetCellValue("Summary", "B2")
	if err != nil || avg != "79" {
		t.Errorf("average = %q, %v; want 79", avg, err)
	}
}
