package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	progressSheet = "Progress"
	summarySheet  = "Summary"
)

// ExportFilename is the download name of a progress workbook.
func ExportFilename(label string, at time.Time) string {
	return fmt.Sprintf("progress-%s-%s.xlsx", Slugify(label), at.Format("2006-01-02"))
}

// ExportProgress writes rows and their summary as an xlsx workbook. Subject
// columns are the sorted union of all rows' subjects.
func ExportProgress(w io.Writer, rows []StudentProgress) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", progressSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	subjects := map[string]int{}
	for _, r := range rows {
		for s := range r.Subjects {
			subjects[s] = 0
		}
	}
	subjectCols := sortedKeys(subjects)

	header := []any{"Student", "Grade", "Overall", "Band", "Trend", "Last Activity"}
	for _, s := range subjectCols {
		header = append(header, s)
	}
	if err := f.SetSheetRow(progressSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range rows {
		row := []any{r.Name, r.Grade, r.OverallScore, Title(string(BandFor(r.OverallScore))), Title(string(r.Trend)), r.LastActivity}
		for _, s := range subjectCols {
			if score, ok := r.Subjects[s]; ok {
				row = append(row, score)
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(progressSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("adding summary sheet: %w", err)
	}
	sum := Summarize(rows)
	lines := [][]any{
		{"Students", sum.Students},
		{"Average Score", sum.AverageScore},
		{"Top Performers", sum.TopPerformers},
		{"Needs Attention", sum.NeedsAttention},
	}
	for _, b := range []Band{BandExcellent, BandGood, BandFair, BandNeedsAttention} {
		lines = append(lines, []any{Title(string(b)), sum.Bands[b]})
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
