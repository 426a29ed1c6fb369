// Package report covers student progress: score bands, parent-report
// templates and spreadsheet export.
package report

// Trend of a student's recent scores.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// StudentProgress is one student's standing across subjects.
type StudentProgress struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Grade        string         `json:"grade"`
	OverallScore int            `json:"overallScore"`
	Subjects     map[string]int `json:"subjects"`
	Trend        Trend          `json:"trend"`
	LastActivity string         `json:"lastActivity"`
}

// Band classifies a percentage score.
type Band string

const (
	BandExcellent      Band = "excellent"
	BandGood           Band = "good"
	BandFair           Band = "fair"
	BandNeedsAttention Band = "needs attention"
)

// BandFor returns the band of score.
func BandFor(score int) Band {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 80:
		return BandGood
	case score >= 70:
		return BandFair
	default:
		return BandNeedsAttention
	}
}

// Summary aggregates a progress listing.
type Summary struct {
	Students       int          `json:"students"`
	AverageScore   int          `json:"averageScore"`
	TopPerformers  int          `json:"topPerformers"`
	NeedsAttention int          `json:"needsAttention"`
	Bands          map[Band]int `json:"bands"`
}

// Summarize counts students per band and averages their overall scores.
func Summarize(rows []StudentProgress) Summary {
	s := Summary{Students: len(rows), Bands: make(map[Band]int)}
	if len(rows) == 0 {
		return s
	}
	total := 0
	for _, r := range rows {
		total += r.OverallScore
		b := BandFor(r.OverallScore)
		s.Bands[b]++
		switch b {
		case BandExcellent:
			s.TopPerformers++
		case BandNeedsAttention:
			s.NeedsAttention++
		}
	}
	s.AverageScore = (total + len(rows)/2) / len(rows)
	return s
}
