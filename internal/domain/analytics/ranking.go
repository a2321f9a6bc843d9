package analytics

import (
	"sort"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
)

// YearRanking is the applicant ranking of one year.
type YearRanking struct {
	Year       int                     `json:"year"`
	Total      int64                   `json:"total"`
	Applicants []patent.ApplicantCount `json:"applicants"`
}

// ApplicantRanking ranks applicants per year within one IPC prefix.
type ApplicantRanking struct {
	Meta
	Classification string        `json:"classification"`
	Description    string        `json:"description"`
	Years          []YearRanking `json:"years"`
	// Overall is the window-wide ranking over the same cap.
	Overall []patent.ApplicantCount `json:"overall"`
	Derivations
}

// RankApplicants orders counts descending, ties by name ascending, and keeps
// the first n. n <= 0 yields an empty ranking.
func RankApplicants(counts map[string]int64, n int) []patent.ApplicantCount {
	out := make([]patent.ApplicantCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, patent.ApplicantCount{Name: name, Count: c})
	}
	SortApplicantCounts(out)
	if n < 0 {
		n = 0
	}
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// SortApplicantCounts sorts by count descending then name ascending.
func SortApplicantCounts(s []patent.ApplicantCount) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Count != s[j].Count {
			return s[i].Count > s[j].Count
		}
		return s[i].Name < s[j].Name
	})
}
