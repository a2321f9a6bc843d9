package analytics

import (
	"math"
	"sort"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
)

// OverlapConvention names the denominator used by Overlap.
const OverlapConvention = "min_set"

// IPCCount is one IPC key with its patent count.
type IPCCount struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

// ApplicantProfile is the per-applicant block of a competition analysis.
type ApplicantProfile struct {
	Name        string             `json:"name"`
	PatentCount int64              `json:"patent_count"`
	TopIPC      []IPCCount         `json:"top_ipc"`
	Activity    []patent.YearCount `json:"activity"`
}

// OverlapMatrix holds the pairwise technology overlap of ranked applicants.
// Matrix[i][j] is Overlap(Names[i], Names[j]); the diagonal is 100.
type OverlapMatrix struct {
	Meta
	TopApplicants []ApplicantProfile `json:"top_applicants"`
	Names         []string           `json:"names"`
	Matrix        [][]int            `json:"overlap_matrix"`
	// Convention states the denominator: "min_set" divides the intersection
	// by the smaller of the two subclass sets.
	Convention string `json:"convention"`
}

// Set is a distinct set of IPC keys.
type Set map[string]struct{}

// NewSet builds a Set from keys.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Sorted returns the members ascending.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the members present in both sets, ascending.
func (s Set) Intersect(other Set) []string {
	var out []string
	for k := range s {
		if _, ok := other[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Overlap returns |a∩b| / min(|a|,|b|) as a 0–100 integer, rounded half away
// from zero. Either set empty yields 0.
func Overlap(a, b Set) int {
	denom := len(a)
	if len(b) < denom {
		denom = len(b)
	}
	if denom == 0 {
		return 0
	}
	return int(math.Round(float64(len(a.Intersect(b))) / float64(denom) * 100))
}

// BuildMatrix computes the full n×n matrix for sets in order, with the
// diagonal fixed at 100.
func BuildMatrix(sets []Set) [][]int {
	m := make([][]int, len(sets))
	for i := range sets {
		m[i] = make([]int, len(sets))
		for j := range sets {
			if i == j {
				m[i][j] = 100
				continue
			}
			m[i][j] = Overlap(sets[i], sets[j])
		}
	}
	return m
}

// CompetitorSummary is the summary block of one competitor.
type CompetitorSummary struct {
	PatentCount int64              `json:"patent_count"`
	TopIPC      []IPCCount         `json:"top_ipc"`
	Activity    []patent.YearCount `json:"activity"`
}

// Competitor is one discovered competitor.
type Competitor struct {
	Name        string            `json:"name"`
	Score       int               `json:"score"`
	PatentCount int64             `json:"patent_count"`
	SharedIPC   []string          `json:"shared_ipc"`
	Overlap     int               `json:"overlap"`
	Summary     CompetitorSummary `json:"summary"`
}

// CompetitorComparison lists the competitors of one applicant.
type CompetitorComparison struct {
	Meta
	Applicant   string       `json:"applicant"`
	SeedIPC     []string     `json:"seed_ipc"`
	Competitors []Competitor `json:"competitors"`
	Convention  string       `json:"convention"`
}

// RankCompetitors sorts by (score, patent_count) descending with name
// ascending as the final tiebreaker, and keeps the first k.
func RankCompetitors(cs []Competitor, k int) []Competitor {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if cs[i].PatentCount != cs[j].PatentCount {
			return cs[i].PatentCount > cs[j].PatentCount
		}
		return cs[i].Name < cs[j].Name
	})
	if k < 0 {
		k = 0
	}
	if k < len(cs) {
		cs = cs[:k]
	}
	return cs
}
