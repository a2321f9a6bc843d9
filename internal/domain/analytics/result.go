// Package analytics holds the analytic result value objects and the pure
// derivations computed over them: trend direction, peak year, diversity,
// overlap, landscape clustering and assessment ratios. Nothing here performs
// I/O; the application layer feeds it rows.
package analytics

import (
	"math"
	"time"
)

// Kind tags an AnalyticResult variant.
type Kind string

const (
	KindYearlyTrend          Kind = "yearly_trend"
	KindApplicantRanking     Kind = "applicant_ranking"
	KindOverlapMatrix        Kind = "overlap_matrix"
	KindLandscapeTree        Kind = "landscape_tree"
	KindAssessmentBreakdown  Kind = "assessment_breakdown"
	KindApplicantSummary     Kind = "applicant_summary"
	KindTechnicalFields      Kind = "technical_fields"
	KindCompetitorComparison Kind = "competitor_comparison"
)

// Params are the query parameters a result was computed for.
type Params map[string]interface{}

// Meta is carried by every result.
type Meta struct {
	Kind        Kind      `json:"kind"`
	Database    string    `json:"database,omitempty"`
	Parameters  Params    `json:"parameters"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewMeta stamps a result with its parameters and generation time (UTC,
// second precision).
func NewMeta(kind Kind, database string, params Params, now time.Time) Meta {
	if params == nil {
		params = Params{}
	}
	return Meta{Kind: kind, Database: database, Parameters: params, GeneratedAt: now.UTC().Truncate(time.Second)}
}

// Result is the AnalyticResult tagged union.
type Result interface {
	Metadata() Meta
}

func (m Meta) Metadata() Meta { return m }

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percent returns part/total*100 rounded to one decimal, or nil when total
// is zero.
func Percent(part, total int64) *float64 {
	if total == 0 {
		return nil
	}
	v := Round1(float64(part) / float64(total) * 100)
	return &v
}
