package analytics

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Status is an assessment (office-action lifecycle) bucket.
type Status string

const (
	StatusGranted   Status = "granted"
	StatusRejected  Status = "rejected"
	StatusPending   Status = "pending"
	StatusWithdrawn Status = "withdrawn"
	StatusAppealed  Status = "appealed"
	StatusOther     Status = "other"
)

// Statuses lists the buckets in report order.
var Statuses = []Status{StatusGranted, StatusRejected, StatusPending, StatusWithdrawn, StatusAppealed, StatusOther}

// statusTerms are matched in order against the normalized status text; the
// first bucket with a matching term wins ("拒絶査定不服審判" is appealed,
// "grant refused" is rejected).
var statusTerms = []struct {
	status Status
	terms  []string
}{
	{StatusAppealed, []string{"appeal", "審判", "不服"}},
	{StatusWithdrawn, []string{"withdraw", "abandon", "lapse", "取下", "取り下", "放棄"}},
	{StatusRejected, []string{"reject", "refus", "denied", "拒絶", "拒否"}},
	{StatusGranted, []string{"grant", "registered", "issued", "allowed", "登録", "特許査定", "権利存続"}},
	{StatusPending, []string{"pending", "examination", "filed", "published", "審査中", "審査請求", "出願中", "公開"}},
}

// ClassifyStatus buckets a raw status string. Unrecognized non-empty text
// is "other", never dropped.
func ClassifyStatus(raw string) Status {
	s := strings.ToLower(norm.NFKC.String(strings.TrimSpace(raw)))
	if s == "" {
		return StatusOther
	}
	for _, st := range statusTerms {
		for _, t := range st.terms {
			if strings.Contains(s, t) {
				return st.status
			}
		}
	}
	return StatusOther
}

// StatusCounts is the status histogram with explicit zeros.
type StatusCounts struct {
	Granted   int64 `json:"granted"`
	Rejected  int64 `json:"rejected"`
	Pending   int64 `json:"pending"`
	Withdrawn int64 `json:"withdrawn"`
	Appealed  int64 `json:"appealed"`
	Other     int64 `json:"other"`
}

// Add counts n patents under st.
func (c *StatusCounts) Add(st Status, n int64) {
	switch st {
	case StatusGranted:
		c.Granted += n
	case StatusRejected:
		c.Rejected += n
	case StatusPending:
		c.Pending += n
	case StatusWithdrawn:
		c.Withdrawn += n
	case StatusAppealed:
		c.Appealed += n
	default:
		c.Other += n
	}
}

// Get returns the count of st.
func (c StatusCounts) Get(st Status) int64 {
	switch st {
	case StatusGranted:
		return c.Granted
	case StatusRejected:
		return c.Rejected
	case StatusPending:
		return c.Pending
	case StatusWithdrawn:
		return c.Withdrawn
	case StatusAppealed:
		return c.Appealed
	}
	return c.Other
}

// Total sums every bucket.
func (c StatusCounts) Total() int64 {
	return c.Granted + c.Rejected + c.Pending + c.Withdrawn + c.Appealed + c.Other
}

// Ratios are percentages of the total to one decimal.
type Ratios struct {
	Granted  float64 `json:"granted"`
	Rejected float64 `json:"rejected"`
	Pending  float64 `json:"pending"`
}

// RatiosOf returns nil when the total is zero.
func RatiosOf(c StatusCounts) *Ratios {
	total := c.Total()
	if total == 0 {
		return nil
	}
	return &Ratios{
		Granted:  *Percent(c.Granted, total),
		Rejected: *Percent(c.Rejected, total),
		Pending:  *Percent(c.Pending, total),
	}
}

// TimeToGrant is the mean application→registration interval over granted
// patents that carry both dates.
type TimeToGrant struct {
	MeanDays *float64 `json:"mean"`
	Sample   int      `json:"sample"`
}

// MeanTimeToGrant averages days; an empty sample yields a nil mean.
func MeanTimeToGrant(days []int) TimeToGrant {
	if len(days) == 0 {
		return TimeToGrant{}
	}
	var sum int
	for _, d := range days {
		sum += d
	}
	mean := Round1(float64(sum) / float64(len(days)))
	return TimeToGrant{MeanDays: &mean, Sample: len(days)}
}

// Comparison labels.
const (
	LabelAbove = "above"
	LabelAt    = "at"
	LabelBelow = "below"
)

// Baseline is the configured industry reference.
type Baseline struct {
	ApprovalRate    float64 `json:"approval_rate"`
	TimeToGrantDays float64 `json:"time_to_grant_days"`
	TolerancePoints float64 `json:"tolerance_points"`
}

// IndustryComparison compares an applicant against the baseline.
type IndustryComparison struct {
	Baseline              Baseline `json:"baseline"`
	ApprovalRate          float64  `json:"approval_rate"`
	Difference            float64  `json:"difference"`
	Label                 string   `json:"label"`
	TimeToGrantDifference *float64 `json:"time_to_grant_difference_days"`
	TimeToGrantLabel      string   `json:"time_to_grant_label,omitempty"`
}

// Compare builds the comparison. It returns nil when there are no ratios.
// A positive time-to-grant difference means slower than the baseline.
func Compare(r *Ratios, ttg TimeToGrant, b Baseline) *IndustryComparison {
	if r == nil {
		return nil
	}
	diff := Round1(r.Granted - b.ApprovalRate)
	ic := &IndustryComparison{
		Baseline:     b,
		ApprovalRate: r.Granted,
		Difference:   abs(diff),
		Label:        label(diff, b.TolerancePoints),
	}
	if ttg.MeanDays != nil && b.TimeToGrantDays > 0 {
		d := Round1(*ttg.MeanDays - b.TimeToGrantDays)
		ic.TimeToGrantDifference = &d
		switch {
		case d < 0:
			ic.TimeToGrantLabel = "faster"
		case d > 0:
			ic.TimeToGrantLabel = "slower"
		default:
			ic.TimeToGrantLabel = "same"
		}
	}
	return ic
}

func label(diff, tolerance float64) string {
	switch {
	case diff > tolerance:
		return LabelAbove
	case diff < -tolerance:
		return LabelBelow
	}
	return LabelAt
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// AssessmentBreakdown is an applicant's approval profile. When the store
// has no status column, StatusAvailable is false and every metric is null.
type AssessmentBreakdown struct {
	Meta
	Applicant       string `json:"applicant"`
	StatusAvailable bool   `json:"status_available"`
	*StatusCounts
	Total              *int64              `json:"total"`
	Ratios             *Ratios             `json:"ratios"`
	TimeToGrant        TimeToGrant         `json:"time_to_grant"`
	IndustryComparison *IndustryComparison `json:"industry_comparison"`
	// RawStatuses maps each distinct raw status string to its bucket.
	RawStatuses map[string]Status `json:"raw_statuses,omitempty"`
}
