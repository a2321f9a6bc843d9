package analytics

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
)

// Direction labels the overall movement of a yearly series.
type Direction string

const (
	DirectionSignificantlyIncreasing Direction = "significantly_increasing"
	DirectionIncreasing              Direction = "increasing"
	DirectionStable                  Direction = "stable"
	DirectionDecreasing              Direction = "decreasing"
	DirectionSignificantlyDecreasing Direction = "significantly_decreasing"
	DirectionInsufficientData        Direction = "insufficient_data"
)

// Diversity compares the number of distinct technology areas first vs last.
type Diversity string

const (
	DiversityIncreased Diversity = "increased"
	DiversityDecreased Diversity = "decreased"
	DiversityUnchanged Diversity = "unchanged"
	DiversityUnknown   Diversity = "insufficient_data"
)

// Direction thresholds on the relative change between first and last
// non-empty year.
const (
	significantChange = 0.20
	moderateChange    = 0.05
)

// YearRow is one row of a trend table. It encodes flat:
// {"year":2020,"G06F":1,"H04L":1}.
type YearRow struct {
	Year   int
	Counts map[string]int64
}

// Total sums the row.
func (r YearRow) Total() int64 {
	var n int64
	for _, c := range r.Counts {
		n += c
	}
	return n
}

func (r YearRow) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(`{"year":`)
	buf.WriteString(strconv.Itoa(r.Year))
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(r.Counts[k], 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *YearRow) UnmarshalJSON(b []byte) error {
	var raw map[string]int64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Year = int(raw["year"])
	delete(raw, "year")
	r.Counts = raw
	return nil
}

// Derivations are attached to every trend.
type Derivations struct {
	Direction Direction `json:"direction"`
	// ChangePercent is the first-to-last relative change, one decimal.
	ChangePercent *float64  `json:"change_percent"`
	FirstYear     *int      `json:"first_year"`
	LastYear      *int      `json:"last_year"`
	PeakYear      *int      `json:"peak_year"`
	PeakCount     int64     `json:"peak_count"`
	Diversity     Diversity `json:"diversity_trend"`
}

// YearlyTrend is a year × key count table with its derivations.
type YearlyTrend struct {
	Meta
	// Dimension names what the columns are: "ipc_subclass", "ipc_section".
	Dimension      string             `json:"dimension"`
	Columns        []string           `json:"columns"`
	Descriptions   map[string]string  `json:"descriptions"`
	Yearly         []YearRow          `json:"yearly"`
	Totals         map[string]int64   `json:"totals"`
	// PatentsPerYear counts each patent once per year whatever its number
	// of columns; the derivations are computed over it.
	PatentsPerYear []patent.YearCount `json:"patents_per_year"`
	Derivations
}

// YearTotals returns the per-year totals of the table, ascending by year.
func (t *YearlyTrend) YearTotals() []patent.YearCount {
	out := make([]patent.YearCount, 0, len(t.Yearly))
	for _, r := range t.Yearly {
		out = append(out, patent.YearCount{Year: r.Year, Count: r.Total()})
	}
	return out
}

// Derive computes direction, change, peak year and diversity. totals must be
// ascending by year; distinct maps a year to its number of distinct
// technology areas.
func Derive(totals []patent.YearCount, distinct map[int]int) Derivations {
	d := Derivations{Direction: DirectionInsufficientData, Diversity: DiversityUnknown}

	var nonEmpty []patent.YearCount
	for _, yc := range totals {
		if yc.Count > 0 {
			nonEmpty = append(nonEmpty, yc)
		}
	}
	if peak, ok := PeakYear(totals); ok {
		d.PeakYear = &peak.Year
		d.PeakCount = peak.Count
	}
	if len(nonEmpty) < 2 {
		return d
	}

	first, last := nonEmpty[0], nonEmpty[len(nonEmpty)-1]
	d.FirstYear, d.LastYear = &first.Year, &last.Year
	delta := float64(last.Count-first.Count) / float64(first.Count)
	change := Round1(delta * 100)
	d.ChangePercent = &change
	d.Direction = DirectionOf(delta)

	switch a, b := distinct[first.Year], distinct[last.Year]; {
	case b > a:
		d.Diversity = DiversityIncreased
	case b < a:
		d.Diversity = DiversityDecreased
	default:
		d.Diversity = DiversityUnchanged
	}
	return d
}

// DirectionOf labels a relative change.
func DirectionOf(delta float64) Direction {
	switch {
	case delta > significantChange:
		return DirectionSignificantlyIncreasing
	case delta > moderateChange:
		return DirectionIncreasing
	case delta < -significantChange:
		return DirectionSignificantlyDecreasing
	case delta < -moderateChange:
		return DirectionDecreasing
	}
	return DirectionStable
}

// PeakYear is the argmax of totals; ties go to the latest year. ok is false
// when every year is empty.
func PeakYear(totals []patent.YearCount) (patent.YearCount, bool) {
	var (
		best  patent.YearCount
		found bool
	)
	for _, yc := range totals {
		if yc.Count == 0 {
			continue
		}
		if !found || yc.Count > best.Count || (yc.Count == best.Count && yc.Year > best.Year) {
			best, found = yc, true
		}
	}
	return best, found
}

// TopKeys picks the n keys with the largest totals, ties broken by key
// ascending. n <= 0 selects nothing.
func TopKeys(totals map[string]int64, n int) []string {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if totals[keys[i]] != totals[keys[j]] {
			return totals[keys[i]] > totals[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n < 0 {
		n = 0
	}
	if n < len(keys) {
		keys = keys[:n]
	}
	return keys
}

// YearRange lists every year from start to end inclusive.
func YearRange(start, end int) []int {
	if end < start {
		return nil
	}
	out := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		out = append(out, y)
	}
	return out
}
