package analytics

import (
	"context"
	"sort"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
)

// patentCode is one (patent, application year, IPC code) row. year is 0 when
// the application date is missing or unreadable; code is "" for a patent
// without classifications.
type patentCode struct {
	key  string
	year int
	code string
}

// ─────────────────────────────────────────────────────────────────────────────
// Query helpers
// ─────────────────────────────────────────────────────────────────────────────

// applicantFilter restricts col (a patent_key column) to patents of the
// matching applicants: case-insensitive substring when fuzzy, exact name
// otherwise.
func (s *serviceImpl) applicantFilter(ctx context.Context, col, name string, fuzzy bool) (sq.Sqlizer, error) {
	apps, err := s.source(ctx, sqladapter.RelApplicants, "af")
	if err != nil {
		return nil, err
	}
	var match sq.Sqlizer = sq.Eq{"af.name": name}
	if fuzzy {
		match = s.db.Contains("af.name", name)
	}
	sub, args, err := sqladapter.Builder.Select("af.patent_key").From(apps).Where(match).ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr(col+" IN ("+sub+")", args...), nil
}

// codePrefix matches classification codes starting with prefix, ignoring
// case and inner spaces.
func codePrefix(col, prefix string) sq.Sqlizer {
	return sq.Expr("REPLACE(UPPER("+col+"), ' ', '') LIKE ? "+sqladapter.LikeEscape,
		sqladapter.PrefixPattern(ipc.Compact(prefix)))
}

// inWindow bounds the application year of p. A bounded window also drops
// patents without an application date.
func inWindow(b sq.SelectBuilder, w YearWindow) sq.SelectBuilder {
	year := sqladapter.YearExpr("p")
	if w.Start > 0 || w.End > 0 {
		b = b.Where("p.application_date <> ''")
	}
	if w.Start > 0 {
		b = b.Where(year+" >= ?", strconv.Itoa(w.Start))
	}
	if w.End > 0 {
		b = b.Where(year+" <= ?", strconv.Itoa(w.End))
	}
	return b
}

// patentCodes loads the distinct (patent, year, code) rows of the patents
// matching filter. With unclassified set, patents without any code are kept
// with an empty code.
func (s *serviceImpl) patentCodes(ctx context.Context, filter sq.Sqlizer, w YearWindow, unclassified bool) ([]patentCode, error) {
	patents, err := s.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	codes, err := s.source(ctx, sqladapter.RelClassifications, "c")
	if err != nil {
		return nil, err
	}

	b := sqladapter.Builder.
		Select("p.patent_key", sqladapter.YearExpr("p")+" AS year", "c.code").
		Distinct().
		From(patents)
	if unclassified {
		b = b.LeftJoin(codes + " ON c.patent_key = p.patent_key")
	} else {
		b = b.Join(codes + " ON c.patent_key = p.patent_key")
	}
	b = inWindow(b, w)
	if filter != nil {
		b = b.Where(filter)
	}
	rows, err := s.db.Run(ctx, b.OrderBy("p.patent_key", "c.code"))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("patent_key", "year", "code")
	if err != nil {
		return nil, err
	}

	out := make([]patentCode, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		out = append(out, patentCode{
			key:  rows.Text(i, idx["patent_key"]),
			year: parseYear(rows.Text(i, idx["year"])),
			code: rows.Text(i, idx["code"]),
		})
	}
	return out, nil
}

func parseYear(s string) int {
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 {
		return 0
	}
	return y
}

// ─────────────────────────────────────────────────────────────────────────────
// Rollup
// ─────────────────────────────────────────────────────────────────────────────

// rollup counts distinct patents per year, per IPC bucket and per
// (year, bucket) cell. It also tracks the distinct sections seen per year
// for the diversity derivation.
type rollup struct {
	patents  domain.Set
	years    map[int]domain.Set
	buckets  map[string]domain.Set
	cells    map[int]map[string]domain.Set
	sections map[int]domain.Set
}

func newRollup() *rollup {
	return &rollup{
		patents:  domain.Set{},
		years:    map[int]domain.Set{},
		buckets:  map[string]domain.Set{},
		cells:    map[int]map[string]domain.Set{},
		sections: map[int]domain.Set{},
	}
}

// rollup buckets rows at level. Malformed codes go to ipc.Unclassified and
// are logged, never surfaced.
func (s *serviceImpl) rollup(rows []patentCode, level ipc.Level) *rollup {
	r := newRollup()
	for _, row := range rows {
		bucket := ipc.Unclassified
		section := ""
		if row.code != "" {
			if _, err := ipc.Parse(row.code); err != nil {
				s.logger.Debug("unclassified IPC code", logging.String("code", row.code), logging.String("patent_key", row.key))
			} else {
				bucket = ipc.Bucket(row.code, level)
				section = ipc.Section(row.code)
			}
		}
		r.add(row.key, row.year, bucket, section)
	}
	return r
}

func (r *rollup) add(key string, year int, bucket, section string) {
	r.patents[key] = struct{}{}
	addTo(r.buckets, bucket, key)
	if year == 0 {
		return
	}
	if r.years[year] == nil {
		r.years[year] = domain.Set{}
		r.sections[year] = domain.Set{}
	}
	r.years[year][key] = struct{}{}
	if section != "" {
		r.sections[year][section] = struct{}{}
	}
	if r.cells[year] == nil {
		r.cells[year] = map[string]domain.Set{}
	}
	addTo(r.cells[year], bucket, key)
}

func addTo(m map[string]domain.Set, k, member string) {
	if m[k] == nil {
		m[k] = domain.Set{}
	}
	m[k][member] = struct{}{}
}

// yearCounts is the distinct patent count per year, ascending.
func (r *rollup) yearCounts() []patent.YearCount {
	out := make([]patent.YearCount, 0, len(r.years))
	for y, keys := range r.years {
		out = append(out, patent.YearCount{Year: y, Count: int64(len(keys))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// bucketCounts is the distinct patent count per bucket. Unclassified is
// dropped unless keepUnclassified.
func (r *rollup) bucketCounts(keepUnclassified bool) map[string]int64 {
	out := make(map[string]int64, len(r.buckets))
	for b, keys := range r.buckets {
		if b == ipc.Unclassified && !keepUnclassified {
			continue
		}
		out[b] = int64(len(keys))
	}
	return out
}

func (r *rollup) cell(year int, bucket string) int64 {
	return int64(len(r.cells[year][bucket]))
}

// diversity is the number of distinct sections per year.
func (r *rollup) diversity() map[int]int {
	out := make(map[int]int, len(r.sections))
	for y, s := range r.sections {
		out[y] = len(s)
	}
	return out
}

// subclasses is the distinct classified bucket set.
func (r *rollup) subclasses() domain.Set {
	out := domain.Set{}
	for b := range r.buckets {
		if b != ipc.Unclassified {
			out[b] = struct{}{}
		}
	}
	return out
}

// topIPC lists the n largest classified buckets with their descriptions.
func (r *rollup) topIPC(n int) []domain.IPCCount {
	counts := r.bucketCounts(false)
	out := []domain.IPCCount{}
	for _, code := range domain.TopKeys(counts, n) {
		out = append(out, domain.IPCCount{Code: code, Description: ipc.Describe(code), Count: counts[code]})
	}
	return out
}

// trend turns r into a year × bucket table over the topN buckets. Rows are
// emitted for the years that have data.
func (r *rollup) trend(meta domain.Meta, dimension string, topN int, keepUnclassified bool) *domain.YearlyTrend {
	totals := r.bucketCounts(keepUnclassified)
	cols := domain.TopKeys(totals, topN)

	t := &domain.YearlyTrend{
		Meta:         meta,
		Dimension:    dimension,
		Columns:      cols,
		Descriptions: make(map[string]string, len(cols)),
		Yearly:       []domain.YearRow{},
		Totals:       make(map[string]int64, len(cols)),
	}
	for _, c := range cols {
		t.Descriptions[c] = describe(c)
		t.Totals[c] = totals[c]
	}
	t.PatentsPerYear = r.yearCounts()
	for _, yc := range t.PatentsPerYear {
		row := domain.YearRow{Year: yc.Year, Counts: make(map[string]int64, len(cols))}
		for _, c := range cols {
			row.Counts[c] = r.cell(yc.Year, c)
		}
		t.Yearly = append(t.Yearly, row)
	}
	t.Derivations = domain.Derive(t.PatentsPerYear, r.diversity())
	return t
}

func describe(bucket string) string {
	if bucket == ipc.Unclassified {
		return ipc.UnknownDescription
	}
	return ipc.Describe(bucket)
}
