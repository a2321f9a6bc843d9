package analytics

import (
	"context"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// TechnologyTrends covers the years application years ending with the
// current one.
func (s *serviceImpl) TechnologyTrends(ctx context.Context, years, topN int) (*domain.YearlyTrend, error) {
	if years < 1 {
		return nil, errors.InvalidArguments("years must be at least 1")
	}
	if topN < 0 {
		return nil, errors.InvalidArguments("top_n must not be negative")
	}
	end := s.now().Year()
	window := YearWindow{Start: end - years + 1, End: end}
	params := window.params(domain.Params{"years": years, "top_n": topN})

	return cached(ctx, s, "technology_trends", params, func(ctx context.Context) (*domain.YearlyTrend, error) {
		rows, err := s.patentCodes(ctx, nil, window, false)
		if err != nil {
			return nil, err
		}
		t := s.rollup(rows, ipc.LevelSubclass).trend(s.meta(domain.KindYearlyTrend, params), "ipc_subclass", topN, false)
		s.logger.Info("technology trends computed",
			logging.Int("years", years),
			logging.Int("top_n", topN),
			logging.Int("rows", len(t.Yearly)))
		return t, nil
	})
}

// ApplicantTrends groups by IPC section. Patents without a readable code are
// counted under ipc.Unclassified.
func (s *serviceImpl) ApplicantTrends(ctx context.Context, applicant string, window YearWindow) (*domain.YearlyTrend, error) {
	applicant = strings.TrimSpace(applicant)
	if applicant == "" {
		return nil, errors.InvalidArguments("applicant is required")
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	params := window.params(domain.Params{"applicant": applicant})

	return cached(ctx, s, "applicant_trends", params, func(ctx context.Context) (*domain.YearlyTrend, error) {
		filter, err := s.applicantFilter(ctx, "p.patent_key", applicant, true)
		if err != nil {
			return nil, err
		}
		rows, err := s.patentCodes(ctx, filter, window, true)
		if err != nil {
			return nil, err
		}
		r := s.rollup(rows, ipc.LevelSection)
		t := r.trend(s.meta(domain.KindYearlyTrend, params), "ipc_section", len(r.buckets), true)
		if len(r.patents) == 0 {
			s.logger.Debug("applicant has no patents", logging.String("applicant", applicant))
		}
		return t, nil
	})
}

// ClassificationTrends ranks applicants per year among the patents carrying
// a code under prefix. Each year keeps the configured number of applicants.
func (s *serviceImpl) ClassificationTrends(ctx context.Context, prefix string, window YearWindow) (*domain.ApplicantRanking, error) {
	code, err := ipc.Parse(prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidArguments, "classification must start with an IPC section letter")
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	key := ipc.Compact(code.Full)
	params := window.params(domain.Params{"classification": key})

	return cached(ctx, s, "classification_trends", params, func(ctx context.Context) (*domain.ApplicantRanking, error) {
		rows, err := s.classificationApplicants(ctx, key, window)
		if err != nil {
			return nil, err
		}

		byYear := map[int]map[string]domain.Set{}
		yearPatents := map[int]domain.Set{}
		overall := map[string]domain.Set{}
		for _, row := range rows {
			if row.year == 0 {
				continue
			}
			if byYear[row.year] == nil {
				byYear[row.year] = map[string]domain.Set{}
				yearPatents[row.year] = domain.Set{}
			}
			addTo(byYear[row.year], row.name, row.key)
			addTo(overall, row.name, row.key)
			yearPatents[row.year][row.key] = struct{}{}
		}

		perYear := s.settings.TopApplicantsPerYear
		out := &domain.ApplicantRanking{
			Meta:           s.meta(domain.KindApplicantRanking, params),
			Classification: key,
			Description:    ipc.Describe(key),
			Years:          []domain.YearRanking{},
		}
		totals := make([]patent.YearCount, 0, len(yearPatents))
		distinct := make(map[int]int, len(byYear))
		for _, y := range sortedYears(yearPatents) {
			counts := setCounts(byYear[y])
			out.Years = append(out.Years, domain.YearRanking{
				Year:       y,
				Total:      int64(len(yearPatents[y])),
				Applicants: domain.RankApplicants(counts, perYear),
			})
			totals = append(totals, patent.YearCount{Year: y, Count: int64(len(yearPatents[y]))})
			distinct[y] = len(counts)
		}
		out.Overall = domain.RankApplicants(setCounts(overall), perYear)
		out.Derivations = domain.Derive(totals, distinct)
		return out, nil
	})
}

type applicantRow struct {
	key  string
	year int
	name string
}

func (s *serviceImpl) classificationApplicants(ctx context.Context, prefix string, w YearWindow) ([]applicantRow, error) {
	patents, err := s.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	codes, err := s.source(ctx, sqladapter.RelClassifications, "c")
	if err != nil {
		return nil, err
	}
	apps, err := s.source(ctx, sqladapter.RelApplicants, "a")
	if err != nil {
		return nil, err
	}

	b := sqladapter.Builder.
		Select("p.patent_key", sqladapter.YearExpr("p")+" AS year", "a.name").
		Distinct().
		From(patents).
		Join(codes + " ON c.patent_key = p.patent_key").
		Join(apps + " ON a.patent_key = p.patent_key").
		Where(codePrefix("c.code", prefix)).
		Where(sq.NotEq{"a.name": ""})
	rows, err := s.db.Run(ctx, inWindow(b, w).OrderBy("p.patent_key", "a.name"))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("patent_key", "year", "name")
	if err != nil {
		return nil, err
	}
	out := make([]applicantRow, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		out = append(out, applicantRow{
			key:  rows.Text(i, idx["patent_key"]),
			year: parseYear(rows.Text(i, idx["year"])),
			name: rows.Text(i, idx["name"]),
		})
	}
	return out, nil
}

func setCounts(m map[string]domain.Set) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = int64(len(v))
	}
	return out
}

func sortedYears(m map[int]domain.Set) []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
