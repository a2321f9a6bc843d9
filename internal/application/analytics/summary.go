package analytics

import (
	"context"
	"strings"

	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// ApplicantSummary combines the application history, top subclasses, trend
// derivations and assessment of every applicant matching the name. An
// applicant without patents yields empty tables.
func (s *serviceImpl) ApplicantSummary(ctx context.Context, applicant string) (*domain.ApplicantSummary, error) {
	applicant = strings.TrimSpace(applicant)
	if applicant == "" {
		return nil, errors.InvalidArguments("applicant is required")
	}
	params := domain.Params{"applicant": applicant}

	return cached(ctx, s, "applicant_summary", params, func(ctx context.Context) (*domain.ApplicantSummary, error) {
		names, err := s.matchedNames(ctx, applicant)
		if err != nil {
			return nil, err
		}
		filter, err := s.applicantFilter(ctx, "p.patent_key", applicant, true)
		if err != nil {
			return nil, err
		}
		rows, err := s.patentCodes(ctx, filter, YearWindow{}, true)
		if err != nil {
			return nil, err
		}
		r := s.rollup(rows, ipc.LevelSubclass)

		out := &domain.ApplicantSummary{
			Meta:               s.meta(domain.KindApplicantSummary, params),
			Applicant:          applicant,
			MatchedNames:       names,
			TotalPatents:       int64(len(r.patents)),
			ApplicationHistory: r.yearCounts(),
			TopIPC:             []domain.IPCShare{},
		}
		if n := len(out.ApplicationHistory); n > 0 {
			first, last := out.ApplicationHistory[0].Year, out.ApplicationHistory[n-1].Year
			out.FirstFilingYear, out.LatestFilingYear = &first, &last
		}
		for _, c := range r.topIPC(s.settings.TopIPCPerApplicant) {
			out.TopIPC = append(out.TopIPC, domain.IPCShare{IPCCount: c, Percentage: percentOf(c.Count, out.TotalPatents)})
		}
		out.Trend = domain.Derive(out.ApplicationHistory, r.diversity())

		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
		if out.Assessment, err = s.assess(ctx, applicant, domain.Params{"applicant": applicant}); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// TechnicalFields reports the applicant's subclass distribution and its
// technical-domain rollup.
func (s *serviceImpl) TechnicalFields(ctx context.Context, applicant string) (*domain.TechnicalFields, error) {
	applicant = strings.TrimSpace(applicant)
	if applicant == "" {
		return nil, errors.InvalidArguments("applicant is required")
	}
	params := domain.Params{"applicant": applicant}

	return cached(ctx, s, "technical_fields", params, func(ctx context.Context) (*domain.TechnicalFields, error) {
		codes, err := s.source(ctx, sqladapter.RelClassifications, "c")
		if err != nil {
			return nil, err
		}
		filter, err := s.applicantFilter(ctx, "c.patent_key", applicant, true)
		if err != nil {
			return nil, err
		}
		rows, err := s.db.Run(ctx, sqladapter.Builder.
			Select("c.code", "COUNT(DISTINCT c.patent_key) AS patent_count").
			From(codes).
			Where(filter).
			Where("c.code <> ''").
			GroupBy("c.code").
			OrderBy("c.code"))
		if err != nil {
			return nil, err
		}
		idx, err := rows.Resolve("code", "patent_count")
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int64, rows.Len())
		for i := 0; i < rows.Len(); i++ {
			counts[ipc.Normalize(rows.Text(i, idx["code"]))] += rows.Int(i, idx["patent_count"])
		}

		out := &domain.TechnicalFields{Meta: s.meta(domain.KindTechnicalFields, params), Applicant: applicant}
		out.Distribution, out.Domains, out.Unmapped, out.Total = domain.BuildTechnicalFields(counts)
		return out, nil
	})
}

// Stats is the store-wide summary with the topApplicants largest applicants.
func (s *serviceImpl) Stats(ctx context.Context, topApplicants int) (*patent.Stats, error) {
	if topApplicants < 0 {
		return nil, errors.InvalidArguments("top applicants must not be negative")
	}
	return cached(ctx, s, "patent_stats", domain.Params{"top_applicants": topApplicants}, func(ctx context.Context) (*patent.Stats, error) {
		return s.repo.Stats(ctx, topApplicants)
	})
}

func (s *serviceImpl) matchedNames(ctx context.Context, applicant string) ([]string, error) {
	apps, err := s.source(ctx, sqladapter.RelApplicants, "a")
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Run(ctx, sqladapter.Builder.
		Select("a.name").
		Distinct().
		From(apps).
		Where(s.db.Contains("a.name", applicant)).
		OrderBy("a.name"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		out = append(out, rows.Text(i, 0))
	}
	return out, nil
}

func percentOf(n, total int64) float64 {
	if p := domain.Percent(n, total); p != nil {
		return *p
	}
	return 0
}
