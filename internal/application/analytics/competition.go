package analytics

import (
	"context"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// candidatesPerSeed bounds how many sharing applicants each seed subclass
// contributes before scoring.
const candidatesPerSeed = 10

// ApplicantCompetition profiles the topN applicants and their pairwise
// overlap. It issues one profile query per applicant.
func (s *serviceImpl) ApplicantCompetition(ctx context.Context, topN int) (*domain.OverlapMatrix, error) {
	if topN < 0 {
		return nil, errors.InvalidArguments("top_n must not be negative")
	}
	params := domain.Params{"top_n": topN}

	return cached(ctx, s, "applicant_competition", params, func(ctx context.Context) (*domain.OverlapMatrix, error) {
		ranked, err := s.repo.TopApplicants(ctx, topN)
		if err != nil {
			return nil, err
		}

		out := &domain.OverlapMatrix{
			Meta:          s.meta(domain.KindOverlapMatrix, params),
			TopApplicants: []domain.ApplicantProfile{},
			Names:         []string{},
			Matrix:        [][]int{},
			Convention:    domain.OverlapConvention,
		}
		sets := make([]domain.Set, 0, len(ranked))
		for _, ac := range ranked {
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
			prof, set, err := s.profile(ctx, ac.Name, false)
			if err != nil {
				return nil, err
			}
			out.TopApplicants = append(out.TopApplicants, prof)
			out.Names = append(out.Names, ac.Name)
			sets = append(sets, set)
		}
		out.Matrix = domain.BuildMatrix(sets)
		s.logger.Info("applicant competition computed", logging.Int("applicants", len(out.Names)))
		return out, nil
	})
}

// CompareWithCompetitors discovers competitors through the applicant's seed
// subclasses: every other applicant filing under a seed scores one point per
// seed shared.
func (s *serviceImpl) CompareWithCompetitors(ctx context.Context, applicant string, k int) (*domain.CompetitorComparison, error) {
	applicant = strings.TrimSpace(applicant)
	if applicant == "" {
		return nil, errors.InvalidArguments("applicant is required")
	}
	if k < 0 {
		return nil, errors.InvalidArguments("the number of competitors must not be negative")
	}
	params := domain.Params{"applicant": applicant, "k": k}

	return cached(ctx, s, "compare_with_competitors", params, func(ctx context.Context) (*domain.CompetitorComparison, error) {
		base, baseSet, err := s.profile(ctx, applicant, true)
		if err != nil {
			return nil, err
		}
		out := &domain.CompetitorComparison{
			Meta:        s.meta(domain.KindCompetitorComparison, params),
			Applicant:   applicant,
			SeedIPC:     []string{},
			Competitors: []domain.Competitor{},
			Convention:  domain.OverlapConvention,
		}
		for i, c := range base.TopIPC {
			if i == s.settings.CompetitorSeedSubclasses {
				break
			}
			out.SeedIPC = append(out.SeedIPC, c.Code)
		}
		if len(out.SeedIPC) == 0 || k == 0 {
			return out, nil
		}

		perSeed := candidatesPerSeed
		if k > perSeed {
			perSeed = k
		}
		candidates := map[string]*domain.Competitor{}
		for _, seed := range out.SeedIPC {
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
			names, err := s.applicantsSharing(ctx, seed, applicant, perSeed)
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				c, ok := candidates[name]
				if !ok {
					c = &domain.Competitor{Name: name, SharedIPC: []string{}}
					candidates[name] = c
				}
				c.Score++
				c.SharedIPC = append(c.SharedIPC, seed)
			}
		}
		if len(candidates) == 0 {
			return out, nil
		}

		counts, err := s.patentCounts(ctx, candidates)
		if err != nil {
			return nil, err
		}
		list := make([]domain.Competitor, 0, len(candidates))
		for name, c := range candidates {
			c.PatentCount = counts[name]
			sort.Strings(c.SharedIPC)
			list = append(list, *c)
		}
		list = domain.RankCompetitors(list, k)

		for i := range list {
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
			prof, set, err := s.profile(ctx, list[i].Name, false)
			if err != nil {
				return nil, err
			}
			list[i].Overlap = domain.Overlap(baseSet, set)
			list[i].Summary = domain.CompetitorSummary{
				PatentCount: prof.PatentCount,
				TopIPC:      prof.TopIPC,
				Activity:    prof.Activity,
			}
		}
		out.Competitors = list
		return out, nil
	})
}

// profile loads an applicant's patents with their codes: the patent count,
// top subclasses, yearly activity and the distinct subclass set.
func (s *serviceImpl) profile(ctx context.Context, name string, fuzzy bool) (domain.ApplicantProfile, domain.Set, error) {
	filter, err := s.applicantFilter(ctx, "p.patent_key", name, fuzzy)
	if err != nil {
		return domain.ApplicantProfile{}, nil, err
	}
	rows, err := s.patentCodes(ctx, filter, YearWindow{}, true)
	if err != nil {
		return domain.ApplicantProfile{}, nil, err
	}
	r := s.rollup(rows, ipc.LevelSubclass)
	return domain.ApplicantProfile{
		Name:        name,
		PatentCount: int64(len(r.patents)),
		TopIPC:      r.topIPC(s.settings.TopIPCPerApplicant),
		Activity:    r.yearCounts(),
	}, r.subclasses(), nil
}

// applicantsSharing returns up to limit applicants, other than those
// matching exclude, filing under subclass; most prolific first.
func (s *serviceImpl) applicantsSharing(ctx context.Context, subclass, exclude string, limit int) ([]string, error) {
	apps, err := s.source(ctx, sqladapter.RelApplicants, "a")
	if err != nil {
		return nil, err
	}
	codes, err := s.source(ctx, sqladapter.RelClassifications, "c")
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Run(ctx, sqladapter.Builder.
		Select("a.name", "COUNT(DISTINCT a.patent_key) AS patent_count").
		From(apps).
		Join(codes+" ON c.patent_key = a.patent_key").
		Where(codePrefix("c.code", subclass)).
		Where(s.db.NotContains("a.name", exclude)).
		Where(sq.NotEq{"a.name": ""}).
		GroupBy("a.name").
		OrderBy("patent_count DESC", "a.name ASC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("name")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		out = append(out, rows.Text(i, idx["name"]))
	}
	return out, nil
}

// patentCounts returns the total patent count of each candidate in one
// query.
func (s *serviceImpl) patentCounts(ctx context.Context, candidates map[string]*domain.Competitor) (map[string]int64, error) {
	apps, err := s.source(ctx, sqladapter.RelApplicants, "a")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(candidates))
	for n := range candidates {
		names = append(names, n)
	}
	sort.Strings(names)

	rows, err := s.db.Run(ctx, sqladapter.Builder.
		Select("a.name", "COUNT(DISTINCT a.patent_key) AS patent_count").
		From(apps).
		Where(sq.Eq{"a.name": names}).
		GroupBy("a.name"))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("name", "patent_count")
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		out[rows.Text(i, idx["name"])] = rows.Int(i, idx["patent_count"])
	}
	return out, nil
}
