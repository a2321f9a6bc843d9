// Package repositories implements the patent entity store over the SQL
// adapter. Queries are composed against canonical relations, so the same
// code serves the normalized and the inpit layouts.
package repositories

import (
	"context"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

var patentColumns = []string{
	"p.patent_key",
	"p.application_number",
	"p.application_date",
	"p.publication_number",
	"p.publication_date",
	"p.registration_number",
	"p.registration_date",
	"p.title",
	"p.abstract",
	"p.family_id",
}

// PatentRepository is the entity store. It satisfies patent.Repository.
type PatentRepository struct {
	db     *sqladapter.Adapter
	logger logging.Logger
}

var _ patent.Repository = (*PatentRepository)(nil)

// NewPatentRepository constructs a PatentRepository over db.
func NewPatentRepository(db *sqladapter.Adapter, logger logging.Logger) *PatentRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PatentRepository{db: db, logger: logger.Named("patent_repo")}
}

// source returns the relation subquery, failing when a required relation is
// absent from the physical schema.
func (r *PatentRepository) source(ctx context.Context, rel sqladapter.Relation, alias string) (string, error) {
	src, ok, err := r.db.Relation(ctx, rel, alias)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.BadQuery("database schema does not provide " + string(rel))
	}
	return src, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// GetByApplicationNumber returns the patent or nil when none matches.
func (r *PatentRepository) GetByApplicationNumber(ctx context.Context, an string) (*patent.Patent, error) {
	src, err := r.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Run(ctx, sqladapter.Builder.
		Select(patentColumns...).
		From(src).
		Where(sq.Eq{"p.application_number": an}).
		OrderBy("p.patent_key").
		Limit(1))
	if err != nil {
		return nil, err
	}
	patents, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(patents) == 0 {
		r.logger.Debug("patent not found", logging.String("application_number", an))
		return nil, nil
	}
	return patents[0], nil
}

// FindByApplicant returns the patents of every applicant whose name matches.
func (r *PatentRepository) FindByApplicant(ctx context.Context, name string, fuzzy bool, limit int) ([]*patent.Patent, error) {
	if limit <= 0 {
		limit = patent.DefaultApplicantLimit
	}
	src, err := r.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	apps, err := r.source(ctx, sqladapter.RelApplicants, "a")
	if err != nil {
		return nil, err
	}

	match := r.db.Contains("a.name", name)
	if !fuzzy {
		match = r.db.Equal("a.name", name)
	}
	keys, keyArgs, err := sqladapter.Builder.Select("a.patent_key").From(apps).Where(match).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build applicant filter")
	}

	rows, err := r.db.Run(ctx, sqladapter.Builder.
		Select(patentColumns...).
		From(src).
		Where(sq.Expr("p.patent_key IN ("+keys+")", keyArgs...)).
		OrderBy("p.application_number", "p.patent_key").
		Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Counters
// ─────────────────────────────────────────────────────────────────────────────

func (r *PatentRepository) CountPatents(ctx context.Context) (int64, error) {
	src, err := r.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return 0, err
	}
	return r.scalar(ctx, sqladapter.Builder.Select("COUNT(*)").From(src))
}

func (r *PatentRepository) CountDistinctApplicants(ctx context.Context) (int64, error) {
	return r.countDistinctNames(ctx, sqladapter.RelApplicants)
}

func (r *PatentRepository) CountDistinctInventors(ctx context.Context) (int64, error) {
	return r.countDistinctNames(ctx, sqladapter.RelInventors)
}

func (r *PatentRepository) countDistinctNames(ctx context.Context, rel sqladapter.Relation) (int64, error) {
	src, ok, err := r.db.Relation(ctx, rel, "x")
	if err != nil || !ok {
		return 0, err
	}
	return r.scalar(ctx, sqladapter.Builder.Select("COUNT(DISTINCT x.name)").From(src))
}

// TopApplicants ranks applicants by distinct patent count.
func (r *PatentRepository) TopApplicants(ctx context.Context, limit int) ([]patent.ApplicantCount, error) {
	out := []patent.ApplicantCount{}
	if limit <= 0 {
		return out, nil
	}
	apps, err := r.source(ctx, sqladapter.RelApplicants, "a")
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Run(ctx, sqladapter.Builder.
		Select("a.name", "COUNT(DISTINCT a.patent_key) AS patent_count").
		From(apps).
		GroupBy("a.name").
		OrderBy("patent_count DESC", "a.name ASC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("name", "patent_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < rows.Len(); i++ {
		out = append(out, patent.ApplicantCount{
			Name:  rows.Text(i, idx["name"]),
			Count: rows.Int(i, idx["patent_count"]),
		})
	}
	return out, nil
}

// PatentsPerYear returns the application-year histogram, ascending.
func (r *PatentRepository) PatentsPerYear(ctx context.Context) ([]patent.YearCount, error) {
	src, err := r.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	year := sqladapter.YearExpr("p")
	rows, err := r.db.Run(ctx, sqladapter.Builder.
		Select(year+" AS year", "COUNT(*) AS patent_count").
		From(src).
		Where("p.application_date <> ''").
		GroupBy(year).
		OrderBy("year"))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("year", "patent_count")
	if err != nil {
		return nil, err
	}
	out := []patent.YearCount{}
	for i := 0; i < rows.Len(); i++ {
		y, err := strconv.Atoi(rows.Text(i, idx["year"]))
		if err != nil {
			r.logger.Debug("skipping unparseable application year", logging.String("year", rows.Text(i, idx["year"])))
			continue
		}
		out = append(out, patent.YearCount{Year: y, Count: rows.Int(i, idx["patent_count"])})
	}
	return out, nil
}

// Stats combines the store counters. Family figures are null when the
// store carries no family ids.
func (r *PatentRepository) Stats(ctx context.Context, topApplicants int) (*patent.Stats, error) {
	var (
		s   patent.Stats
		err error
	)
	if s.TotalPatents, err = r.CountPatents(ctx); err != nil {
		return nil, err
	}
	if s.TotalApplicants, err = r.CountDistinctApplicants(ctx); err != nil {
		return nil, err
	}
	if s.TotalInventors, err = r.CountDistinctInventors(ctx); err != nil {
		return nil, err
	}
	if s.PatentsPerYear, err = r.PatentsPerYear(ctx); err != nil {
		return nil, err
	}
	if s.TopApplicants, err = r.TopApplicants(ctx, topApplicants); err != nil {
		return nil, err
	}

	src, err := r.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Run(ctx, sqladapter.Builder.
		Select("COUNT(DISTINCT p.family_id) AS families", "COUNT(p.family_id) AS members").
		From(src).
		Where("p.family_id <> ''"))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("families", "members")
	if err != nil {
		return nil, err
	}
	if rows.Len() > 0 {
		if families := rows.Int(0, idx["families"]); families > 0 {
			avg := float64(rows.Int(0, idx["members"])) / float64(families)
			s.TotalFamilies = &families
			s.AverageFamilySize = &avg
		}
	}
	return &s, nil
}

func (r *PatentRepository) scalar(ctx context.Context, b sq.Sqlizer) (int64, error) {
	rows, err := r.db.Run(ctx, b)
	if err != nil {
		return 0, err
	}
	if rows.Len() == 0 || len(rows.Columns) == 0 {
		return 0, nil
	}
	return rows.Int(0, 0), nil
}
