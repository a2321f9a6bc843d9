package analytics

import (
	"context"
	"strings"

	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Assessment builds the applicant's status histogram, ratios, time-to-grant
// and industry comparison. Stores without a status column yield null
// metrics rather than synthesized ones.
func (s *serviceImpl) Assessment(ctx context.Context, applicant string) (*domain.AssessmentBreakdown, error) {
	applicant = strings.TrimSpace(applicant)
	if applicant == "" {
		return nil, errors.InvalidArguments("applicant is required")
	}
	params := domain.Params{"applicant": applicant}
	return cached(ctx, s, "assessment", params, func(ctx context.Context) (*domain.AssessmentBreakdown, error) {
		return s.assess(ctx, applicant, params)
	})
}

func (s *serviceImpl) assess(ctx context.Context, applicant string, params domain.Params) (*domain.AssessmentBreakdown, error) {
	out := &domain.AssessmentBreakdown{
		Meta:      s.meta(domain.KindAssessmentBreakdown, params),
		Applicant: applicant,
	}

	status, ok, err := s.db.Relation(ctx, sqladapter.RelStatus, "s")
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("no assessment status column; metrics are null", logging.String("applicant", applicant))
		return out, nil
	}
	patents, err := s.source(ctx, sqladapter.RelPatents, "p")
	if err != nil {
		return nil, err
	}
	filter, err := s.applicantFilter(ctx, "p.patent_key", applicant, true)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Run(ctx, sqladapter.Builder.
		Select("p.patent_key", "p.application_date", "p.registration_date", "s.status").
		Distinct().
		From(patents).
		LeftJoin(status + " ON s.patent_key = p.patent_key").
		Where(filter).
		OrderBy("p.patent_key"))
	if err != nil {
		return nil, err
	}
	idx, err := rows.Resolve("patent_key", "application_date", "registration_date", "status")
	if err != nil {
		return nil, err
	}

	var (
		counts domain.StatusCounts
		days   []int
		seen   = domain.Set{}
		raw    = map[string]domain.Status{}
	)
	for i := 0; i < rows.Len(); i++ {
		key := rows.Text(i, idx["patent_key"])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		text := strings.TrimSpace(rows.Text(i, idx["status"]))
		st := domain.ClassifyStatus(text)
		counts.Add(st, 1)
		if text != "" {
			raw[text] = st
		}
		if st != domain.StatusGranted {
			continue
		}
		filed := patent.ParseDate(rows.Text(i, idx["application_date"]))
		granted := patent.ParseDate(rows.Text(i, idx["registration_date"]))
		if d, ok := filed.DaysUntil(granted); ok && d >= 0 {
			days = append(days, d)
		}
	}

	total := counts.Total()
	out.StatusAvailable = true
	out.StatusCounts = &counts
	out.Total = &total
	out.Ratios = domain.RatiosOf(counts)
	out.TimeToGrant = domain.MeanTimeToGrant(days)
	out.IndustryComparison = domain.Compare(out.Ratios, out.TimeToGrant, domain.Baseline{
		ApprovalRate:    s.settings.IndustryApprovalRate,
		TimeToGrantDays: s.settings.IndustryTimeToGrantDays,
		TolerancePoints: s.settings.TolerancePoints,
	})
	if len(raw) > 0 {
		out.RawStatuses = raw
	}
	return out, nil
}
