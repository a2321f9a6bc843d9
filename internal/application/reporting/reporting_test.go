package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/internal/application/analytics"
	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/render"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/storage"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mock analytics service
// ─────────────────────────────────────────────────────────────────────────────

type mockAnalytics struct {
	mock.Mock
}

var _ analytics.Service = (*mockAnalytics)(nil)

func (m *mockAnalytics) TechnologyTrends(ctx context.Context, years, topN int) (*domain.YearlyTrend, error) {
	args := m.Called(ctx, years, topN)
	return args.Get(0).(*domain.YearlyTrend), args.Error(1)
}

func (m *mockAnalytics) ApplicantTrends(ctx context.Context, applicant string, w analytics.YearWindow) (*domain.YearlyTrend, error) {
	args := m.Called(ctx, applicant, w)
	return args.Get(0).(*domain.YearlyTrend), args.Error(1)
}

func (m *mockAnalytics) ClassificationTrends(ctx context.Context, prefix string, w analytics.YearWindow) (*domain.ApplicantRanking, error) {
	args := m.Called(ctx, prefix, w)
	return args.Get(0).(*domain.ApplicantRanking), args.Error(1)
}

func (m *mockAnalytics) ApplicantCompetition(ctx context.Context, topN int) (*domain.OverlapMatrix, error) {
	args := m.Called(ctx, topN)
	return args.Get(0).(*domain.OverlapMatrix), args.Error(1)
}

func (m *mockAnalytics) CompareWithCompetitors(ctx context.Context, applicant string, k int) (*domain.CompetitorComparison, error) {
	args := m.Called(ctx, applicant, k)
	return args.Get(0).(*domain.CompetitorComparison), args.Error(1)
}

func (m *mockAnalytics) PatentLandscape(ctx context.Context, level ipc.Level) (*domain.LandscapeTree, error) {
	args := m.Called(ctx, level)
	return args.Get(0).(*domain.LandscapeTree), args.Error(1)
}

func (m *mockAnalytics) Assessment(ctx context.Context, applicant string) (*domain.AssessmentBreakdown, error) {
	args := m.Called(ctx, applicant)
	return args.Get(0).(*domain.AssessmentBreakdown), args.Error(1)
}

func (m *mockAnalytics) ApplicantSummary(ctx context.Context, applicant string) (*domain.ApplicantSummary, error) {
	args := m.Called(ctx, applicant)
	return args.Get(0).(*domain.ApplicantSummary), args.Error(1)
}

func (m *mockAnalytics) TechnicalFields(ctx context.Context, applicant string) (*domain.TechnicalFields, error) {
	args := m.Called(ctx, applicant)
	return args.Get(0).(*domain.TechnicalFields), args.Error(1)
}

func (m *mockAnalytics) Stats(ctx context.Context, topApplicants int) (*patent.Stats, error) {
	args := m.Called(ctx, topApplicants)
	return args.Get(0).(*patent.Stats), args.Error(1)
}

func (m *mockAnalytics) Database() string { return "main" }

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

var reportTime = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
func int64p(v int64) *int64     { return &v }

func assessment() *domain.AssessmentBreakdown {
	counts := domain.StatusCounts{Granted: 2, Pending: 1}
	ratios := domain.RatiosOf(counts)
	ttg := domain.TimeToGrant{MeanDays: floatp(548.5), Sample: 2}
	return &domain.AssessmentBreakdown{
		Applicant:          "acme",
		StatusAvailable:    true,
		StatusCounts:       &counts,
		Total:              int64p(3),
		Ratios:             ratios,
		TimeToGrant:        ttg,
		IndustryComparison: domain.Compare(ratios, ttg, domain.Baseline{ApprovalRate: 55, TimeToGrantDays: 730, TolerancePoints: 1}),
	}
}

func summary() *domain.ApplicantSummary {
	history := []patent.YearCount{{Year: 2019, Count: 1}, {Year: 2020, Count: 1}, {Year: 2021, Count: 1}}
	return &domain.ApplicantSummary{
		Applicant:          "acme",
		MatchedNames:       []string{"Acme Corp", "acme subsidiary"},
		TotalPatents:       3,
		FirstFilingYear:    intp(2019),
		LatestFilingYear:   intp(2021),
		ApplicationHistory: history,
		TopIPC: []domain.IPCShare{
			{IPCCount: domain.IPCCount{Code: "G06F", Description: "Electric digital data processing", Count: 2}, Percentage: 66.7},
		},
		Trend:      domain.Derive(history, map[int]int{2019: 2, 2020: 1, 2021: 1}),
		Assessment: assessment(),
	}
}

func fields() *domain.TechnicalFields {
	return &domain.TechnicalFields{
		Applicant: "acme",
		Total:     3,
		Distribution: []domain.IPCShare{
			{IPCCount: domain.IPCCount{Code: "G06F", Description: "Electric digital data processing", Count: 2}, Percentage: 66.7},
			{IPCCount: domain.IPCCount{Code: "G06N", Description: "Computing arrangements based on specific computational models", Count: 1}, Percentage: 33.3},
		},
		Domains:  []domain.DomainShare{{Domain: "AI", Count: 1, Percentage: 33.3, Codes: []string{"G06N"}}},
		Unmapped: []string{"G06F"},
	}
}

func trend() *domain.YearlyTrend {
	return &domain.YearlyTrend{
		Dimension:    "ipc_subclass",
		Columns:      []string{"G06F", "H04L"},
		Descriptions: map[string]string{"G06F": "Electric digital data processing"},
		Yearly: []domain.YearRow{
			{Year: 2020, Counts: map[string]int64{"G06F": 1, "H04L": 1}},
			{Year: 2021, Counts: map[string]int64{"G06F": 2, "H04L": 0}},
		},
		Derivations: domain.Derive([]patent.YearCount{{Year: 2020, Count: 2}, {Year: 2021, Count: 2}}, nil),
	}
}

func newComposer(svc analytics.Service) *Composer {
	return NewComposer(svc, nil,
		WithClock(func() time.Time { return reportTime }),
		WithIDGenerator(func() string { return "r-1" }))
}

func sectionTitles(r *report.Report) []string {
	out := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		out = append(out, s.Title)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Composer
// ─────────────────────────────────────────────────────────────────────────────

func TestCompose_Visual(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("ApplicantSummary", mock.Anything, "acme").Return(summary(), nil)
	svc.On("TechnicalFields", mock.Anything, "acme").Return(fields(), nil)

	r, err := newComposer(svc).Compose(context.Background(), ComposeRequest{Kind: report.KindVisual, Applicant: " acme "})
	require.NoError(t, err)
	svc.AssertExpectations(t)

	assert.Equal(t, "r-1", r.ID)
	assert.Equal(t, report.KindVisual, r.Kind)
	assert.Equal(t, "acme", r.Subject)
	assert.Equal(t, "main", r.Database)
	assert.Equal(t, reportTime, r.GeneratedAt)
	assert.Equal(t, "Applicant Analysis Report: acme", r.Title)
	assert.Equal(t, []string{"Summary", "Assessment Status", "Application Trend", "Technical Distribution", "Industry Comparison"}, sectionTitles(r))

	assess := r.Sections[1]
	require.Len(t, assess.Charts, 1)
	assert.Equal(t, report.ChartPie, assess.Charts[0].Type)
	assert.Equal(t, []report.Point{{Label: "granted", Value: 2}, {Label: "pending", Value: 1}}, assess.Charts[0].Series[0].Points)
	assert.Equal(t, []string{"granted", "2", "66.7%"}, assess.Tables[0].Rows[0])
	assert.Len(t, assess.Tables[0].Rows, len(domain.Statuses))

	comparison := r.Sections[4]
	assert.Contains(t, comparison.KeyValues, report.KeyValue{Key: "Difference", Value: "11.7 points above"})
	assert.Contains(t, comparison.KeyValues, report.KeyValue{Key: "Time to grant vs industry", Value: "181.5 days faster"})

	tech := r.Sections[3]
	require.Len(t, tech.Tables, 2)
	assert.Equal(t, []string{"AI", "1", "33.3%", "G06N"}, tech.Tables[1].Rows[0])
}

func TestCompose_VisualNoStatusColumn(t *testing.T) {
	s := summary()
	s.Assessment = &domain.AssessmentBreakdown{Applicant: "acme"}
	svc := new(mockAnalytics)
	svc.On("ApplicantSummary", mock.Anything, "acme").Return(s, nil)
	svc.On("TechnicalFields", mock.Anything, "acme").Return(fields(), nil)

	r, err := newComposer(svc).Compose(context.Background(), ComposeRequest{Kind: report.KindVisual, Applicant: "acme"})
	require.NoError(t, err)
	assert.Empty(t, r.Sections[1].Charts)
	assert.Contains(t, r.Sections[1].Paragraphs[0], "no assessment status")
	assert.Equal(t, []string{"No assessment ratios to compare."}, r.Sections[4].Paragraphs)
}

func TestCompose_PatentWithApplicant(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("TechnologyTrends", mock.Anything, DefaultPatentReportYears, DefaultReportTopN).Return(trend(), nil)
	svc.On("Assessment", mock.Anything, "acme").Return(assessment(), nil)

	r, err := newComposer(svc).Compose(context.Background(), ComposeRequest{Kind: report.KindPatent, Applicant: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "Patent Analysis Report - acme", r.Title)
	assert.Equal(t, []string{"Filings by IPC Subclass", "Assessment Status: acme"}, sectionTitles(r))

	tr := r.Sections[0]
	assert.Equal(t, []string{"year", "G06F", "H04L"}, tr.Tables[0].Columns)
	assert.Equal(t, [][]string{{"2020", "1", "1"}, {"2021", "2", "0"}}, tr.Tables[0].Rows)
	assert.Equal(t, report.ChartStackedBar, tr.Charts[0].Type)
	assert.Len(t, tr.Charts[0].Series, 2)
	assert.Equal(t, "Filings are stable (0.0% from 2020 to 2021); the peak was 2021 with 2 patents.", tr.Paragraphs[0])
}

func TestCompose_PatentWithoutApplicant(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("TechnologyTrends", mock.Anything, 3, 2).Return(trend(), nil)

	r, err := newComposer(svc).Compose(context.Background(), ComposeRequest{Kind: report.KindPatent, Years: 3, TopN: 2})
	require.NoError(t, err)
	assert.Equal(t, "Patent Analysis Report", r.Title)
	assert.Len(t, r.Sections, 1)
	svc.AssertNotCalled(t, "Assessment", mock.Anything, mock.Anything)
}

func TestCompose_Analysis(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("Stats", mock.Anything, DefaultReportTopN).Return(&patent.Stats{
		TotalPatents: 6, TotalApplicants: 4, TotalInventors: 0,
		PatentsPerYear: []patent.YearCount{{Year: 2019, Count: 1}, {Year: 2021, Count: 3}},
	}, nil)
	svc.On("TechnologyTrends", mock.Anything, DefaultAnalysisReportYears, DefaultReportTopN).Return(trend(), nil)
	svc.On("ApplicantCompetition", mock.Anything, DefaultReportTopN).Return(&domain.OverlapMatrix{
		TopApplicants: []domain.ApplicantProfile{
			{Name: "Acme Corp", PatentCount: 2, TopIPC: []domain.IPCCount{{Code: "G06F"}, {Code: "H04L"}}},
			{Name: "Beta Inc", PatentCount: 2, TopIPC: []domain.IPCCount{{Code: "H04L"}}},
		},
		Names:  []string{"Acme Corp", "Beta Inc"},
		Matrix: [][]int{{100, 100}, {100, 100}},
	}, nil)
	svc.On("PatentLandscape", mock.Anything, ipc.LevelSubclass).Return(&domain.LandscapeTree{
		Level:     ipc.LevelSubclass,
		Landscape: []domain.CategoryCount{{Category: "G06F", Count: 3}, {Category: "H04L", Count: 2}},
		Sections:  []domain.CategoryCount{{Category: "G", Count: 3}, {Category: "H", Count: 2}},
	}, nil)

	r, err := newComposer(svc).Compose(context.Background(), ComposeRequest{Kind: report.KindAnalysis})
	require.NoError(t, err)
	assert.Equal(t, []string{"Overview", "Technology Trends", "Leading Applicants", "IPC Landscape"}, sectionTitles(r))
	assert.Contains(t, r.Sections[0].KeyValues, report.KeyValue{Key: "Application years", Value: "2019-2021"})
	assert.Equal(t, []string{"1", "Acme Corp", "2", "G06F, H04L"}, r.Sections[2].Tables[0].Rows[0])
	assert.Equal(t, []string{"applicant", "Acme Corp", "Beta Inc"}, r.Sections[2].Tables[1].Columns)
	assert.Equal(t, report.ChartPie, r.Sections[3].Charts[0].Type)
}

func TestCompose_InvalidRequests(t *testing.T) {
	c := newComposer(new(mockAnalytics))
	cases := []ComposeRequest{
		{Kind: report.KindVisual},
		{Kind: "weekly"},
		{Kind: report.KindPatent, Years: -1},
	}
	for _, req := range cases {
		_, err := c.Compose(context.Background(), req)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments), "%+v", req)
	}
}

func TestCompose_EngineErrorSurfaces(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("TechnologyTrends", mock.Anything, mock.Anything, mock.Anything).
		Return((*domain.YearlyTrend)(nil), errors.Unavailable("gateway down"))

	_, err := newComposer(svc).Compose(context.Background(), ComposeRequest{Kind: report.KindPatent})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

func newReportService(t *testing.T, svc analytics.Service, store storage.Store) Service {
	t.Helper()
	s, err := NewService(ServiceConfig{
		Composer:  newComposer(svc),
		Renderers: []Renderer{render.NewJSON(), render.NewMarkdown(), render.NewHTML()},
		Store:     store,
	})
	require.NoError(t, err)
	return s
}

func TestService_Generate(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("TechnologyTrends", mock.Anything, mock.Anything, mock.Anything).Return(trend(), nil)

	dir := t.TempDir()
	store, err := storage.NewFilesystem(dir, nil)
	require.NoError(t, err)
	s := newReportService(t, svc, store)

	art, err := s.Generate(context.Background(), GenerateRequest{
		ComposeRequest: ComposeRequest{Kind: report.KindPatent},
		Format:         report.FormatMarkdown,
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", art.ReportID)
	assert.Equal(t, report.FormatMarkdown, art.Format)
	assert.Equal(t, filepath.Join(dir, "patent", "2021-06-01", "r-1.md"), art.Location)
	assert.Equal(t, "text/markdown; charset=utf-8", art.ContentType)

	body, err := os.ReadFile(art.Location)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "# Patent Analysis Report\n"))
	assert.Equal(t, int64(len(body)), art.Size)
}

func TestService_GenerateWithoutStore(t *testing.T) {
	s := newReportService(t, new(mockAnalytics), nil)
	_, err := s.Generate(context.Background(), GenerateRequest{ComposeRequest: ComposeRequest{Kind: report.KindPatent}, Format: report.FormatHTML})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
}

func TestService_UnknownFormat(t *testing.T) {
	store, err := storage.NewFilesystem(t.TempDir(), nil)
	require.NoError(t, err)
	s := newReportService(t, new(mockAnalytics), store)

	_, err = s.Generate(context.Background(), GenerateRequest{ComposeRequest: ComposeRequest{Kind: report.KindPatent}, Format: report.FormatPDF})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	_, err = s.Render(context.Background(), &report.Report{Title: "x"}, report.FormatPDF)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
	assert.Equal(t, []report.Format{report.FormatJSON, report.FormatMarkdown, report.FormatHTML}, s.Formats())
}

func TestService_DeterministicRendering(t *testing.T) {
	svc := new(mockAnalytics)
	svc.On("ApplicantSummary", mock.Anything, "acme").Return(summary(), nil)
	svc.On("TechnicalFields", mock.Anything, "acme").Return(fields(), nil)
	s := newReportService(t, svc, nil)

	var outs [2][]byte
	for i := range outs {
		r, err := s.Compose(context.Background(), ComposeRequest{Kind: report.KindVisual, Applicant: "acme"})
		require.NoError(t, err)
		outs[i], err = s.Render(context.Background(), r, report.FormatJSON)
		require.NoError(t, err)
	}
	assert.Equal(t, outs[0], outs[1])
}

func TestArtifactKey(t *testing.T) {
	r := &report.Report{ID: "abc", Kind: report.KindVisual, GeneratedAt: reportTime}
	assert.Equal(t, "visual/2021-06-01/abc.pdf", ArtifactKey(r, report.FormatPDF))
}
