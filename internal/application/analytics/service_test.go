package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/repositories"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/testutil"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

var fixedNow = time.Date(2021, time.June, 1, 9, 30, 0, 0, time.UTC)

var settings = config.AnalyticsConfig{
	IndustryApprovalRate:     55,
	IndustryTimeToGrantDays:  730,
	TolerancePoints:          1,
	LandscapeTopCategories:   30,
	CompetitorSeedSubclasses: 3,
	TopIPCPerApplicant:       5,
	TopApplicantsPerYear:     5,
}

var corpus = []testutil.PatentFixture{
	{
		ApplicationNumber: "A-1", ApplicationDate: "2019-04-01", RegistrationDate: "2021-04-01",
		Status: "granted", Applicants: []string{"Acme Corp"},
		IPC: []string{"G06F 16/00", "H04L 9/00"},
	},
	{
		ApplicationNumber: "A-2", ApplicationDate: "2020-02-01", RegistrationDate: "2021-02-01",
		Status: "特許査定", Applicants: []string{"Acme Corp"},
		IPC: []string{"G06F 17/00"},
	},
	{
		ApplicationNumber: "A-3", ApplicationDate: "2021-03-01",
		Status: "審査中", Applicants: []string{"acme subsidiary"},
		IPC: []string{"G06N 3/08"},
	},
	{
		ApplicationNumber: "B-1", ApplicationDate: "2020-05-01",
		Status: "rejected", Applicants: []string{"Beta Inc"},
		IPC: []string{"G06F 16/30", "H04L 29/06"},
	},
	{
		ApplicationNumber: "B-2", ApplicationDate: "2021-06-01",
		Status: "withdrawn", Applicants: []string{"Beta Inc"},
		IPC: []string{"H04L 9/32"},
	},
	{
		ApplicationNumber: "C-1", ApplicationDate: "2021-01-01",
		Applicants: []string{"Gamma LLC"},
		IPC:        []string{"A61K 31/00"},
	},
}

func openDB(t *testing.T, schema string, patents []testutil.PatentFixture, opts ...testutil.FixtureOption) *sqladapter.Adapter {
	t.Helper()
	var path string
	if schema == config.SchemaInpit {
		path = testutil.NewInpitDB(t, patents, opts...)
	} else {
		path = testutil.NewCanonicalDB(t, patents, opts...)
	}
	db, err := sqladapter.Open(config.DatabaseConfig{Name: schema, Path: path, Schema: schema}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newService(t *testing.T, db *sqladapter.Adapter, cache ResultCache) Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Adapter:    db,
		Repository: repositories.NewPatentRepository(db, nil),
		Settings:   settings,
		Cache:      cache,
		Clock:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

// ─────────────────────────────────────────────────────────────────────────────
// Suite over both schema layouts
// ─────────────────────────────────────────────────────────────────────────────

type ServiceSuite struct {
	suite.Suite
	schema string
	svc    Service
}

func (s *ServiceSuite) SetupTest() {
	s.svc = newService(s.T(), openDB(s.T(), s.schema, corpus), nil)
}

func (s *ServiceSuite) TestApplicantTrends() {
	t, err := s.svc.ApplicantTrends(context.Background(), "acme", YearWindow{})
	s.Require().NoError(err)

	s.Equal("ipc_section", t.Dimension)
	s.Equal([]string{"G", "H"}, t.Columns)
	s.Require().Len(t.Yearly, 3)
	s.Equal(domain.YearRow{Year: 2019, Counts: map[string]int64{"G": 1, "H": 1}}, t.Yearly[0])
	s.Equal(domain.YearRow{Year: 2021, Counts: map[string]int64{"G": 1, "H": 0}}, t.Yearly[2])
	s.Equal(int64(3), t.Totals["G"])

	var sum int64
	for _, yc := range t.PatentsPerYear {
		sum += yc.Count
	}
	s.Equal(int64(3), sum)
	s.Equal(domain.DirectionStable, t.Direction)
}

func (s *ServiceSuite) TestApplicantTrends_Window() {
	t, err := s.svc.ApplicantTrends(context.Background(), "ACME", YearWindow{Start: 2020, End: 2020})
	s.Require().NoError(err)
	s.Require().Len(t.Yearly, 1)
	s.Equal(2020, t.Yearly[0].Year)
	s.Equal(domain.DirectionInsufficientData, t.Direction)

	_, err = s.svc.ApplicantTrends(context.Background(), "acme", YearWindow{Start: 2021, End: 2020})
	s.True(errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func (s *ServiceSuite) TestClassificationTrends() {
	r, err := s.svc.ClassificationTrends(context.Background(), "g06f", YearWindow{})
	s.Require().NoError(err)

	s.Equal("G06F", r.Classification)
	s.Require().Len(r.Years, 2)
	s.Equal(2019, r.Years[0].Year)
	s.Equal(int64(1), r.Years[0].Total)
	s.Equal(2020, r.Years[1].Year)
	s.Equal(int64(2), r.Years[1].Total)
	s.Equal("Acme Corp", r.Years[1].Applicants[0].Name)
	s.Equal("Beta Inc", r.Years[1].Applicants[1].Name)
	s.Equal("Acme Corp", r.Overall[0].Name)
	s.Equal(int64(2), r.Overall[0].Count)
	s.Equal(domain.DirectionSignificantlyIncreasing, r.Direction)

	_, err = s.svc.ClassificationTrends(context.Background(), "123", YearWindow{})
	s.True(errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func (s *ServiceSuite) TestApplicantCompetition() {
	m, err := s.svc.ApplicantCompetition(context.Background(), 3)
	s.Require().NoError(err)

	s.Equal([]string{"Acme Corp", "Beta Inc", "Gamma LLC"}, m.Names)
	s.Equal([][]int{{100, 100, 0}, {100, 100, 0}, {0, 0, 100}}, m.Matrix)
	s.Equal(domain.OverlapConvention, m.Convention)

	acme := m.TopApplicants[0]
	s.Equal(int64(2), acme.PatentCount)
	s.Require().Len(acme.TopIPC, 2)
	s.Equal("G06F", acme.TopIPC[0].Code)
	s.Equal(int64(2), acme.TopIPC[0].Count)
	s.Len(acme.Activity, 2)
}

func (s *ServiceSuite) TestApplicantCompetition_ZeroTopN() {
	m, err := s.svc.ApplicantCompetition(context.Background(), 0)
	s.Require().NoError(err)
	s.Empty(m.Names)
	s.Empty(m.Matrix)
}

func (s *ServiceSuite) TestCompareWithCompetitors() {
	c, err := s.svc.CompareWithCompetitors(context.Background(), "acme", 2)
	s.Require().NoError(err)

	s.Equal([]string{"G06F", "G06N", "H04L"}, c.SeedIPC)
	s.Require().Len(c.Competitors, 1)
	beta := c.Competitors[0]
	s.Equal("Beta Inc", beta.Name)
	s.Equal(2, beta.Score)
	s.Equal(int64(2), beta.PatentCount)
	s.Equal([]string{"G06F", "H04L"}, beta.SharedIPC)
	s.Equal(100, beta.Overlap)
	s.Equal(int64(2), beta.Summary.PatentCount)
}

func (s *ServiceSuite) TestCompareWithCompetitors_UnknownApplicant() {
	c, err := s.svc.CompareWithCompetitors(context.Background(), "nobody", 3)
	s.Require().NoError(err)
	s.Empty(c.SeedIPC)
	s.Empty(c.Competitors)
}

func (s *ServiceSuite) TestAssessment() {
	a, err := s.svc.Assessment(context.Background(), "acme")
	s.Require().NoError(err)

	s.True(a.StatusAvailable)
	s.Require().NotNil(a.StatusCounts)
	s.Equal(int64(2), a.Granted)
	s.Equal(int64(1), a.Pending)
	s.Equal(int64(3), *a.Total)
	s.Require().NotNil(a.Ratios)
	s.Equal(66.7, a.Ratios.Granted)
	s.Equal(33.3, a.Ratios.Pending)

	s.Equal(2, a.TimeToGrant.Sample)
	s.Require().NotNil(a.TimeToGrant.MeanDays)
	s.Equal(548.5, *a.TimeToGrant.MeanDays)

	s.Require().NotNil(a.IndustryComparison)
	s.Equal(domain.LabelAbove, a.IndustryComparison.Label)
	s.Equal(11.7, a.IndustryComparison.Difference)
	s.Equal("faster", a.IndustryComparison.TimeToGrantLabel)
	s.Equal(domain.StatusGranted, a.RawStatuses["特許査定"])
}

func (s *ServiceSuite) TestAssessment_NoPatents() {
	a, err := s.svc.Assessment(context.Background(), "nobody")
	s.Require().NoError(err)

	raw, err := json.Marshal(a)
	s.Require().NoError(err)
	var got map[string]interface{}
	s.Require().NoError(json.Unmarshal(raw, &got))
	s.Equal(0.0, got["granted"])
	s.Equal(0.0, got["rejected"])
	s.Equal(0.0, got["pending"])
	s.Nil(got["ratios"])
	s.Equal(map[string]interface{}{"mean": nil, "sample": 0.0}, got["time_to_grant"])
	s.Nil(got["industry_comparison"])
}

func (s *ServiceSuite) TestTechnicalFields() {
	f, err := s.svc.TechnicalFields(context.Background(), "acme")
	s.Require().NoError(err)

	s.Equal(int64(4), f.Total)
	s.Require().Len(f.Distribution, 3)
	s.Equal("G06F", f.Distribution[0].Code)
	s.Equal(50.0, f.Distribution[0].Percentage)
	s.Require().Len(f.Domains, 2)
	s.Equal("AI", f.Domains[0].Domain)
	s.Equal(int64(3), f.Domains[0].Count)
	s.Equal("Blockchain", f.Domains[1].Domain)
	s.Empty(f.Unmapped)
}

func (s *ServiceSuite) TestApplicantSummary() {
	sum, err := s.svc.ApplicantSummary(context.Background(), "acme")
	s.Require().NoError(err)

	s.Equal([]string{"Acme Corp", "acme subsidiary"}, sum.MatchedNames)
	s.Equal(int64(3), sum.TotalPatents)
	s.Equal(2019, *sum.FirstFilingYear)
	s.Equal(2021, *sum.LatestFilingYear)
	s.Len(sum.ApplicationHistory, 3)
	s.Equal("G06F", sum.TopIPC[0].Code)
	s.Equal(66.7, sum.TopIPC[0].Percentage)
	s.Equal(domain.DirectionStable, sum.Trend.Direction)
	s.Require().NotNil(sum.Assessment)
	s.Equal(int64(2), sum.Assessment.Granted)
}

func (s *ServiceSuite) TestApplicantSummary_Empty() {
	sum, err := s.svc.ApplicantSummary(context.Background(), "nobody")
	s.Require().NoError(err)
	s.Zero(sum.TotalPatents)
	s.Empty(sum.MatchedNames)
	s.Empty(sum.ApplicationHistory)
	s.Nil(sum.FirstFilingYear)
	s.Equal(domain.DirectionInsufficientData, sum.Trend.Direction)
}

func (s *ServiceSuite) TestStats() {
	st, err := s.svc.Stats(context.Background(), 2)
	s.Require().NoError(err)
	s.Equal(int64(6), st.TotalPatents)
	s.Equal(int64(4), st.TotalApplicants)
	s.Len(st.TopApplicants, 2)
}

func (s *ServiceSuite) TestDeterministicJSON() {
	first, err := s.svc.ApplicantCompetition(context.Background(), 4)
	s.Require().NoError(err)
	second, err := s.svc.ApplicantCompetition(context.Background(), 4)
	s.Require().NoError(err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	s.Equal(string(a), string(b))
}

func TestServiceSuite_Canonical(t *testing.T) {
	suite.Run(t, &ServiceSuite{schema: config.SchemaCanonical})
}

func TestServiceSuite_Inpit(t *testing.T) {
	suite.Run(t, &ServiceSuite{schema: config.SchemaInpit})
}

// ─────────────────────────────────────────────────────────────────────────────
// Scenarios and boundaries
// ─────────────────────────────────────────────────────────────────────────────

var trendCorpus = []testutil.PatentFixture{
	{ApplicationNumber: "P1", ApplicationDate: "2020-01-10", Applicants: []string{"X"}, IPC: []string{"G06F 16/00"}},
	{ApplicationNumber: "P2", ApplicationDate: "2020-02-10", Applicants: []string{"X"}, IPC: []string{"H04L 9/00"}},
	{ApplicationNumber: "P3", ApplicationDate: "2021-03-10", Applicants: []string{"Y"}, IPC: []string{"G06F 3/00"}},
	{ApplicationNumber: "P4", ApplicationDate: "2021-04-10", Applicants: []string{"Y"}, IPC: []string{"G06F 17/00"}},
}

func TestApplicantMatching_FoldsFullWidthNames(t *testing.T) {
	db := openDB(t, config.SchemaCanonical, []testutil.PatentFixture{
		{ApplicationNumber: "N-1", ApplicationDate: "2020-01-01", Status: "granted",
			Applicants: []string{"ＮＥＣ株式会社"}, IPC: []string{"G06F 16/00"}},
		{ApplicationNumber: "N-2", ApplicationDate: "2021-01-01", Status: "pending",
			Applicants: []string{"ＮＥＣ株式会社"}, IPC: []string{"G06F 17/00"}},
		{ApplicationNumber: "B-1", ApplicationDate: "2021-02-01",
			Applicants: []string{"Beta Inc"}, IPC: []string{"G06F 3/00"}},
	})
	svc := newService(t, db, nil)
	ctx := context.Background()

	c, err := svc.CompareWithCompetitors(ctx, "nec", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"G06F"}, c.SeedIPC)
	require.Len(t, c.Competitors, 1)
	assert.Equal(t, "Beta Inc", c.Competitors[0].Name)

	a, err := svc.Assessment(ctx, "ＮＥＣ")
	require.NoError(t, err)
	require.NotNil(t, a.Total)
	assert.Equal(t, int64(2), *a.Total)
	assert.Equal(t, int64(1), a.Granted)
}

func TestTechnologyTrends_Basic(t *testing.T) {
	svc := newService(t, openDB(t, config.SchemaCanonical, trendCorpus), nil)

	tr, err := svc.TechnologyTrends(context.Background(), 3, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"G06F", "H04L"}, tr.Columns)
	yearly, err := json.Marshal(tr.Yearly)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"year":2020,"G06F":1,"H04L":1},{"year":2021,"G06F":2,"H04L":0}]`, string(yearly))
	require.NotNil(t, tr.PeakYear)
	assert.Equal(t, 2021, *tr.PeakYear)
	// Totals are flat at 2 patents per year.
	assert.Equal(t, domain.DirectionStable, tr.Direction)
	assert.Equal(t, ipc.Describe("G06F"), tr.Descriptions["G06F"])
	assert.Equal(t, 2019, tr.Parameters["start_year"])
}

func TestTechnologyTrends_Boundaries(t *testing.T) {
	svc := newService(t, openDB(t, config.SchemaCanonical, trendCorpus), nil)
	ctx := context.Background()

	tr, err := svc.TechnologyTrends(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, tr.Yearly, 1)
	assert.Equal(t, 2021, tr.Yearly[0].Year)
	assert.Equal(t, domain.DirectionInsufficientData, tr.Direction)

	tr, err = svc.TechnologyTrends(ctx, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, tr.Columns)

	_, err = svc.TechnologyTrends(ctx, 0, 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
	_, err = svc.TechnologyTrends(ctx, 3, -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func TestPatentLandscape_Clustering(t *testing.T) {
	var patents []testutil.PatentFixture
	add := func(n int, code string) {
		for i := 0; i < n; i++ {
			patents = append(patents, testutil.PatentFixture{
				ApplicationNumber: code[:1] + "-" + string(rune('a'+i)),
				ApplicationDate:   "2020-01-01",
				Applicants:        []string{"X"},
				IPC:               []string{code},
			})
		}
	}
	add(6, "G06F 16/00")
	add(3, "H04L 9/00")
	add(1, "A61K 31/00")

	svc := newService(t, openDB(t, config.SchemaCanonical, patents), nil)
	l, err := svc.PatentLandscape(context.Background(), ipc.LevelSection)
	require.NoError(t, err)

	require.Len(t, l.Landscape, 3)
	assert.Equal(t, domain.CategoryCount{Category: "G", Description: ipc.Describe("G"), Count: 6}, l.Landscape[0])
	assert.Equal(t, int64(3), l.Landscape[1].Count)
	assert.Equal(t, "A", l.Landscape[2].Category)

	require.Len(t, l.Clusters, 3)
	assert.Equal(t, "Section G", l.Clusters[0].Name)
	assert.Equal(t, int64(6), l.Clusters[0].TotalPatents)
	assert.Equal(t, "Section H", l.Clusters[1].Name)
	assert.Equal(t, "Section A", l.Clusters[2].Name)

	l, err = svc.PatentLandscape(context.Background(), ipc.LevelSubclass)
	require.NoError(t, err)
	assert.Equal(t, "G06F", l.Landscape[0].Category)

	_, err = svc.PatentLandscape(context.Background(), ipc.Level(4))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func TestAssessment_MissingStatusColumn(t *testing.T) {
	svc := newService(t, openDB(t, config.SchemaCanonical, corpus, testutil.WithoutStatusColumn()), nil)

	a, err := svc.Assessment(context.Background(), "acme")
	require.NoError(t, err)
	assert.False(t, a.StatusAvailable)
	assert.Nil(t, a.StatusCounts)
	assert.Nil(t, a.Total)
	assert.Nil(t, a.Ratios)
	assert.Nil(t, a.IndustryComparison)
}

func TestOperations_Cancelled(t *testing.T) {
	svc := newService(t, openDB(t, config.SchemaCanonical, corpus), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ApplicantCompetition(ctx, 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCancelled), "got %v", err)
	_, err = svc.TechnologyTrends(ctx, 3, 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCancelled), "got %v", err)
}

func TestNewService_RequiresDeps(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	db := openDB(t, config.SchemaCanonical, corpus)
	_, err = NewService(ServiceConfig{Adapter: db})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

// ─────────────────────────────────────────────────────────────────────────────
// Result cache
// ─────────────────────────────────────────────────────────────────────────────

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
	loads int
}

func (c *memCache) GetOrSet(ctx context.Context, key string, dest interface{}, _ time.Duration, loader func(context.Context) (interface{}, error)) error {
	c.mu.Lock()
	raw, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		v, err := loader(ctx)
		if err != nil {
			return err
		}
		if raw, err = json.Marshal(v); err != nil {
			return err
		}
		c.mu.Lock()
		c.items[key] = raw
		c.loads++
		c.mu.Unlock()
	}
	return json.Unmarshal(raw, dest)
}

func TestCachedResults(t *testing.T) {
	cache := &memCache{items: map[string][]byte{}}
	svc := newService(t, openDB(t, config.SchemaCanonical, corpus), cache)
	ctx := context.Background()

	first, err := svc.ApplicantTrends(ctx, "acme", YearWindow{})
	require.NoError(t, err)
	second, err := svc.ApplicantTrends(ctx, "acme", YearWindow{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.loads)
	assert.Equal(t, first.Yearly, second.Yearly)
	assert.Equal(t, first.Derivations, second.Derivations)

	_, err = svc.ApplicantTrends(ctx, "beta", YearWindow{})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.loads)

	_, err = svc.ApplicantTrends(ctx, "", YearWindow{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func TestCacheKey_StableAcrossParamOrder(t *testing.T) {
	a, err := cacheKey("db", "op", domain.Params{"a": 1, "b": "x"})
	require.NoError(t, err)
	b, err := cacheKey("db", "op", domain.Params{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := cacheKey("other", "op", domain.Params{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
