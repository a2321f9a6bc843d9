package reporting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/KeyIP-Analytics/internal/application/analytics"
	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Defaults of the trend windows composed into reports.
const (
	DefaultPatentReportYears   = 10
	DefaultAnalysisReportYears = 5
	DefaultReportTopN          = 5
	// landscapeTableRows caps the category table of the analysis report.
	landscapeTableRows = 10
)

// ComposeRequest selects a composition and its parameters.
type ComposeRequest struct {
	Kind      report.Kind
	Applicant string
	// Years and TopN size the technology trend section; zero selects the
	// kind's default.
	Years int
	TopN  int
}

// Composer builds report models out of analytics results.
type Composer struct {
	analytics analytics.Service
	logger    logging.Logger
	clock     func() time.Time
	newID     func() string
}

// ComposerOption customizes a Composer.
type ComposerOption func(*Composer)

// WithClock sets the clock stamping generated_at.
func WithClock(clock func() time.Time) ComposerOption {
	return func(c *Composer) { c.clock = clock }
}

// WithIDGenerator sets the report ID generator.
func WithIDGenerator(gen func() string) ComposerOption {
	return func(c *Composer) { c.newID = gen }
}

// NewComposer returns a Composer reading svc.
func NewComposer(svc analytics.Service, logger logging.Logger, opts ...ComposerOption) *Composer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Composer{
		analytics: svc,
		logger:    logger.Named("composer"),
		clock:     time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the report req asks for. Engine failures surface unchanged;
// no partial report is returned.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) (*report.Report, error) {
	req.Applicant = strings.TrimSpace(req.Applicant)
	if req.Years < 0 || req.TopN < 0 {
		return nil, errors.InvalidArguments("years and top_n must not be negative")
	}

	var (
		r   *report.Report
		err error
	)
	switch req.Kind {
	case report.KindVisual:
		if req.Applicant == "" {
			return nil, errors.InvalidArguments("applicant_name is required")
		}
		r, err = c.visual(ctx, req.Applicant)
	case report.KindPatent:
		r, err = c.patent(ctx, req.Applicant, orDefault(req.Years, DefaultPatentReportYears), orDefault(req.TopN, DefaultReportTopN))
	case report.KindAnalysis:
		r, err = c.analysis(ctx, orDefault(req.Years, DefaultAnalysisReportYears), orDefault(req.TopN, DefaultReportTopN))
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "unknown report kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}

	r.ID = c.newID()
	r.Kind = req.Kind
	r.Subject = req.Applicant
	r.Database = c.analytics.Database()
	r.GeneratedAt = c.clock().UTC().Truncate(time.Second)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c.logger.Info("report composed",
		logging.String("report_id", r.ID),
		logging.String("kind", string(r.Kind)),
		logging.Int("sections", len(r.Sections)))
	return r, nil
}

// visual profiles one applicant: summary, assessment, application trend,
// technical distribution and industry comparison.
func (c *Composer) visual(ctx context.Context, applicant string) (*report.Report, error) {
	summary, err := c.analytics.ApplicantSummary(ctx, applicant)
	if err != nil {
		return nil, err
	}
	fields, err := c.analytics.TechnicalFields(ctx, applicant)
	if err != nil {
		return nil, err
	}

	r := &report.Report{Title: "Applicant Analysis Report: " + applicant}
	r.Sections = append(r.Sections,
		summarySection(summary),
		assessmentSection("Assessment Status", summary.Assessment),
		historySection(summary),
		technicalSection(fields),
		comparisonSection(summary.Assessment),
	)
	return r, nil
}

// patent is the technology trend report with an optional applicant
// assessment.
func (c *Composer) patent(ctx context.Context, applicant string, years, topN int) (*report.Report, error) {
	trend, err := c.analytics.TechnologyTrends(ctx, years, topN)
	if err != nil {
		return nil, err
	}
	r := &report.Report{Title: "Patent Analysis Report"}
	r.Sections = append(r.Sections, trendSection("Filings by IPC Subclass", trend))
	if applicant == "" {
		return r, nil
	}

	r.Title += " - " + applicant
	a, err := c.analytics.Assessment(ctx, applicant)
	if err != nil {
		return nil, err
	}
	r.Sections = append(r.Sections, assessmentSection("Assessment Status: "+applicant, a))
	return r, nil
}

// analysis is the store-wide overview: totals, technology trends, leading
// applicants with their overlap and the IPC landscape.
func (c *Composer) analysis(ctx context.Context, years, topN int) (*report.Report, error) {
	stats, err := c.analytics.Stats(ctx, topN)
	if err != nil {
		return nil, err
	}
	trend, err := c.analytics.TechnologyTrends(ctx, years, topN)
	if err != nil {
		return nil, err
	}
	competition, err := c.analytics.ApplicantCompetition(ctx, topN)
	if err != nil {
		return nil, err
	}
	landscape, err := c.analytics.PatentLandscape(ctx, ipc.LevelSubclass)
	if err != nil {
		return nil, err
	}

	r := &report.Report{Title: "Patent Analysis Report"}
	r.Sections = append(r.Sections,
		overviewSection(stats),
		trendSection("Technology Trends", trend),
		competitionSection(competition),
		landscapeSection(landscape),
	)
	return r, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

func summarySection(s *domain.ApplicantSummary) report.Section {
	sec := report.Section{Title: "Summary"}
	if s.TotalPatents == 0 {
		sec.Paragraphs = append(sec.Paragraphs, fmt.Sprintf("No patents match %q.", s.Applicant))
	}
	sec.KeyValues = []report.KeyValue{
		{Key: "Applicant", Value: s.Applicant},
		{Key: "Matched names", Value: joinOrNone(s.MatchedNames)},
		{Key: "Total patents", Value: strconv.FormatInt(s.TotalPatents, 10)},
		{Key: "First filing year", Value: intOrNA(s.FirstFilingYear)},
		{Key: "Latest filing year", Value: intOrNA(s.LatestFilingYear)},
		{Key: "Filing trend", Value: string(s.Trend.Direction)},
	}
	if a := s.Assessment; a != nil && a.Ratios != nil {
		sec.KeyValues = append(sec.KeyValues, report.KeyValue{Key: "Grant rate", Value: percent(a.Ratios.Granted)})
	}
	if a := s.Assessment; a != nil && a.TimeToGrant.MeanDays != nil {
		sec.KeyValues = append(sec.KeyValues, report.KeyValue{Key: "Mean time to grant", Value: days(*a.TimeToGrant.MeanDays)})
	}
	return sec
}

func assessmentSection(title string, a *domain.AssessmentBreakdown) report.Section {
	sec := report.Section{Title: title}
	if a == nil || !a.StatusAvailable || a.StatusCounts == nil {
		sec.Paragraphs = []string{"The database carries no assessment status; assessment metrics are unavailable."}
		return sec
	}

	tbl := report.Table{Columns: []string{"status", "patents", "share"}}
	pie := report.Series{Name: "patents"}
	total := a.StatusCounts.Total()
	for _, st := range domain.Statuses {
		n := a.StatusCounts.Get(st)
		share := "n/a"
		if p := domain.Percent(n, total); p != nil {
			share = percent(*p)
		}
		tbl.Rows = append(tbl.Rows, []string{string(st), strconv.FormatInt(n, 10), share})
		if n > 0 {
			pie.Points = append(pie.Points, report.Point{Label: string(st), Value: float64(n)})
		}
	}
	sec.Tables = []report.Table{tbl}

	if total == 0 {
		sec.Paragraphs = []string{"No patents match the applicant; ratios are undefined."}
		return sec
	}
	sec.Charts = []report.Chart{{Type: report.ChartPie, Title: "Assessment status distribution", Series: []report.Series{pie}}}
	sec.KeyValues = []report.KeyValue{
		{Key: "Granted", Value: percent(a.Ratios.Granted)},
		{Key: "Rejected", Value: percent(a.Ratios.Rejected)},
		{Key: "Pending", Value: percent(a.Ratios.Pending)},
		{Key: "Time to grant sample", Value: strconv.Itoa(a.TimeToGrant.Sample)},
	}
	if a.TimeToGrant.MeanDays != nil {
		sec.KeyValues = append(sec.KeyValues, report.KeyValue{Key: "Mean time to grant", Value: days(*a.TimeToGrant.MeanDays)})
	}
	return sec
}

func historySection(s *domain.ApplicantSummary) report.Section {
	sec := report.Section{Title: "Application Trend"}
	if len(s.ApplicationHistory) == 0 {
		sec.Paragraphs = []string{"No dated applications."}
		return sec
	}
	sec.Charts = []report.Chart{{
		Type:   report.ChartLine,
		Title:  "Applications per year",
		XAxis:  "year",
		YAxis:  "patents",
		Series: []report.Series{yearSeries("patents", s.ApplicationHistory)},
	}}
	sec.Paragraphs = []string{describeTrend(s.Trend)}
	return sec
}

func technicalSection(f *domain.TechnicalFields) report.Section {
	sec := report.Section{Title: "Technical Distribution"}
	if f.Total == 0 {
		sec.Paragraphs = []string{"No classified patents."}
		return sec
	}

	dist := report.Table{Title: "IPC subclasses", Columns: []string{"code", "description", "patents", "share"}}
	bar := report.Series{Name: "patents"}
	for i, d := range f.Distribution {
		dist.Rows = append(dist.Rows, []string{d.Code, d.Description, strconv.FormatInt(d.Count, 10), percent(d.Percentage)})
		if i < DefaultReportTopN {
			bar.Points = append(bar.Points, report.Point{Label: d.Code, Value: float64(d.Count)})
		}
	}
	sec.Tables = append(sec.Tables, dist)
	sec.Charts = []report.Chart{{Type: report.ChartBar, Title: "Main technical fields", XAxis: "ipc", YAxis: "patents", Series: []report.Series{bar}}}

	if len(f.Domains) > 0 {
		domains := report.Table{Title: "Technical domains", Columns: []string{"domain", "patents", "share", "codes"}}
		for _, d := range f.Domains {
			domains.Rows = append(domains.Rows, []string{d.Domain, strconv.FormatInt(d.Count, 10), percent(d.Percentage), strings.Join(d.Codes, ", ")})
		}
		sec.Tables = append(sec.Tables, domains)
	}
	if len(f.Unmapped) > 0 {
		sec.Paragraphs = []string{"Subclasses outside the tracked domains: " + strings.Join(f.Unmapped, ", ") + "."}
	}
	return sec
}

func comparisonSection(a *domain.AssessmentBreakdown) report.Section {
	sec := report.Section{Title: "Industry Comparison"}
	if a == nil || a.IndustryComparison == nil {
		sec.Paragraphs = []string{"No assessment ratios to compare."}
		return sec
	}
	ic := a.IndustryComparison
	sec.KeyValues = []report.KeyValue{
		{Key: "Approval rate", Value: percent(ic.ApprovalRate)},
		{Key: "Industry approval rate", Value: percent(ic.Baseline.ApprovalRate)},
		{Key: "Difference", Value: report.FormatNumber(ic.Difference) + " points " + ic.Label},
	}
	if ic.TimeToGrantDifference != nil {
		sec.KeyValues = append(sec.KeyValues, report.KeyValue{
			Key:   "Time to grant vs industry",
			Value: report.FormatNumber(abs(*ic.TimeToGrantDifference)) + " days " + ic.TimeToGrantLabel,
		})
	}
	sec.Charts = []report.Chart{{
		Type:  report.ChartBar,
		Title: "Approval rate vs industry",
		YAxis: "percent",
		Series: []report.Series{{Name: "approval rate", Points: []report.Point{
			{Label: "applicant", Value: ic.ApprovalRate},
			{Label: "industry", Value: ic.Baseline.ApprovalRate},
		}}},
	}}
	return sec
}

func trendSection(title string, t *domain.YearlyTrend) report.Section {
	sec := report.Section{Title: title}
	if len(t.Yearly) == 0 {
		sec.Paragraphs = []string{"No classified filings in the window."}
		return sec
	}

	tbl := report.Table{Columns: append([]string{"year"}, t.Columns...)}
	series := make([]report.Series, len(t.Columns))
	for i, col := range t.Columns {
		series[i].Name = col
	}
	for _, row := range t.Yearly {
		year := strconv.Itoa(row.Year)
		cells := []string{year}
		for i, col := range t.Columns {
			n := row.Counts[col]
			cells = append(cells, strconv.FormatInt(n, 10))
			series[i].Points = append(series[i].Points, report.Point{Label: year, Value: float64(n)})
		}
		tbl.Rows = append(tbl.Rows, cells)
	}
	sec.Tables = []report.Table{tbl}
	sec.Charts = []report.Chart{{Type: report.ChartStackedBar, Title: "Filings per year", XAxis: "year", YAxis: "patents", Series: series}}

	legend := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		if d := t.Descriptions[col]; d != "" {
			legend = append(legend, col+": "+d)
		}
	}
	sec.Paragraphs = []string{describeTrend(t.Derivations)}
	if len(legend) > 0 {
		sec.Paragraphs = append(sec.Paragraphs, strings.Join(legend, "; ")+".")
	}
	return sec
}

func overviewSection(s *patent.Stats) report.Section {
	sec := report.Section{Title: "Overview"}
	sec.KeyValues = []report.KeyValue{
		{Key: "Patents", Value: strconv.FormatInt(s.TotalPatents, 10)},
		{Key: "Applicants", Value: strconv.FormatInt(s.TotalApplicants, 10)},
		{Key: "Inventors", Value: strconv.FormatInt(s.TotalInventors, 10)},
	}
	if s.TotalFamilies != nil {
		sec.KeyValues = append(sec.KeyValues, report.KeyValue{Key: "Patent families", Value: strconv.FormatInt(*s.TotalFamilies, 10)})
	}
	if n := len(s.PatentsPerYear); n > 0 {
		sec.KeyValues = append(sec.KeyValues, report.KeyValue{
			Key:   "Application years",
			Value: fmt.Sprintf("%d-%d", s.PatentsPerYear[0].Year, s.PatentsPerYear[n-1].Year),
		})
		sec.Charts = []report.Chart{{
			Type:   report.ChartBar,
			Title:  "Applications per year",
			XAxis:  "year",
			YAxis:  "patents",
			Series: []report.Series{yearSeries("patents", s.PatentsPerYear)},
		}}
	}
	return sec
}

func competitionSection(m *domain.OverlapMatrix) report.Section {
	sec := report.Section{Title: "Leading Applicants"}
	if len(m.Names) == 0 {
		sec.Paragraphs = []string{"No applicants."}
		return sec
	}

	profiles := report.Table{Title: "Applicants", Columns: []string{"rank", "applicant", "patents", "top subclasses"}}
	for i, p := range m.TopApplicants {
		codes := make([]string, 0, len(p.TopIPC))
		for _, c := range p.TopIPC {
			codes = append(codes, c.Code)
		}
		profiles.Rows = append(profiles.Rows, []string{strconv.Itoa(i + 1), p.Name, strconv.FormatInt(p.PatentCount, 10), strings.Join(codes, ", ")})
	}

	overlap := report.Table{Title: "Technology overlap (%)", Columns: append([]string{"applicant"}, m.Names...)}
	for i, row := range m.Matrix {
		cells := []string{m.Names[i]}
		for _, v := range row {
			cells = append(cells, strconv.Itoa(v))
		}
		overlap.Rows = append(overlap.Rows, cells)
	}
	sec.Tables = []report.Table{profiles, overlap}
	sec.Paragraphs = []string{"Overlap divides the shared IPC subclasses by the smaller of the two subclass sets."}
	return sec
}

func landscapeSection(l *domain.LandscapeTree) report.Section {
	sec := report.Section{Title: "IPC Landscape"}
	if len(l.Landscape) == 0 {
		sec.Paragraphs = []string{"No classifications."}
		return sec
	}

	pie := report.Series{Name: "patents"}
	for _, s := range l.Sections {
		pie.Points = append(pie.Points, report.Point{Label: s.Category, Value: float64(s.Count)})
	}
	sec.Charts = []report.Chart{{Type: report.ChartPie, Title: "Patents by IPC section", Series: []report.Series{pie}}}

	tbl := report.Table{Title: "Largest categories", Columns: []string{"category", "description", "patents"}}
	for i, c := range l.Landscape {
		if i == landscapeTableRows {
			break
		}
		tbl.Rows = append(tbl.Rows, []string{c.Category, c.Description, strconv.FormatInt(c.Count, 10)})
	}
	sec.Tables = []report.Table{tbl}
	return sec
}

// ─────────────────────────────────────────────────────────────────────────────
// Formatting
// ─────────────────────────────────────────────────────────────────────────────

func describeTrend(d domain.Derivations) string {
	if d.Direction == domain.DirectionInsufficientData {
		return "Too few filing years to establish a trend."
	}
	text := fmt.Sprintf("Filings are %s", strings.ReplaceAll(string(d.Direction), "_", " "))
	if d.ChangePercent != nil && d.FirstYear != nil && d.LastYear != nil {
		text += fmt.Sprintf(" (%s%% from %d to %d)", signed(*d.ChangePercent), *d.FirstYear, *d.LastYear)
	}
	if d.PeakYear != nil {
		text += fmt.Sprintf("; the peak was %d with %d patents", *d.PeakYear, d.PeakCount)
	}
	return text + "."
}

func yearSeries(name string, counts []patent.YearCount) report.Series {
	s := report.Series{Name: name}
	for _, yc := range counts {
		s.Points = append(s.Points, report.Point{Label: strconv.Itoa(yc.Year), Value: float64(yc.Count)})
	}
	return s
}

func percent(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" }

func days(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + " days" }

func signed(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if v > 0 {
		return "+" + s
	}
	return s
}

func intOrNA(v *int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.Itoa(*v)
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
