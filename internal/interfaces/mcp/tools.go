package mcp

import (
	"context"

	"github.com/turtacn/KeyIP-Analytics/internal/application/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog"
	"github.com/turtacn/KeyIP-Analytics/internal/application/query"
	"github.com/turtacn/KeyIP-Analytics/internal/application/reporting"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Argument names shared by several tools.
const (
	argDatabase   = "db_type"
	argApplicant  = "applicant_name"
	argFormat     = "format"
	argStartYear  = "start_year"
	argEndYear    = "end_year"
	maxPatentRows = 100
)

// PatentList is the response of the entity lookups. An empty list is a
// successful "not found".
type PatentList struct {
	Patents []*patent.Patent `json:"patents"`
	Count   int              `json:"count"`
}

// SQLResult mirrors the /api/sql-query reply.
type SQLResult struct {
	Columns     []string        `json:"columns"`
	Results     [][]interface{} `json:"results"`
	RecordCount int             `json:"record_count"`
}

// RenderedReport is a report rendered to a text format and returned inline.
type RenderedReport struct {
	ReportID string        `json:"report_id"`
	Title    string        `json:"title"`
	Format   report.Format `json:"format"`
	Content  string        `json:"content"`
}

// RegisterTools registers every analytics tool bound to cat.
func RegisterTools(d *Dispatcher, cat *catalog.Catalog) error {
	t := &toolset{catalog: cat}
	for _, tool := range t.definitions() {
		tool.InputSchema.Properties[argDatabase] = stringProp("Database name; the default database when omitted")
		if err := d.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

type toolset struct {
	catalog *catalog.Catalog
}

func (t *toolset) backend(args Args) (*catalog.Backend, error) {
	return t.catalog.Get(args.String(argDatabase))
}

func (t *toolset) definitions() []Tool {
	applicant := func() map[string]Property {
		return map[string]Property{argApplicant: stringProp("Applicant name; matched case-insensitively by substring")}
	}
	window := func(p map[string]Property) map[string]Property {
		p[argStartYear] = optionalIntProp("First application year, inclusive", 1900, 2999)
		p[argEndYear] = optionalIntProp("Last application year, inclusive", 1900, 2999)
		return p
	}
	textFormats := []string{string(report.FormatJSON), string(report.FormatMarkdown), string(report.FormatHTML), string(report.FormatPDF)}

	return []Tool{
		// Entity lookups.
		{
			Name:        "get_patent_by_application_number",
			Description: "Fetch one patent with applicants, inventors, IPC codes, claims and descriptions by application number",
			InputSchema: ObjectSchema(map[string]Property{
				"application_number": stringProp("Application number, e.g. 2020-123456"),
			}, "application_number"),
			Handler: t.getPatent,
		},
		{
			Name:        "get_patents_by_applicant",
			Description: "List patents whose applicant matches a name",
			InputSchema: ObjectSchema(map[string]Property{
				argApplicant: stringProp("Applicant name"),
				"limit":      intProp("Maximum number of patents", 10, 1, maxPatentRows),
				"exact":      {Type: TypeBoolean, Description: "Match the whole name instead of a substring", Default: false},
			}, argApplicant),
			Handler: t.getPatentsByApplicant,
		},
		{
			Name:        "execute_sql_query",
			Description: "Run a read-only SQL statement (SELECT, EXPLAIN or PRAGMA reads) against the patent database",
			InputSchema: ObjectSchema(map[string]Property{
				"query": stringProp("SQL statement; writes are rejected"),
			}, "query"),
			Handler: t.executeSQL,
		},
		{
			Name:        "get_patent_stats",
			Description: "Totals, yearly filing histogram and top applicants of the database",
			InputSchema: ObjectSchema(map[string]Property{
				"top_applicants": intProp("Number of top applicants", 10, 1, 50),
			}),
			Handler: t.patentStats,
		},

		// Applicant analyses.
		{
			Name:        "get_applicant_summary",
			Description: "Applicant profile: totals, filing history, top IPC subclasses and assessment ratios",
			InputSchema: ObjectSchema(applicant(), argApplicant),
			Handler: t.applicantSummary,
		},
		{
			Name:        "analyze_assessment_ratios",
			Description: "Grant, rejection and pending ratios, time to grant and industry comparison of an applicant",
			InputSchema: ObjectSchema(applicant(), argApplicant),
			Handler: t.assessment,
		},
		{
			Name:        "analyze_technical_fields",
			Description: "IPC subclass distribution of an applicant with a technical-domain rollup",
			InputSchema: ObjectSchema(applicant(), argApplicant),
			Handler: t.technicalFields,
		},
		{
			Name:        "compare_with_competitors",
			Description: "Find the applicants sharing the most IPC subclasses with an applicant and compare their profiles",
			InputSchema: ObjectSchema(map[string]Property{
				argApplicant:      stringProp("Applicant name"),
				"num_competitors": intProp("Number of competitors", 3, 1, 10),
			}, argApplicant),
			Handler: t.compareWithCompetitors,
		},

		// Market analyses.
		{
			Name:        "analyze_technology_trends",
			Description: "Patents per year for the most active IPC subclasses",
			InputSchema: ObjectSchema(map[string]Property{
				"years": intProp("Number of years to analyze", 10, 1, 20),
				"top_n": intProp("Number of subclasses to include; 0 gives an empty ranking", 5, 0, 20),
			}),
			Handler: t.technologyTrends,
		},
		{
			Name:        "analyze_applicant_trends",
			Description: "Patents per year and IPC section for an applicant",
			InputSchema: ObjectSchema(window(applicant()), argApplicant),
			Handler: t.applicantTrends,
		},
		{
			Name:        "analyze_classification_trends",
			Description: "Top applicants per year within an IPC classification prefix",
			InputSchema: ObjectSchema(window(map[string]Property{
				"ipc_prefix": stringProp("IPC prefix such as G06F or H04L 29"),
			}), "ipc_prefix"),
			Handler: t.classificationTrends,
		},
		{
			Name:        "analyze_applicant_competition",
			Description: "Top applicants with their IPC focus, yearly activity and pairwise technology overlap",
			InputSchema: ObjectSchema(map[string]Property{
				"top_n": intProp("Number of applicants; 0 gives an empty ranking", 10, 0, 20),
			}),
			Handler: t.applicantCompetition,
		},
		{
			Name:        "analyze_patent_landscape",
			Description: "Patent counts by IPC hierarchy level, clustered by section",
			InputSchema: ObjectSchema(map[string]Property{
				"ipc_level": intProp("1=section, 2=class, 3=subclass", 3, 1, 3),
			}),
			Handler: t.patentLandscape,
		},

		// Reports.
		{
			Name:        "generate_visual_report",
			Description: "Applicant report with charts; returned inline, or stored when the format is pdf",
			InputSchema: ObjectSchema(map[string]Property{
				argApplicant: stringProp("Applicant name"),
				argFormat:    enumProp("Output format", string(report.FormatJSON), textFormats...),
			}, argApplicant),
			Handler: t.visualReport,
		},
		{
			Name:        "generate_pdf_report",
			Description: "Render the applicant report to PDF and store it as an artifact",
			InputSchema: ObjectSchema(applicant(), argApplicant),
			Handler: t.pdfReport,
		},
		{
			Name:        "generate_analysis_report",
			Description: "Market report combining statistics, technology trends, competition and landscape",
			InputSchema: ObjectSchema(map[string]Property{
				argFormat: enumProp("Output format", string(report.FormatJSON), textFormats...),
				"years":   intProp("Number of trend years", reporting.DefaultAnalysisReportYears, 1, 20),
				"top_n":   intProp("Number of subclasses and applicants", reporting.DefaultReportTopN, 1, 20),
			}),
			Handler: t.analysisReport,
		},

		// Natural language.
		{
			Name:        "natural_language_query",
			Description: "Translate a question into read-only SQL and run it",
			InputSchema: ObjectSchema(map[string]Property{
				"question":    stringProp("Question about the patent data"),
				"max_results": intProp("Maximum number of rows", query.DefaultMaxResults, 1, query.MaxResultsLimit),
			}, "question"),
			Handler: t.naturalLanguageQuery,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Entity lookups
// ─────────────────────────────────────────────────────────────────────────────

func (t *toolset) getPatent(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	p, err := b.Patents.GetByApplicationNumber(ctx, args.String("application_number"))
	if err != nil {
		return nil, err
	}
	out := &PatentList{Patents: []*patent.Patent{}}
	if p != nil {
		out.Patents = append(out.Patents, p)
	}
	out.Count = len(out.Patents)
	return out, nil
}

func (t *toolset) getPatentsByApplicant(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	patents, err := b.Patents.FindByApplicant(ctx, args.String(argApplicant), !args.Bool("exact"), args.Int("limit"))
	if err != nil {
		return nil, err
	}
	if patents == nil {
		patents = []*patent.Patent{}
	}
	return &PatentList{Patents: patents, Count: len(patents)}, nil
}

func (t *toolset) executeSQL(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	rows, err := b.Adapter.Passthrough(ctx, args.String("query"))
	if err != nil {
		return nil, err
	}
	return &SQLResult{Columns: rows.Columns, Results: rows.Data, RecordCount: rows.Len()}, nil
}

func (t *toolset) patentStats(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.Stats(ctx, args.Int("top_applicants"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Analyses
// ─────────────────────────────────────────────────────────────────────────────

func (t *toolset) applicantSummary(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.ApplicantSummary(ctx, args.String(argApplicant))
}

func (t *toolset) assessment(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.Assessment(ctx, args.String(argApplicant))
}

func (t *toolset) technicalFields(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.TechnicalFields(ctx, args.String(argApplicant))
}

func (t *toolset) compareWithCompetitors(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.CompareWithCompetitors(ctx, args.String(argApplicant), args.Int("num_competitors"))
}

func (t *toolset) technologyTrends(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.TechnologyTrends(ctx, args.Int("years"), args.Int("top_n"))
}

func (t *toolset) applicantTrends(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.ApplicantTrends(ctx, args.String(argApplicant), yearWindow(args))
}

func (t *toolset) classificationTrends(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.ClassificationTrends(ctx, args.String("ipc_prefix"), yearWindow(args))
}

func (t *toolset) applicantCompetition(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.ApplicantCompetition(ctx, args.Int("top_n"))
}

func (t *toolset) patentLandscape(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	return b.Analytics.PatentLandscape(ctx, ipc.Level(args.Int("ipc_level")))
}

func yearWindow(args Args) analytics.YearWindow {
	return analytics.YearWindow{Start: args.Int(argStartYear), End: args.Int(argEndYear)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Reports
// ─────────────────────────────────────────────────────────────────────────────

func (t *toolset) visualReport(ctx context.Context, args Args) (interface{}, error) {
	req := reporting.ComposeRequest{Kind: report.KindVisual, Applicant: args.String(argApplicant)}
	return t.report(ctx, args, req)
}

func (t *toolset) pdfReport(ctx context.Context, args Args) (interface{}, error) {
	args[argFormat] = string(report.FormatPDF)
	return t.report(ctx, args, reporting.ComposeRequest{Kind: report.KindVisual, Applicant: args.String(argApplicant)})
}

func (t *toolset) analysisReport(ctx context.Context, args Args) (interface{}, error) {
	req := reporting.ComposeRequest{Kind: report.KindAnalysis, Years: args.Int("years"), TopN: args.Int("top_n")}
	return t.report(ctx, args, req)
}

// report returns the model for json, the rendered text for markdown and
// html, and a stored artifact for pdf.
func (t *toolset) report(ctx context.Context, args Args, req reporting.ComposeRequest) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	if b.Reports == nil {
		return nil, errors.Unavailable("reporting is not configured")
	}
	format, err := report.ParseFormat(args.String(argFormat))
	if err != nil {
		return nil, err
	}

	switch format {
	case report.FormatJSON:
		return b.Reports.Compose(ctx, req)
	case report.FormatPDF:
		return b.Reports.Generate(ctx, reporting.GenerateRequest{ComposeRequest: req, Format: format})
	}

	r, err := b.Reports.Compose(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := b.Reports.Render(ctx, r, format)
	if err != nil {
		return nil, err
	}
	return &RenderedReport{ReportID: r.ID, Title: r.Title, Format: format, Content: string(data)}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Natural language
// ─────────────────────────────────────────────────────────────────────────────

func (t *toolset) naturalLanguageQuery(ctx context.Context, args Args) (interface{}, error) {
	b, err := t.backend(args)
	if err != nil {
		return nil, err
	}
	if b.NLQuery == nil {
		return nil, errors.Unavailable("natural language query is not configured")
	}
	return b.NLQuery.Query(ctx, &query.NLQueryRequest{
		Question:   args.String("question"),
		MaxResults: args.Int("max_results"),
	})
}
