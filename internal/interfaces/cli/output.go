package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/internal/application/query"
	"github.com/turtacn/KeyIP-Analytics/internal/application/reporting"
	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/render"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/mcp"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// tabular is one titled table of a view.
type tabular struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// field is one "key: value" line of a view.
type field struct {
	Key   string
	Value string
}

// view is the human-readable form of a tool response.
type view struct {
	Title  string
	Fields []field
	Tables []tabular
}

func (v *view) add(key, value string) {
	v.Fields = append(v.Fields, field{Key: key, Value: value})
}

// PrintResult outputs data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputText
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	out := cmd.OutOrStdout()

	if format == OutputJSON {
		return printJSON(out, data)
	}
	switch v := data.(type) {
	case *mcp.RenderedReport:
		_, err := io.WriteString(out, ensureNewline(v.Content))
		return err
	case *report.Report:
		_, err := io.WriteString(out, render.NewMarkdown().String(v))
		return err
	}

	vw, ok := describe(data)
	if !ok {
		return printJSON(out, data)
	}
	if format == OutputTable {
		printTables(out, vw)
	} else {
		printText(out, vw)
	}
	return nil
}

// printJSON outputs data as indented JSON.
func printJSON(out io.Writer, data interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printHeader(out io.Writer, vw *view) {
	if vw.Title != "" {
		fmt.Fprintln(out, color.New(color.Bold).Sprint(vw.Title))
	}
	width := 0
	for _, f := range vw.Fields {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}
	for _, f := range vw.Fields {
		fmt.Fprintf(out, "%s  %s\n", padRight(f.Key+":", width+1), f.Value)
	}
}

// printText writes fields and plain aligned tables.
func printText(out io.Writer, vw *view) {
	printHeader(out, vw)
	for _, t := range vw.Tables {
		fmt.Fprintln(out)
		if t.Title != "" {
			fmt.Fprintln(out, color.New(color.Underline).Sprint(t.Title))
		}
		fmt.Fprint(out, FormatTable(t.Headers, t.Rows))
	}
}

// printTables writes fields and bordered tables.
func printTables(out io.Writer, vw *view) {
	printHeader(out, vw)
	for _, t := range vw.Tables {
		fmt.Fprintln(out)
		if t.Title != "" {
			fmt.Fprintf(out, "=== %s ===\n", t.Title)
		}
		table := tablewriter.NewWriter(out)
		table.Header(t.Headers)
		for _, row := range t.Rows {
			table.Append(row)
		}
		table.Render()
	}
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	kind := errors.KindOf(err)
	msg := mcp.ErrorMessage(err)
	if kind == "" || kind == "Unknown" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), msg)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error (%s):", kind), msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	seps := make([]string, len(headers))
	for i, w := range colWidths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

// describe converts a tool response into a view. It reports false for
// responses without a human-readable form.
func describe(data interface{}) (*view, bool) {
	switch v := data.(type) {
	case *domain.YearlyTrend:
		return trendView(v), true
	case *domain.ApplicantRanking:
		return rankingView(v), true
	case *domain.OverlapMatrix:
		return competitionView(v), true
	case *domain.CompetitorComparison:
		return comparisonView(v), true
	case *domain.LandscapeTree:
		return landscapeView(v), true
	case *domain.ApplicantSummary:
		return summaryView(v), true
	case *domain.AssessmentBreakdown:
		vw := &view{Title: "Assessment: " + v.Applicant}
		assessmentFields(vw, v)
		return vw, true
	case *domain.TechnicalFields:
		return technicalView(v), true
	case *patent.Stats:
		return statsView(v), true
	case *mcp.PatentList:
		return patentListView(v), true
	case *mcp.SQLResult:
		vw := &view{Tables: []tabular{rowsTable(v.Columns, v.Results)}}
		vw.add("Rows", strconv.Itoa(v.RecordCount))
		return vw, true
	case *query.NLQueryResponse:
		vw := &view{Title: v.Question, Tables: []tabular{rowsTable(v.Columns, v.Results)}}
		vw.add("SQL", v.SQL)
		if v.Explanation != "" {
			vw.add("Explanation", v.Explanation)
		}
		vw.add("Rows", strconv.Itoa(v.RecordCount))
		if v.Truncated {
			vw.add("Truncated", "yes")
		}
		return vw, true
	case *mcp.StatusDocument:
		return statusView(v), true
	case *reporting.Artifact:
		vw := &view{Title: "Report stored"}
		vw.add("Report", v.ReportID)
		vw.add("Kind", string(v.Kind))
		vw.add("Format", string(v.Format))
		vw.add("Location", v.Location)
		if v.URL != "" {
			vw.add("URL", v.URL)
		}
		vw.add("Size", strconv.FormatInt(v.Size, 10)+" bytes")
		return vw, true
	}
	return nil, false
}

func trendView(t *domain.YearlyTrend) *view {
	vw := &view{Title: "Technology trends (" + t.Dimension + ")"}
	derivationFields(vw, t.Derivations)

	headers := append([]string{"Year"}, t.Columns...)
	headers = append(headers, "Total")
	var rows [][]string
	for _, r := range t.Yearly {
		row := []string{strconv.Itoa(r.Year)}
		for _, c := range t.Columns {
			row = append(row, strconv.FormatInt(r.Counts[c], 10))
		}
		rows = append(rows, append(row, strconv.FormatInt(r.Total(), 10)))
	}
	vw.Tables = append(vw.Tables, tabular{Title: "Patents per year", Headers: headers, Rows: rows})

	var legend [][]string
	for _, c := range t.Columns {
		legend = append(legend, []string{c, strconv.FormatInt(t.Totals[c], 10), t.Descriptions[c]})
	}
	if len(legend) > 0 {
		vw.Tables = append(vw.Tables, tabular{Title: "Columns", Headers: []string{"Code", "Patents", "Description"}, Rows: legend})
	}
	return vw
}

func rankingView(r *domain.ApplicantRanking) *view {
	vw := &view{Title: "Applicants in " + r.Classification}
	if r.Description != "" {
		vw.add("Classification", r.Description)
	}
	derivationFields(vw, r.Derivations)

	vw.Tables = append(vw.Tables, tabular{
		Title:   "Overall",
		Headers: []string{"Rank", "Applicant", "Patents"},
		Rows:    applicantRows(r.Overall),
	})
	var rows [][]string
	for _, y := range r.Years {
		names := make([]string, 0, len(y.Applicants))
		for _, a := range y.Applicants {
			names = append(names, fmt.Sprintf("%s (%d)", a.Name, a.Count))
		}
		rows = append(rows, []string{strconv.Itoa(y.Year), strconv.FormatInt(y.Total, 10), strings.Join(names, ", ")})
	}
	vw.Tables = append(vw.Tables, tabular{Title: "By year", Headers: []string{"Year", "Patents", "Top applicants"}, Rows: rows})
	return vw
}

func competitionView(m *domain.OverlapMatrix) *view {
	vw := &view{Title: "Applicant competition"}
	vw.add("Overlap", m.Convention)

	var rows [][]string
	for i, a := range m.TopApplicants {
		codes := make([]string, 0, len(a.TopIPC))
		for _, c := range a.TopIPC {
			codes = append(codes, c.Code)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), a.Name, strconv.FormatInt(a.PatentCount, 10), strings.Join(codes, ", ")})
	}
	vw.Tables = append(vw.Tables, tabular{Title: "Top applicants", Headers: []string{"Rank", "Applicant", "Patents", "Top IPC"}, Rows: rows})

	if len(m.Names) > 1 {
		headers := []string{""}
		for i := range m.Names {
			headers = append(headers, strconv.Itoa(i+1))
		}
		var matrix [][]string
		for i, name := range m.Names {
			row := []string{strconv.Itoa(i+1) + " " + truncateString(name, 24)}
			for _, v := range m.Matrix[i] {
				row = append(row, strconv.Itoa(v))
			}
			matrix = append(matrix, row)
		}
		vw.Tables = append(vw.Tables, tabular{Title: "Technology overlap (%)", Headers: headers, Rows: matrix})
	}
	return vw
}

func comparisonView(c *domain.CompetitorComparison) *view {
	vw := &view{Title: "Competitors of " + c.Applicant}
	vw.add("Seed IPC", joinOrNone(c.SeedIPC))
	vw.add("Overlap", c.Convention)

	var rows [][]string
	for i, comp := range c.Competitors {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			comp.Name,
			strconv.Itoa(comp.Score),
			strconv.FormatInt(comp.PatentCount, 10),
			strconv.Itoa(comp.Overlap),
			strings.Join(comp.SharedIPC, ", "),
		})
	}
	vw.Tables = append(vw.Tables, tabular{
		Headers: []string{"Rank", "Competitor", "Score", "Patents", "Overlap %", "Shared IPC"},
		Rows:    rows,
	})
	return vw
}

func landscapeView(l *domain.LandscapeTree) *view {
	vw := &view{Title: "Patent landscape"}
	vw.add("IPC level", strconv.Itoa(int(l.Level)))

	vw.Tables = append(vw.Tables,
		tabular{Title: "Categories", Headers: []string{"Category", "Patents", "Description"}, Rows: categoryRows(l.Landscape)},
		tabular{Title: "Sections", Headers: []string{"Section", "Patents", "Description"}, Rows: categoryRows(l.Sections)},
	)
	return vw
}

func summaryView(s *domain.ApplicantSummary) *view {
	vw := &view{Title: "Applicant: " + s.Applicant}
	vw.add("Matched names", joinOrNone(s.MatchedNames))
	vw.add("Patents", strconv.FormatInt(s.TotalPatents, 10))
	vw.add("First filing", intOrNA(s.FirstFilingYear))
	vw.add("Latest filing", intOrNA(s.LatestFilingYear))
	derivationFields(vw, s.Trend)
	if s.Assessment != nil {
		assessmentFields(vw, s.Assessment)
	}

	var history [][]string
	for _, y := range s.ApplicationHistory {
		history = append(history, []string{strconv.Itoa(y.Year), strconv.FormatInt(y.Count, 10)})
	}
	vw.Tables = append(vw.Tables, tabular{Title: "Filing history", Headers: []string{"Year", "Patents"}, Rows: history})

	var ipcRows [][]string
	for _, c := range s.TopIPC {
		ipcRows = append(ipcRows, []string{c.Code, strconv.FormatInt(c.Count, 10), percent(c.Percentage), c.Description})
	}
	vw.Tables = append(vw.Tables, tabular{Title: "Top IPC", Headers: []string{"Code", "Patents", "Share", "Description"}, Rows: ipcRows})
	return vw
}

func technicalView(f *domain.TechnicalFields) *view {
	vw := &view{Title: "Technical fields: " + f.Applicant}
	vw.add("Classified patents", strconv.FormatInt(f.Total, 10))
	if len(f.Unmapped) > 0 {
		vw.add("Unmapped", strings.Join(f.Unmapped, ", "))
	}

	var dist [][]string
	for _, c := range f.Distribution {
		dist = append(dist, []string{c.Code, strconv.FormatInt(c.Count, 10), percent(c.Percentage), c.Description})
	}
	var domains [][]string
	for _, d := range f.Domains {
		domains = append(domains, []string{d.Domain, strconv.FormatInt(d.Count, 10), percent(d.Percentage), strings.Join(d.Codes, ", ")})
	}
	vw.Tables = append(vw.Tables,
		tabular{Title: "Distribution", Headers: []string{"Code", "Patents", "Share", "Description"}, Rows: dist},
		tabular{Title: "Technical domains", Headers: []string{"Domain", "Patents", "Share", "Codes"}, Rows: domains},
	)
	return vw
}

func statsView(s *patent.Stats) *view {
	vw := &view{Title: "Database statistics"}
	vw.add("Patents", strconv.FormatInt(s.TotalPatents, 10))
	vw.add("Applicants", strconv.FormatInt(s.TotalApplicants, 10))
	vw.add("Inventors", strconv.FormatInt(s.TotalInventors, 10))
	if s.TotalFamilies != nil {
		vw.add("Families", strconv.FormatInt(*s.TotalFamilies, 10))
	}

	var years [][]string
	for _, y := range s.PatentsPerYear {
		years = append(years, []string{strconv.Itoa(y.Year), strconv.FormatInt(y.Count, 10)})
	}
	vw.Tables = append(vw.Tables,
		tabular{Title: "Top applicants", Headers: []string{"Rank", "Applicant", "Patents"}, Rows: applicantRows(s.TopApplicants)},
		tabular{Title: "Patents per year", Headers: []string{"Year", "Patents"}, Rows: years},
	)
	return vw
}

func patentListView(l *mcp.PatentList) *view {
	vw := &view{}
	vw.add("Patents", strconv.Itoa(l.Count))
	var rows [][]string
	for _, p := range l.Patents {
		names := make([]string, 0, len(p.Applicants))
		for _, a := range p.Applicants {
			names = append(names, a.Name)
		}
		codes := make([]string, 0, len(p.Classifications))
		for _, c := range p.Classifications {
			codes = append(codes, c.Code)
		}
		rows = append(rows, []string{
			p.ApplicationNumber,
			p.ApplicationDate.String(),
			truncateString(p.Title, 50),
			p.Status,
			strings.Join(names, ", "),
			strings.Join(codes, ", "),
		})
	}
	vw.Tables = append(vw.Tables, tabular{
		Headers: []string{"Application", "Filed", "Title", "Status", "Applicants", "IPC"},
		Rows:    rows,
	})
	return vw
}

func statusView(s *mcp.StatusDocument) *view {
	status := color.GreenString(s.Status)
	if s.Status != "ok" {
		status = color.YellowString(s.Status)
	}
	vw := &view{Title: "Databases"}
	vw.add("Status", status)
	vw.add("Checked at", s.CheckedAt.Format("2006-01-02 15:04:05 MST"))

	var rows [][]string
	for _, db := range s.Databases {
		name := db.Name
		if db.Default {
			name += " *"
		}
		available := color.GreenString("yes")
		if !db.Available {
			available = color.RedString("no")
		}
		rows = append(rows, []string{
			name, db.Backend, db.Schema, available,
			strconv.FormatInt(db.Records, 10), truncateString(db.Error, 60),
		})
	}
	vw.Tables = append(vw.Tables, tabular{
		Headers: []string{"Database", "Backend", "Schema", "Available", "Records", "Error"},
		Rows:    rows,
	})
	return vw
}

func derivationFields(vw *view, d domain.Derivations) {
	vw.add("Direction", colorizeDirection(d.Direction))
	if d.ChangePercent != nil {
		vw.add("Change", signedPercent(*d.ChangePercent))
	}
	if d.PeakYear != nil {
		vw.add("Peak", fmt.Sprintf("%d (%d patents)", *d.PeakYear, d.PeakCount))
	}
	vw.add("Diversity", string(d.Diversity))
}

func assessmentFields(vw *view, a *domain.AssessmentBreakdown) {
	if !a.StatusAvailable {
		vw.add("Assessment", "no status information in this database")
		return
	}
	if a.Total != nil {
		vw.add("Assessed", strconv.FormatInt(*a.Total, 10))
	}
	if a.StatusCounts != nil {
		c := a.StatusCounts
		vw.add("Statuses", fmt.Sprintf("granted %d, rejected %d, pending %d, withdrawn %d, appealed %d, other %d",
			c.Granted, c.Rejected, c.Pending, c.Withdrawn, c.Appealed, c.Other))
	}
	if a.Ratios != nil {
		vw.add("Grant rate", percent(a.Ratios.Granted))
		vw.add("Rejection rate", percent(a.Ratios.Rejected))
		vw.add("Pending rate", percent(a.Ratios.Pending))
	}
	if a.TimeToGrant.MeanDays != nil {
		vw.add("Time to grant", fmt.Sprintf("%.1f days (n=%d)", *a.TimeToGrant.MeanDays, a.TimeToGrant.Sample))
	}
	if ic := a.IndustryComparison; ic != nil {
		vw.add("Versus industry", fmt.Sprintf("%s by %.1f points (baseline %s)", ic.Label, ic.Difference, percent(ic.Baseline.ApprovalRate)))
	}
}

func colorizeDirection(d domain.Direction) string {
	switch d {
	case domain.DirectionSignificantlyIncreasing, domain.DirectionIncreasing:
		return color.GreenString(string(d))
	case domain.DirectionSignificantlyDecreasing, domain.DirectionDecreasing:
		return color.RedString(string(d))
	}
	return string(d)
}

func applicantRows(counts []patent.ApplicantCount) [][]string {
	rows := make([][]string, 0, len(counts))
	for i, a := range counts {
		rows = append(rows, []string{strconv.Itoa(i + 1), a.Name, strconv.FormatInt(a.Count, 10)})
	}
	return rows
}

func categoryRows(cs []domain.CategoryCount) [][]string {
	rows := make([][]string, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []string{c.Category, strconv.FormatInt(c.Count, 10), c.Description})
	}
	return rows
}

func rowsTable(columns []string, data [][]interface{}) tabular {
	rows := make([][]string, 0, len(data))
	for _, r := range data {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return tabular{Headers: columns, Rows: rows}
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func percent(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" }

func signedPercent(v float64) string {
	if v > 0 {
		return "+" + percent(v)
	}
	return percent(v)
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
