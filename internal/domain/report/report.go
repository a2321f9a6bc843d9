// Package report defines the structured report model exchanged between the
// report composer and the renderers. It carries content only: headings,
// paragraphs, tables and chart specifications. Layout, fonts and image
// encoding belong to the renderers.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Kind names the composition a report was built by.
type Kind string

const (
	// KindVisual profiles one applicant with charts.
	KindVisual Kind = "visual"
	// KindPatent is the technology trend report, optionally with one
	// applicant's assessment.
	KindPatent Kind = "patent"
	// KindAnalysis is the store-wide overview.
	KindAnalysis Kind = "analysis"
)

// Valid reports whether k is a known composition.
func (k Kind) Valid() bool {
	switch k {
	case KindVisual, KindPatent, KindAnalysis:
		return true
	}
	return false
}

// ChartType is the rendering hint of a chart spec.
type ChartType string

const (
	ChartBar        ChartType = "bar"
	ChartLine       ChartType = "line"
	ChartPie        ChartType = "pie"
	ChartStackedBar ChartType = "stacked_bar"
)

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	switch t {
	case ChartBar, ChartLine, ChartPie, ChartStackedBar:
		return true
	}
	return false
}

// Report is an ordered list of sections under a title.
type Report struct {
	ID          string    `json:"report_id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject,omitempty"`
	Database    string    `json:"database,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Section is one titled block of a report.
type Section struct {
	Title      string     `json:"title"`
	Paragraphs []string   `json:"paragraphs,omitempty"`
	KeyValues  []KeyValue `json:"key_values,omitempty"`
	Tables     []Table    `json:"tables,omitempty"`
	Charts     []Chart    `json:"charts,omitempty"`
}

// KeyValue is one row of a key-value table.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Table is a rows × columns data table. Every row has len(Columns) cells.
type Table struct {
	Title   string     `json:"title,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Chart is a chart specification. Pie charts carry a single series.
type Chart struct {
	Type   ChartType `json:"type"`
	Title  string    `json:"title"`
	XAxis  string    `json:"x_axis,omitempty"`
	YAxis  string    `json:"y_axis,omitempty"`
	Series []Series  `json:"series"`
}

// Series is one named sequence of labelled values.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"data"`
}

// Point is one labelled value of a series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Labels returns the union of the series' point labels in first-seen order.
func (c Chart) Labels() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, s := range c.Series {
		for _, p := range s.Points {
			if _, ok := seen[p.Label]; ok {
				continue
			}
			seen[p.Label] = struct{}{}
			out = append(out, p.Label)
		}
	}
	return out
}

// Value returns the value of label in the series, zero when absent.
func (s Series) Value(label string) float64 {
	for _, p := range s.Points {
		if p.Label == label {
			return p.Value
		}
	}
	return 0
}

// AsTable flattens a chart into a table with one row per label and one
// column per series. Renderers without graphics fall back to it.
func (c Chart) AsTable() Table {
	t := Table{Title: c.Title, Columns: []string{firstNonEmpty(c.XAxis, "label")}}
	for _, s := range c.Series {
		t.Columns = append(t.Columns, s.Name)
	}
	for _, label := range c.Labels() {
		row := []string{label}
		for _, s := range c.Series {
			row = append(row, FormatNumber(s.Value(label)))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Validate checks the structural invariants renderers rely on.
func (r *Report) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.InvalidArguments("report title is required")
	}
	for _, s := range r.Sections {
		for _, t := range s.Tables {
			for i, row := range t.Rows {
				if len(row) != len(t.Columns) {
					return errors.Newf(errors.ErrCodeInternal,
						"section %q table %q row %d has %d cells for %d columns", s.Title, t.Title, i, len(row), len(t.Columns))
				}
			}
		}
		for _, c := range s.Charts {
			if !c.Type.Valid() {
				return errors.Newf(errors.ErrCodeInternal, "section %q chart %q has unknown type %q", s.Title, c.Title, c.Type)
			}
			if c.Type == ChartPie && len(c.Series) > 1 {
				return errors.Newf(errors.ErrCodeInternal, "pie chart %q has %d series", c.Title, len(c.Series))
			}
		}
	}
	return nil
}

// FormatNumber renders integral values without a fraction and everything
// else with one decimal.
func FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

// Format is an output encoding of a report.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

var formatInfo = map[Format]struct{ contentType, ext string }{
	FormatJSON:     {"application/json", ".json"},
	FormatMarkdown: {"text/markdown; charset=utf-8", ".md"},
	FormatHTML:     {"text/html; charset=utf-8", ".html"},
	FormatPDF:      {"application/pdf", ".pdf"},
}

// ParseFormat accepts the format names and the common aliases md and htm.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "md":
		return FormatMarkdown, nil
	case "htm":
		return FormatHTML, nil
	case FormatJSON, FormatMarkdown, FormatHTML, FormatPDF:
		return f, nil
	}
	return "", errors.Newf(errors.ErrCodeInvalidArguments, "unknown report format %q (json, markdown, html, pdf)", s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string { return formatInfo[f].contentType }

// Extension is the file extension of the format, dot included.
func (f Format) Extension() string { return formatInfo[f].ext }
