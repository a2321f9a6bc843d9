// Package render turns report models into Markdown, HTML, PDF and JSON
// documents.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Markdown renders GitHub-flavoured Markdown. Charts become tables headed
// by their type and title.
type Markdown struct{}

// NewMarkdown returns the Markdown renderer.
func NewMarkdown() *Markdown { return &Markdown{} }

func (*Markdown) Format() report.Format { return report.FormatMarkdown }

func (m *Markdown) Render(ctx context.Context, r *report.Report) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}
	return []byte(m.String(r)), nil
}

// String renders r.
func (*Markdown) String(r *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", inline(r.Title))

	meta := "Generated " + r.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")
	if r.Database != "" {
		meta += ", database " + inline(r.Database)
	}
	fmt.Fprintf(&b, "_%s_\n", meta)

	for i, s := range r.Sections {
		fmt.Fprintf(&b, "\n## %d. %s\n", i+1, inline(s.Title))
		for _, p := range s.Paragraphs {
			fmt.Fprintf(&b, "\n%s\n", inline(p))
		}
		if len(s.KeyValues) > 0 {
			rows := make([][]string, 0, len(s.KeyValues))
			for _, kv := range s.KeyValues {
				rows = append(rows, []string{"**" + inline(kv.Key) + "**", kv.Value})
			}
			writeTable(&b, report.Table{Columns: []string{"Item", "Value"}, Rows: rows})
		}
		for _, t := range s.Tables {
			if t.Title != "" {
				fmt.Fprintf(&b, "\n### %s\n", inline(t.Title))
			}
			writeTable(&b, t)
		}
		for _, c := range s.Charts {
			heading := fmt.Sprintf("Chart (%s): %s", c.Type, c.Title)
			if c.YAxis != "" {
				heading += ", " + c.YAxis
			}
			fmt.Fprintf(&b, "\n### %s\n", inline(heading))
			t := c.AsTable()
			t.Title = ""
			writeTable(&b, t)
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, t report.Table) {
	if len(t.Columns) == 0 {
		return
	}
	b.WriteString("\n|")
	for _, c := range t.Columns {
		b.WriteString(" " + cell(c) + " |")
	}
	b.WriteString("\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString("|")
		for _, v := range row {
			b.WriteString(" " + cell(v) + " |")
		}
		b.WriteString("\n")
	}
}

func cell(s string) string {
	return strings.ReplaceAll(inline(s), "|", `\|`)
}

func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// JSON renders the report model itself.
type JSON struct{}

// NewJSON returns the JSON renderer.
func NewJSON() *JSON { return &JSON{} }

func (*JSON) Format() report.Format { return report.FormatJSON }

func (*JSON) Render(ctx context.Context, r *report.Report) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "encode report")
	}
	return b, nil
}
