package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func TestChart_AsTable(t *testing.T) {
	c := Chart{
		Type:  ChartLine,
		Title: "Filings",
		XAxis: "year",
		Series: []Series{
			{Name: "G06F", Points: []Point{{"2020", 1}, {"2021", 2}}},
			{Name: "H04L", Points: []Point{{"2020", 1}, {"2022", 0.5}}},
		},
	}
	tbl := c.AsTable()
	assert.Equal(t, []string{"year", "G06F", "H04L"}, tbl.Columns)
	assert.Equal(t, [][]string{
		{"2020", "1", "1"},
		{"2021", "2", "0"},
		{"2022", "0", "0.5"},
	}, tbl.Rows)
}

func TestChart_AsTableDefaultsLabelColumn(t *testing.T) {
	tbl := Chart{Type: ChartPie, Series: []Series{{Name: "patents", Points: []Point{{"granted", 3}}}}}.AsTable()
	assert.Equal(t, []string{"label", "patents"}, tbl.Columns)
}

func TestReport_Validate(t *testing.T) {
	ok := &Report{
		Title: "r",
		Sections: []Section{{
			Title:  "s",
			Tables: []Table{{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}},
			Charts: []Chart{{Type: ChartStackedBar, Title: "c"}},
		}},
	}
	require.NoError(t, ok.Validate())

	cases := []struct {
		name string
		r    *Report
		code errors.ErrorCode
	}{
		{"no title", &Report{}, errors.ErrCodeInvalidArguments},
		{"ragged row", &Report{Title: "r", Sections: []Section{{Tables: []Table{{Columns: []string{"a"}, Rows: [][]string{{"1", "2"}}}}}}}, errors.ErrCodeInternal},
		{"bad chart", &Report{Title: "r", Sections: []Section{{Charts: []Chart{{Type: "radar"}}}}}, errors.ErrCodeInternal},
		{"multi-series pie", &Report{Title: "r", Sections: []Section{{Charts: []Chart{{Type: ChartPie, Series: []Series{{Name: "a"}, {Name: "b"}}}}}}}, errors.ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.IsCode(tc.r.Validate(), tc.code))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "12", FormatNumber(12))
	assert.Equal(t, "66.7", FormatNumber(66.66))
	assert.Equal(t, "-3", FormatNumber(-3))
}

func TestReport_JSONShape(t *testing.T) {
	r := Report{
		ID:          "r1",
		Kind:        KindVisual,
		Title:       "t",
		GeneratedAt: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Sections: []Section{{
			Title:  "s",
			Charts: []Chart{{Type: ChartBar, Title: "c", Series: []Series{{Name: "n", Points: []Point{{"x", 1}}}}}},
		}},
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"report_id":"r1","kind":"visual","title":"t","generated_at":"2021-06-01T00:00:00Z",
		"sections":[{"title":"s","charts":[{"type":"bar","title":"c","series":[{"name":"n","data":[{"label":"x","value":1}]}]}]}]
	}`, string(b))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, "Markdown": FormatMarkdown, " pdf ": FormatPDF, "htm": FormatHTML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, ".md", FormatMarkdown.Extension())
}
