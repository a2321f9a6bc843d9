package sqladapter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Rows is a loosely typed result set: a column list and positional cells.
// Cells hold nil, int64, float64, string, bool or json.Number values.
type Rows struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// Index maps column names to positions.
type Index map[string]int

// Resolve looks up every name once and fails with BadQuery when one is
// missing, so schema drift surfaces here rather than deep in an aggregation.
func (r *Rows) Resolve(names ...string) (Index, error) {
	pos := make(map[string]int, len(r.Columns))
	for i, c := range r.Columns {
		pos[strings.ToLower(c)] = i
	}
	idx := make(Index, len(names))
	var missing []string
	for _, n := range names {
		i, ok := pos[strings.ToLower(n)]
		if !ok {
			missing = append(missing, n)
			continue
		}
		idx[n] = i
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeBadQuery, "result set is missing expected columns").
			WithDetail(strings.Join(missing, ", "))
	}
	return idx, nil
}

// Text returns the cell as a string; NULL yields "".
func (r *Rows) Text(row, col int) string {
	return toText(r.Data[row][col])
}

// Int returns the cell as an int64; NULL and non-numeric text yield 0.
func (r *Rows) Int(row, col int) int64 {
	return toInt(r.Data[row][col])
}

// Float returns the cell as a float64; NULL and non-numeric text yield 0.
func (r *Rows) Float(row, col int) float64 {
	return toFloat(r.Data[row][col])
}

// IsNull reports whether the cell is SQL NULL.
func (r *Rows) IsNull(row, col int) bool {
	return r.Data[row][col] == nil
}

func toText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func toInt(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return int64(f)
	case string, []byte:
		s := strings.TrimSpace(toText(x))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(s, 64)
		return int64(f)
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string, []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(toText(x)), 64)
		return f
	}
	return 0
}

// normalizeCell converts driver values into the cell types Rows documents.
func normalizeCell(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
