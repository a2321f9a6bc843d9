package patent

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date used on the wire.
const DateLayout = "2006-01-02"

// inputLayouts are the date spellings found in the data marts.
var inputLayouts = []string{
	DateLayout,
	"20060102",
	"2006/01/02",
	"2006.01.02",
	"2006年01月02日",
	"2006年1月2日",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Date is an optional calendar date. The zero value is "absent" and
// encodes as JSON null.
type Date struct {
	t     time.Time
	valid bool
}

// NewDate returns a present Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), valid: true}
}

// ParseDate accepts any of the layouts seen in the data marts. Unparseable
// or blank input yields an absent Date.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day())
		}
	}
	return Date{}
}

// Valid reports whether the date is present.
func (d Date) Valid() bool { return d.valid }

// Time returns the date at midnight UTC; zero when absent.
func (d Date) Time() time.Time { return d.t }

// Year returns the calendar year, or 0 when absent.
func (d Date) Year() int {
	if !d.valid {
		return 0
	}
	return d.t.Year()
}

// String returns the ISO form, or "" when absent.
func (d Date) String() string {
	if !d.valid {
		return ""
	}
	return d.t.Format(DateLayout)
}

// DaysUntil returns the whole days from d to other. ok is false when either
// date is absent.
func (d Date) DaysUntil(other Date) (days int, ok bool) {
	if !d.valid || !other.valid {
		return 0, false
	}
	return int(other.t.Sub(d.t).Hours() / 24), true
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = ParseDate(s)
	return nil
}
