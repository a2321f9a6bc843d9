// Package ipc parses, normalizes and labels International Patent
// Classification codes. Everything here is pure; no I/O.
//
// A code has the shape Section(A–H) + Class(2 digits) + Subclass(letter)
// [+ group/subgroup], e.g. "G06F 16/00". The hierarchy views are the section
// ("G"), the class ("G06") and the subclass ("G06F").
package ipc

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Unclassified is the reserved bucket for rows whose code cannot be parsed at
// the requested level.
const Unclassified = "Unclassified"

// Level selects a hierarchy view.
type Level int

const (
	LevelSection  Level = 1
	LevelClass    Level = 2
	LevelSubclass Level = 3
)

// Valid reports whether l is one of the three hierarchy views.
func (l Level) Valid() bool {
	return l >= LevelSection && l <= LevelSubclass
}

// Length returns the prefix length of the level: 1, 3 or 4.
func (l Level) Length() int {
	switch l {
	case LevelSection:
		return 1
	case LevelClass:
		return 3
	case LevelSubclass:
		return 4
	}
	return 0
}

// Code is a parsed IPC code. Section is always set; Class and Subclass are
// empty when the code is shorter than that level.
type Code struct {
	// Full is the normalized code, kept for equality tests.
	Full     string `json:"full"`
	Section  string `json:"section"`
	Class    string `json:"class,omitempty"`
	Subclass string `json:"subclass,omitempty"`
}

// Prefix returns the hierarchy key at level, or "" when the code is too
// short for it.
func (c Code) Prefix(level Level) string {
	switch level {
	case LevelSection:
		return c.Section
	case LevelClass:
		return c.Class
	case LevelSubclass:
		return c.Subclass
	}
	return ""
}

// Normalize folds full-width characters, trims, uppercases and collapses
// inner whitespace to single spaces. Normalize is idempotent.
func Normalize(code string) string {
	s := norm.NFKC.String(code)
	s = strings.ToUpper(s)
	return strings.Join(strings.Fields(s), " ")
}

// Compact returns the normalized code with all spaces removed, the form used
// for prefix matching against group-level prefixes such as "G06F16".
func Compact(code string) string {
	return strings.ReplaceAll(Normalize(code), " ", "")
}

// Parse returns the longest valid section/class/subclass prefix of code.
// Text after the subclass letter is ignored for the hierarchy views. A code
// without a leading section letter A–H yields an InvalidCode error.
func Parse(code string) (Code, error) {
	full := Normalize(code)
	s := strings.ReplaceAll(full, " ", "")
	if s == "" || s[0] < 'A' || s[0] > 'H' {
		return Code{}, errors.Newf(errors.ErrCodeInvalidCode, "invalid IPC code %q", code)
	}

	c := Code{Full: full, Section: s[:1]}
	if len(s) >= 3 && isDigit(s[1]) && isDigit(s[2]) {
		c.Class = s[:3]
		if len(s) >= 4 && s[3] >= 'A' && s[3] <= 'Z' {
			c.Subclass = s[:4]
		}
	}
	return c, nil
}

// Bucket returns the hierarchy key of code at level, or Unclassified when the
// code is malformed or too short for the level.
func Bucket(code string, level Level) string {
	c, err := Parse(code)
	if err != nil {
		return Unclassified
	}
	if p := c.Prefix(level); p != "" {
		return p
	}
	return Unclassified
}

// Section returns the section letter of code, or Unclassified.
func Section(code string) string {
	return Bucket(code, LevelSection)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
