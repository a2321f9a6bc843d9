package sqladapter

import (
	"strings"
	"unicode"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// readVerbs are the only leading keywords a statement may carry.
var readVerbs = map[string]bool{
	"SELECT":  true,
	"PRAGMA":  true,
	"EXPLAIN": true,
}

// CheckReadOnly rejects any statement whose leading keyword is not SELECT,
// PRAGMA or EXPLAIN, any input holding more than one statement, and PRAGMA
// assignments. Leading comments and whitespace are skipped.
func CheckReadOnly(query string) error {
	body := skipLeadingComments(query)
	if body == "" {
		return errors.InvalidArguments("query is empty")
	}

	verb := leadingKeyword(body)
	if !readVerbs[verb] {
		if verb == "" {
			verb = firstToken(body)
		}
		return errors.NotAllowed("only SELECT, PRAGMA and EXPLAIN statements are permitted").WithDetail(verb)
	}

	tail, assigns := scanStatement(body)
	if strings.TrimSpace(skipLeadingComments(tail)) != "" {
		return errors.NotAllowed("multiple statements are not permitted")
	}
	if verb == "PRAGMA" && assigns {
		return errors.NotAllowed("PRAGMA assignments are not permitted")
	}
	return nil
}

func skipLeadingComments(s string) string {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			return s
		}
	}
}

func leadingKeyword(s string) string {
	end := 0
	for end < len(s) && (s[end] >= 'a' && s[end] <= 'z' || s[end] >= 'A' && s[end] <= 'Z') {
		end++
	}
	return strings.ToUpper(s[:end])
}

func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// scanStatement walks the first statement outside quotes and comments. It
// returns whatever follows the first top-level ';' and whether a top-level
// '=' was seen before it.
func scanStatement(s string) (tail string, assigns bool) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"', '`':
			j := strings.IndexByte(s[i+1:], c)
			if j < 0 {
				return "", assigns
			}
			i += j + 1
		case '[':
			j := strings.IndexByte(s[i+1:], ']')
			if j < 0 {
				return "", assigns
			}
			i += j + 1
		case '-':
			if i+1 < len(s) && s[i+1] == '-' {
				j := strings.IndexByte(s[i:], '\n')
				if j < 0 {
					return "", assigns
				}
				i += j
			}
		case '/':
			if i+1 < len(s) && s[i+1] == '*' {
				j := strings.Index(s[i+2:], "*/")
				if j < 0 {
					return "", assigns
				}
				i += j + 3
			}
		case '=':
			assigns = true
		case ';':
			return s[i+1:], assigns
		}
	}
	return "", assigns
}
