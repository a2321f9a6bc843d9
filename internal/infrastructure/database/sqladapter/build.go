package sqladapter

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Builder is the statement builder every engine and store query starts
// from. SQLite and the gateway both take '?' placeholders.
var Builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// LikeEscape is the ESCAPE clause matching the patterns built below.
const LikeEscape = `ESCAPE '\'`

// Run renders b and executes it through Query, so every generated
// statement passes the same guard, deadline and classification as a
// hand-written one.
func (a *Adapter) Run(ctx context.Context, b sq.Sqlizer) (*Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build query")
	}
	return a.Query(ctx, query, args...)
}

// FoldFunc is the SQL function the direct backend registers to fold text
// the same way as Fold.
const FoldFunc = "keyipa_fold"

// Fold returns s NFKC-normalized and case-folded, so "ＮＥＣ" and "nec" or
// "ÖSTERREICH" and "österreich" compare equal.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// ContainsPattern returns a LIKE pattern matching s anywhere, with LIKE
// metacharacters in s escaped.
func ContainsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

// PrefixPattern returns a LIKE pattern matching values starting with s.
func PrefixPattern(s string) string {
	return escapeLike(s) + "%"
}

// Contains matches values of col containing s, ignoring case. The direct
// backend folds both sides with FoldFunc. A gateway only has SQLite's
// built-in LOWER, which folds ASCII, so it lowers both sides with that.
func (a *Adapter) Contains(col, s string) sq.Sqlizer {
	return a.like(col, s, "LIKE")
}

// NotContains is the negation of Contains. NULL values match neither.
func (a *Adapter) NotContains(col, s string) sq.Sqlizer {
	return a.like(col, s, "NOT LIKE")
}

// Equal matches values of col equal to s, ignoring case.
func (a *Adapter) Equal(col, s string) sq.Sqlizer {
	if a.foldsUnicode() {
		return sq.Expr(FoldFunc+"("+col+") = ?", Fold(s))
	}
	return sq.Expr("LOWER("+col+") = LOWER(?)", s)
}

func (a *Adapter) like(col, s, op string) sq.Sqlizer {
	if a.foldsUnicode() {
		return sq.Expr(FoldFunc+"("+col+") "+op+" ? "+LikeEscape, ContainsPattern(Fold(s)))
	}
	return sq.Expr("LOWER("+col+") "+op+" LOWER(?) "+LikeEscape, ContainsPattern(s))
}

func (a *Adapter) foldsUnicode() bool {
	return a.backend.Kind() == KindDirect
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
