package sqladapter

import (
	"fmt"
	"sort"
	"strings"
)

// Relation names a canonical view that engines read. Every relation exposes
// a patent_key column plus the canonical English columns listed below,
// whatever the physical schema looks like.
type Relation string

const (
	// patent_key, application_number, application_date, publication_number,
	// publication_date, registration_number, registration_date, title,
	// abstract, family_id
	RelPatents Relation = "patents"
	// patent_key, name, address
	RelApplicants Relation = "applicants"
	// patent_key, name, address
	RelInventors Relation = "inventors"
	// patent_key, code, description
	RelClassifications Relation = "ipc_classifications"
	// patent_key, claim_number, text
	RelClaims Relation = "claims"
	// patent_key, seq, section_title, text
	RelDescriptions Relation = "descriptions"
	// patent_key, status
	RelStatus Relation = "assessment_status"
)

// YearExpr is the 4-digit application year of the patents relation aliased
// as alias. Every date layout in the data marts starts with the year.
func YearExpr(alias string) string {
	return "substr(" + alias + ".application_date, 1, 4)"
}

// Schema is the physical column inventory of a database.
type Schema struct {
	Dialect string                     `json:"dialect"`
	Tables  map[string]map[string]bool `json:"tables"`
}

// HasTable reports whether table exists.
func (s *Schema) HasTable(table string) bool {
	return len(s.Tables[table]) > 0
}

// Has reports whether table.column exists.
func (s *Schema) Has(table, column string) bool {
	return s.Tables[table][column]
}

// TableNames returns the existing tables, sorted.
func (s *Schema) TableNames() []string {
	out := make([]string, 0, len(s.Tables))
	for t, cols := range s.Tables {
		if len(cols) > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Dialect translates between a physical schema and the canonical relations.
// Supporting a new physical layout means adding a Dialect; engines only see
// canonical names.
type Dialect interface {
	Name() string
	// Tables lists the physical tables whose columns must be described.
	Tables() []string
	// RecordTable is the table whose row count is reported as the number of
	// patent records.
	RecordTable() string
	// Relation returns a SELECT producing rel, or false when the physical
	// schema cannot provide it.
	Relation(rel Relation, s *Schema) (string, bool)
	// TranslateColumn maps a physical result column to its canonical name.
	TranslateColumn(name string) string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "", CanonicalDialect.Name():
		return CanonicalDialect, nil
	case InpitDialect.Name():
		return InpitDialect, nil
	}
	return nil, fmt.Errorf("sqladapter: unknown schema dialect %q", name)
}

// ─────────────────────────────────────────────────────────────────────────────
// Relation specs
// ─────────────────────────────────────────────────────────────────────────────

// column maps a canonical alias to candidate physical columns; the first one
// present wins, otherwise NULL is selected (or the relation is unavailable
// when required).
type column struct {
	alias      string
	candidates []string
	required   bool
}

type relationSpec struct {
	table string
	key   []string
	cols  []column
	// split names the alias whose physical cell holds ';'-separated values.
	split string
}

type tableDialect struct {
	name        string
	recordTable string
	specs       map[Relation]relationSpec
	translate   map[string]string
}

func (d *tableDialect) Name() string        { return d.name }
func (d *tableDialect) RecordTable() string { return d.recordTable }

func (d *tableDialect) Tables() []string {
	seen := map[string]bool{}
	var out []string
	for _, spec := range d.specs {
		if !seen[spec.table] {
			seen[spec.table] = true
			out = append(out, spec.table)
		}
	}
	sort.Strings(out)
	return out
}

func (d *tableDialect) TranslateColumn(name string) string {
	if c, ok := d.translate[name]; ok {
		return c
	}
	return name
}

func (d *tableDialect) Relation(rel Relation, s *Schema) (string, bool) {
	spec, ok := d.specs[rel]
	if !ok || s == nil || !s.HasTable(spec.table) {
		return "", false
	}
	key := pick(s, spec.table, spec.key)
	if key == "" {
		return "", false
	}

	exprs := make([]string, 0, len(spec.cols))
	splitCol := ""
	for _, c := range spec.cols {
		phys := pick(s, spec.table, c.candidates)
		if phys == "" {
			if c.required {
				return "", false
			}
			exprs = append(exprs, "NULL AS "+c.alias)
			continue
		}
		if c.alias == spec.split {
			splitCol = phys
			exprs = append(exprs, "TRIM(value) AS "+c.alias)
			continue
		}
		exprs = append(exprs, quoteIdent(phys)+" AS "+c.alias)
	}

	if spec.split == "" {
		return fmt.Sprintf("SELECT %s AS patent_key, %s FROM %s",
			quoteIdent(key), strings.Join(exprs, ", "), quoteIdent(spec.table)), true
	}
	return fmt.Sprintf("SELECT patent_key, %s FROM (%s)",
		strings.Join(exprs, ", "), splitSQL(spec.table, key, splitCol)), true
}

// splitSQL expands a ';'-separated column into one row per non-empty value
// with a recursive CTE.
func splitSQL(table, key, col string) string {
	return fmt.Sprintf("WITH RECURSIVE split(patent_key, value, rest) AS ("+
		"SELECT %s, '', %s || ';' FROM %s "+
		"UNION ALL "+
		"SELECT patent_key, substr(rest, 1, instr(rest, ';') - 1), substr(rest, instr(rest, ';') + 1) "+
		"FROM split WHERE rest <> ''"+
		") SELECT patent_key, value FROM split WHERE TRIM(value) <> ''",
		quoteIdent(key), quoteIdent(col), quoteIdent(table))
}

func pick(s *Schema, table string, candidates []string) string {
	for _, c := range candidates {
		if s.Has(table, c) {
			return c
		}
	}
	return ""
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Canonical dialect: normalized English tables
// ─────────────────────────────────────────────────────────────────────────────

// CanonicalDialect reads the normalized patents / applicants / inventors /
// ipc_classifications / claims / descriptions tables.
var CanonicalDialect Dialect = &tableDialect{
	name:        "canonical",
	recordTable: "patents",
	specs: map[Relation]relationSpec{
		RelPatents: {
			table: "patents",
			key:   []string{"id"},
			cols: []column{
				{alias: "application_number", candidates: []string{"application_number"}, required: true},
				{alias: "application_date", candidates: []string{"application_date", "filing_date"}},
				{alias: "publication_number", candidates: []string{"publication_number"}},
				{alias: "publication_date", candidates: []string{"publication_date"}},
				{alias: "registration_number", candidates: []string{"registration_number", "patent_number"}},
				{alias: "registration_date", candidates: []string{"registration_date", "grant_date"}},
				{alias: "title", candidates: []string{"title"}},
				{alias: "abstract", candidates: []string{"abstract"}},
				{alias: "family_id", candidates: []string{"family_id"}},
			},
		},
		RelApplicants: {
			table: "applicants",
			key:   []string{"patent_id"},
			cols: []column{
				{alias: "name", candidates: []string{"name"}, required: true},
				{alias: "address", candidates: []string{"address"}},
			},
		},
		RelInventors: {
			table: "inventors",
			key:   []string{"patent_id"},
			cols: []column{
				{alias: "name", candidates: []string{"name"}, required: true},
				{alias: "address", candidates: []string{"address"}},
			},
		},
		RelClassifications: {
			table: "ipc_classifications",
			key:   []string{"patent_id"},
			cols: []column{
				{alias: "code", candidates: []string{"code", "ipc_code"}, required: true},
				{alias: "description", candidates: []string{"description"}},
			},
		},
		RelClaims: {
			table: "claims",
			key:   []string{"patent_id"},
			cols: []column{
				{alias: "claim_number", candidates: []string{"claim_number"}, required: true},
				{alias: "text", candidates: []string{"text"}},
			},
		},
		RelDescriptions: {
			table: "descriptions",
			key:   []string{"patent_id"},
			cols: []column{
				{alias: "seq", candidates: []string{"id"}},
				{alias: "section_title", candidates: []string{"section_title"}},
				{alias: "text", candidates: []string{"text"}},
			},
		},
		RelStatus: {
			table: "patents",
			key:   []string{"id"},
			cols: []column{
				{alias: "status", candidates: []string{"status", "legal_status", "assessment_status"}, required: true},
			},
		},
	},
	translate: map[string]string{},
}

// ─────────────────────────────────────────────────────────────────────────────
// INPIT dialect: denormalized Japanese-column table
// ─────────────────────────────────────────────────────────────────────────────

// InpitDialect reads the denormalized inpit_data table whose columns carry
// Japanese names and whose multi-valued cells are ';'-separated.
var InpitDialect Dialect = &tableDialect{
	name:        "inpit",
	recordTable: "inpit_data",
	specs: map[Relation]relationSpec{
		RelPatents: {
			table: "inpit_data",
			key:   []string{"出願番号"},
			cols: []column{
				{alias: "application_number", candidates: []string{"出願番号"}, required: true},
				{alias: "application_date", candidates: []string{"出願日"}},
				{alias: "publication_number", candidates: []string{"公開番号"}},
				{alias: "publication_date", candidates: []string{"公開日"}},
				{alias: "registration_number", candidates: []string{"登録番号", "特許番号"}},
				{alias: "registration_date", candidates: []string{"登録日"}},
				{alias: "title", candidates: []string{"発明の名称"}},
				{alias: "abstract", candidates: []string{"要約"}},
				{alias: "family_id", candidates: []string{"ファミリーID"}},
			},
		},
		RelApplicants: {
			table: "inpit_data",
			key:   []string{"出願番号"},
			split: "name",
			cols: []column{
				{alias: "name", candidates: []string{"出願人", "出願人_権利者"}, required: true},
				{alias: "address"},
			},
		},
		RelInventors: {
			table: "inpit_data",
			key:   []string{"出願番号"},
			split: "name",
			cols: []column{
				{alias: "name", candidates: []string{"発明者"}, required: true},
				{alias: "address"},
			},
		},
		RelClassifications: {
			table: "inpit_data",
			key:   []string{"出願番号"},
			split: "code",
			cols: []column{
				{alias: "code", candidates: []string{"国際特許分類_IPC_", "国際特許分類"}, required: true},
				{alias: "description"},
			},
		},
		RelStatus: {
			table: "inpit_data",
			key:   []string{"出願番号"},
			cols: []column{
				{alias: "status", candidates: []string{"法的状態", "status"}, required: true},
			},
		},
	},
	translate: map[string]string{
		"出願番号":        "application_number",
		"出願日":         "application_date",
		"公開番号":        "publication_number",
		"公開日":         "publication_date",
		"登録番号":        "registration_number",
		"特許番号":        "registration_number",
		"登録日":         "registration_date",
		"発明の名称":       "title",
		"要約":          "abstract",
		"出願人":         "applicant",
		"発明者":         "inventor",
		"国際特許分類_IPC_": "ipc_code",
		"国際特許分類":      "ipc_code",
		"法的状態":        "status",
		"ファミリーID":     "family_id",
	},
}
