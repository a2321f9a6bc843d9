package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Section is one description block of a fixture patent.
type Section struct {
	Title string
	Text  string
}

// PatentFixture describes one patent row and its owned collections.
type PatentFixture struct {
	ApplicationNumber  string
	ApplicationDate    string
	PublicationNumber  string
	PublicationDate    string
	RegistrationNumber string
	RegistrationDate   string
	Title              string
	Abstract           string
	FamilyID           string
	Status             string
	Applicants         []string
	Inventors          []string
	IPC                []string
	Claims             []string
	Descriptions       []Section
}

type fixtureOptions struct {
	statusColumn string
	name         string
}

// FixtureOption tunes the generated database.
type FixtureOption func(*fixtureOptions)

// WithStatusColumn adds an assessment-status column under the given name
// even when no fixture carries a status.
func WithStatusColumn(column string) FixtureOption {
	return func(o *fixtureOptions) { o.statusColumn = column }
}

// WithoutStatusColumn omits the assessment-status column entirely.
func WithoutStatusColumn() FixtureOption {
	return func(o *fixtureOptions) { o.statusColumn = "" }
}

// WithFileName sets the database file name inside the temp dir.
func WithFileName(name string) FixtureOption {
	return func(o *fixtureOptions) { o.name = name }
}

func buildOptions(patents []PatentFixture, defaultStatus string, opts []FixtureOption) fixtureOptions {
	o := fixtureOptions{name: "patents.db"}
	for _, p := range patents {
		if p.Status != "" {
			o.statusColumn = defaultStatus
			break
		}
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

const canonicalDDL = `
CREATE TABLE patents (
	id INTEGER PRIMARY KEY,
	application_number TEXT NOT NULL UNIQUE,
	application_date TEXT,
	publication_number TEXT,
	publication_date TEXT,
	registration_number TEXT,
	registration_date TEXT,
	title TEXT,
	abstract TEXT,
	family_id TEXT%s
);
CREATE TABLE applicants (
	id INTEGER PRIMARY KEY,
	patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	address TEXT
);
CREATE TABLE inventors (
	id INTEGER PRIMARY KEY,
	patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	address TEXT
);
CREATE TABLE ipc_classifications (
	id INTEGER PRIMARY KEY,
	patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
	code TEXT NOT NULL,
	description TEXT,
	UNIQUE (patent_id, code)
);
CREATE TABLE claims (
	id INTEGER PRIMARY KEY,
	patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
	claim_number INTEGER NOT NULL,
	text TEXT
);
CREATE TABLE descriptions (
	id INTEGER PRIMARY KEY,
	patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
	section_title TEXT,
	text TEXT
)`

// NewCanonicalDB writes patents into a fresh SQLite file using the
// normalized English schema and returns its path. A status column named
// "status" is added when any fixture carries a status.
func NewCanonicalDB(t testing.TB, patents []PatentFixture, opts ...FixtureOption) string {
	t.Helper()
	o := buildOptions(patents, "status", opts)
	path := filepath.Join(t.TempDir(), o.name)
	db := openWritable(t, path)
	defer db.Close()

	statusDDL := ""
	if o.statusColumn != "" {
		statusDDL = fmt.Sprintf(",\n\t%s TEXT", o.statusColumn)
	}
	execAll(t, db, fmt.Sprintf(canonicalDDL, statusDDL))

	tx := db.MustBegin()
	for i, p := range patents {
		id := i + 1
		cols := []string{"id", "application_number", "application_date", "publication_number",
			"publication_date", "registration_number", "registration_date", "title", "abstract", "family_id"}
		args := []interface{}{id, p.ApplicationNumber, nullable(p.ApplicationDate), nullable(p.PublicationNumber),
			nullable(p.PublicationDate), nullable(p.RegistrationNumber), nullable(p.RegistrationDate),
			nullable(p.Title), nullable(p.Abstract), nullable(p.FamilyID)}
		if o.statusColumn != "" {
			cols = append(cols, o.statusColumn)
			args = append(args, nullable(p.Status))
		}
		tx.MustExec(fmt.Sprintf("INSERT INTO patents (%s) VALUES (%s)",
			strings.Join(cols, ", "), placeholders(len(cols))), args...)

		for _, name := range p.Applicants {
			tx.MustExec("INSERT INTO applicants (patent_id, name) VALUES (?, ?)", id, name)
		}
		for _, name := range p.Inventors {
			tx.MustExec("INSERT INTO inventors (patent_id, name) VALUES (?, ?)", id, name)
		}
		for _, code := range p.IPC {
			tx.MustExec("INSERT INTO ipc_classifications (patent_id, code) VALUES (?, ?)", id, code)
		}
		for n, text := range p.Claims {
			tx.MustExec("INSERT INTO claims (patent_id, claim_number, text) VALUES (?, ?, ?)", id, n+1, text)
		}
		for _, s := range p.Descriptions {
			tx.MustExec("INSERT INTO descriptions (patent_id, section_title, text) VALUES (?, ?, ?)", id, s.Title, s.Text)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("testutil: commit fixtures: %v", err)
	}
	return path
}

const inpitDDL = `CREATE TABLE inpit_data (
	"出願番号" TEXT PRIMARY KEY,
	"出願日" TEXT,
	"公開番号" TEXT,
	"公開日" TEXT,
	"登録番号" TEXT,
	"登録日" TEXT,
	"発明の名称" TEXT,
	"要約" TEXT,
	"出願人" TEXT,
	"発明者" TEXT,
	"国際特許分類_IPC_" TEXT,
	"ファミリーID" TEXT%s
)`

// NewInpitDB writes patents into a fresh SQLite file using the
// denormalized inpit_data layout: Japanese column names and ';'-joined
// multi-valued cells. Claims and descriptions are not represented.
func NewInpitDB(t testing.TB, patents []PatentFixture, opts ...FixtureOption) string {
	t.Helper()
	o := buildOptions(patents, "法的状態", opts)
	path := filepath.Join(t.TempDir(), o.name)
	db := openWritable(t, path)
	defer db.Close()

	statusDDL := ""
	if o.statusColumn != "" {
		statusDDL = fmt.Sprintf(",\n\t%q TEXT", o.statusColumn)
	}
	execAll(t, db, fmt.Sprintf(inpitDDL, statusDDL))

	cols := []string{`"出願番号"`, `"出願日"`, `"公開番号"`, `"公開日"`, `"登録番号"`, `"登録日"`,
		`"発明の名称"`, `"要約"`, `"出願人"`, `"発明者"`, `"国際特許分類_IPC_"`, `"ファミリーID"`}
	if o.statusColumn != "" {
		cols = append(cols, fmt.Sprintf("%q", o.statusColumn))
	}
	insert := fmt.Sprintf("INSERT INTO inpit_data (%s) VALUES (%s)", strings.Join(cols, ", "), placeholders(len(cols)))

	tx := db.MustBegin()
	for _, p := range patents {
		args := []interface{}{p.ApplicationNumber, nullable(p.ApplicationDate), nullable(p.PublicationNumber),
			nullable(p.PublicationDate), nullable(p.RegistrationNumber), nullable(p.RegistrationDate),
			nullable(p.Title), nullable(p.Abstract), joined(p.Applicants), joined(p.Inventors),
			joined(p.IPC), nullable(p.FamilyID)}
		if o.statusColumn != "" {
			args = append(args, nullable(p.Status))
		}
		tx.MustExec(insert, args...)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("testutil: commit fixtures: %v", err)
	}
	return path
}

func openWritable(t testing.TB, path string) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("testutil: open %s: %v", path, err)
	}
	return db
}

// execAll runs each ';'-terminated statement separately.
func execAll(t testing.TB, db *sqlx.DB, ddl string) {
	t.Helper()
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("testutil: exec %q: %v", stmt, err)
		}
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joined(values []string) interface{} {
	if len(values) == 0 {
		return nil
	}
	return strings.Join(values, ";")
}
