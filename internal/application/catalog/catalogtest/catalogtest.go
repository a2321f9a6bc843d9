// Package catalogtest builds fully wired catalogs over SQLite fixtures for
// the tests of the outer interfaces.
package catalogtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/internal/application/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog"
	"github.com/turtacn/KeyIP-Analytics/internal/application/query"
	"github.com/turtacn/KeyIP-Analytics/internal/application/reporting"
	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/repositories"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/render"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/storage"
	"github.com/turtacn/KeyIP-Analytics/internal/testutil"
)

// Now is the clock of every service built here.
var Now = time.Date(2021, time.June, 1, 9, 30, 0, 0, time.UTC)

// ReportID is the ID stamped on every composed report.
const ReportID = "rpt-0001"

// Corpus is a small store with three applicants and overlapping technology.
var Corpus = []testutil.PatentFixture{
	{
		ApplicationNumber: "2019-000001", ApplicationDate: "2019-04-01", RegistrationDate: "2021-04-01",
		Title: "Distributed index", Status: "granted", Applicants: []string{"Acme Corp"},
		Inventors: []string{"Ada"}, IPC: []string{"G06F 16/00", "H04L 9/00"},
		Claims: []string{"A method of indexing."},
	},
	{
		ApplicationNumber: "2020-000002", ApplicationDate: "2020-02-01", RegistrationDate: "2021-02-01",
		Title: "Query planner", Status: "granted", Applicants: []string{"Acme Corp"},
		IPC: []string{"G06F 17/00"},
	},
	{
		ApplicationNumber: "2021-000003", ApplicationDate: "2021-03-01",
		Title: "Neural ranker", Status: "pending", Applicants: []string{"Acme Corp"},
		IPC: []string{"G06N 3/08"},
	},
	{
		ApplicationNumber: "2020-000004", ApplicationDate: "2020-05-01",
		Title: "Secure channel", Status: "rejected", Applicants: []string{"Beta Inc"},
		IPC: []string{"G06F 16/30", "H04L 29/06"},
	},
	{
		ApplicationNumber: "2021-000005", ApplicationDate: "2021-01-01",
		Title: "Drug delivery", Applicants: []string{"Gamma LLC"},
		IPC: []string{"A61K 31/00"},
	},
}

// Options tunes a backend. Zero values select the corpus, the name "main"
// and no natural language service.
type Options struct {
	Name    string
	Patents []testutil.PatentFixture
	NLQuery func(db *sqladapter.Adapter) query.NLQueryService
}

// NewBackend opens a canonical fixture database and wires the repository,
// the analytics service and a report service storing into a temp dir.
func NewBackend(t testing.TB, opts Options) *catalog.Backend {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "main"
	}
	if opts.Patents == nil {
		opts.Patents = Corpus
	}

	path := testutil.NewCanonicalDB(t, opts.Patents, testutil.WithFileName(opts.Name+".db"))
	db, err := sqladapter.Open(config.DatabaseConfig{Name: opts.Name, Path: path, Schema: config.SchemaCanonical}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repositories.NewPatentRepository(db, nil)
	svc, err := analytics.NewService(analytics.ServiceConfig{
		Adapter:    db,
		Repository: repo,
		Clock:      func() time.Time { return Now },
	})
	require.NoError(t, err)

	store, err := storage.NewFilesystem(t.TempDir(), nil)
	require.NoError(t, err)
	reports, err := reporting.NewService(reporting.ServiceConfig{
		Composer: reporting.NewComposer(svc, nil,
			reporting.WithClock(func() time.Time { return Now }),
			reporting.WithIDGenerator(func() string { return ReportID })),
		Renderers: []reporting.Renderer{render.NewJSON(), render.NewMarkdown(), render.NewHTML(), fakePDF{}},
		Store:     store,
	})
	require.NoError(t, err)

	b := &catalog.Backend{Name: opts.Name, Adapter: db, Patents: repo, Analytics: svc, Reports: reports}
	if opts.NLQuery != nil {
		b.NLQuery = opts.NLQuery(db)
	}
	return b
}

// New returns a catalog over backends; the first one is the default. With
// no backends it wires a single default backend over Corpus.
func New(t testing.TB, backends ...*catalog.Backend) *catalog.Catalog {
	t.Helper()
	if len(backends) == 0 {
		backends = []*catalog.Backend{NewBackend(t, Options{})}
	}
	c, err := catalog.New(backends[0].Name, backends, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// fakePDF stands in for the headless-browser renderer.
type fakePDF struct{}

func (fakePDF) Format() report.Format { return report.FormatPDF }

func (fakePDF) Render(_ context.Context, r *report.Report) ([]byte, error) {
	return []byte("%PDF-1.4\n% " + r.Title + "\n"), nil
}
