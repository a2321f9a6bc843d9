// Package sqladapter exposes parameterized read-only queries over a SQLite
// data mart, reached either directly on disk or through a SQLite HTTP
// gateway. Both backends share one error taxonomy and one result shape.
package sqladapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Backend executes already-guarded statements.
type Backend interface {
	Kind() string
	Query(ctx context.Context, query string, args []interface{}) (*Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options configures an Adapter.
type Options struct {
	Name    string
	Dialect Dialect
	Timeout time.Duration
	MaxRows int
	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
}

// Adapter guards, times and classifies every query sent to its backend.
type Adapter struct {
	name    string
	backend Backend
	dialect Dialect
	timeout time.Duration
	maxRows int
	logger  logging.Logger
	metrics *prometheus.AppMetrics

	mu     sync.Mutex
	schema *Schema
}

// New wraps backend.
func New(backend Backend, opts Options) *Adapter {
	if opts.Dialect == nil {
		opts.Dialect = CanonicalDialect
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultQueryTimeout
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = config.DefaultMaxRows
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Adapter{
		name:    opts.Name,
		backend: backend,
		dialect: opts.Dialect,
		timeout: opts.Timeout,
		maxRows: opts.MaxRows,
		logger:  opts.Logger.Named("sqladapter").With(logging.String("database", opts.Name)),
		metrics: opts.Metrics,
	}
}

// Open builds the backend described by cfg and wraps it.
func Open(cfg config.DatabaseConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Adapter, error) {
	dialect, err := DialectFor(cfg.Schema)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch cfg.Backend {
	case config.BackendDirect, "":
		backend, err = NewDirect(cfg.Path)
	case config.BackendGateway:
		db := cfg.GatewayDB
		if db == "" {
			db = cfg.Name
		}
		backend, err = NewGateway(GatewayOptions{BaseURL: cfg.GatewayURL, Database: db, Token: cfg.APIToken})
	default:
		err = fmt.Errorf("sqladapter: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return New(backend, Options{
		Name:    cfg.Name,
		Dialect: dialect,
		Timeout: cfg.QueryTimeout,
		MaxRows: cfg.MaxRows,
		Logger:  logger,
		Metrics: metrics,
	}), nil
}

// Name returns the configured database name.
func (a *Adapter) Name() string { return a.name }

// Kind returns the backend kind ("direct" or "gateway").
func (a *Adapter) Kind() string { return a.backend.Kind() }

// Dialect returns the schema dialect.
func (a *Adapter) Dialect() Dialect { return a.dialect }

// Query runs a read-only statement with bound args under the per-call
// deadline. Non-read statements fail with NotAllowed before reaching the
// backend; caller cancellation surfaces as Cancelled.
func (a *Adapter) Query(ctx context.Context, query string, args ...interface{}) (*Rows, error) {
	if err := CheckReadOnly(query); err != nil {
		a.metrics.RecordSQLQuery(a.name, a.Kind(), 0, 0, errors.KindOf(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}

	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	rows, err := a.backend.Query(qctx, query, args)
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = errors.FromContext(ctx.Err())
		case qctx.Err() != nil:
			err = errors.Wrapf(err, errors.ErrCodeTimeout, "query exceeded %s deadline", a.timeout)
		default:
			err = classify(err)
		}
		a.metrics.RecordSQLQuery(a.name, a.Kind(), elapsed, 0, errors.KindOf(err))
		a.logger.Debug("query failed",
			logging.Duration("elapsed", elapsed),
			logging.String("kind", errors.KindOf(err)),
			logging.Err(err))
		return nil, err
	}

	a.metrics.RecordSQLQuery(a.name, a.Kind(), elapsed, rows.Len(), "")
	a.logger.Debug("query executed",
		logging.Duration("elapsed", elapsed),
		logging.Int("rows", rows.Len()))
	return rows, nil
}

// Passthrough runs a caller-supplied statement: the result is truncated to
// the configured row limit and physical column names are translated to
// canonical ones.
func (a *Adapter) Passthrough(ctx context.Context, query string, args ...interface{}) (*Rows, error) {
	rows, err := a.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows.Data) > a.maxRows {
		a.logger.Info("passthrough result truncated",
			logging.Int("rows", len(rows.Data)),
			logging.Int("max_rows", a.maxRows))
		rows.Data = rows.Data[:a.maxRows]
	}
	for i, c := range rows.Columns {
		rows.Columns[i] = a.dialect.TranslateColumn(c)
	}
	return rows, nil
}

// Schema describes the physical tables the dialect reads. The description is
// computed once per adapter; a failed attempt is not cached.
func (a *Adapter) Schema(ctx context.Context) (*Schema, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.schema != nil {
		return a.schema, nil
	}

	s := &Schema{Dialect: a.dialect.Name(), Tables: map[string]map[string]bool{}}
	for _, table := range a.dialect.Tables() {
		rows, err := a.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
		if err != nil {
			return nil, err
		}
		idx, err := rows.Resolve("name")
		if err != nil {
			return nil, err
		}
		cols := make(map[string]bool, rows.Len())
		for i := 0; i < rows.Len(); i++ {
			cols[rows.Text(i, idx["name"])] = true
		}
		s.Tables[table] = cols
	}
	a.schema = s
	return s, nil
}

// Relation returns "(<select>) AS alias" for rel, or false when the physical
// schema cannot provide it.
func (a *Adapter) Relation(ctx context.Context, rel Relation, alias string) (string, bool, error) {
	s, err := a.Schema(ctx)
	if err != nil {
		return "", false, err
	}
	sql, ok := a.dialect.Relation(rel, s)
	if !ok {
		return "", false, nil
	}
	return "(" + sql + ") AS " + alias, true, nil
}

// CountRecords returns the row count of the dialect's record table.
func (a *Adapter) CountRecords(ctx context.Context) (int64, error) {
	rows, err := a.Query(ctx, "SELECT COUNT(*) AS n FROM "+quoteIdent(a.dialect.RecordTable()))
	if err != nil {
		return 0, err
	}
	if rows.Len() == 0 {
		return 0, nil
	}
	return rows.Int(0, 0), nil
}

// Ping verifies that the backend is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.backend.Ping(qctx); err != nil {
		if ctx.Err() != nil {
			return errors.FromContext(ctx.Err())
		}
		return classify(err)
	}
	return nil
}

// Close releases the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}
