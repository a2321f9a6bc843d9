// Package catalog holds the configured databases and the services bound to
// each of them.
package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/KeyIP-Analytics/internal/application/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/application/query"
	"github.com/turtacn/KeyIP-Analytics/internal/application/reporting"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// statusConcurrency bounds the number of databases checked at once.
const statusConcurrency = 4

// Backend is one database and the services reading it. NLQuery is nil when
// no translator is configured.
type Backend struct {
	Name      string
	Adapter   *sqladapter.Adapter
	Patents   patent.Repository
	Analytics analytics.Service
	Reports   reporting.Service
	NLQuery   query.NLQueryService
}

// DatabaseStatus is the health of one database.
type DatabaseStatus struct {
	Name      string `json:"name"`
	Backend   string `json:"backend"`
	Schema    string `json:"schema"`
	Default   bool   `json:"default"`
	Available bool   `json:"available"`
	Records   int64  `json:"record_count"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Catalog resolves database names to backends.
type Catalog struct {
	backends map[string]*Backend
	order    []string
	def      string
	logger   logging.Logger
	metrics  *prometheus.AppMetrics
}

// New builds a catalog. defaultName must name one of backends.
func New(defaultName string, backends []*Backend, logger logging.Logger, metrics *prometheus.AppMetrics) (*Catalog, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Catalog{
		backends: make(map[string]*Backend, len(backends)),
		def:      defaultName,
		logger:   logger.Named("catalog"),
		metrics:  metrics,
	}
	for _, b := range backends {
		if b == nil || b.Adapter == nil {
			return nil, errors.InvalidArguments("catalog: backend without adapter")
		}
		if _, dup := c.backends[b.Name]; dup {
			return nil, errors.Newf(errors.ErrCodeInvalidArguments, "catalog: database %q is registered twice", b.Name)
		}
		c.backends[b.Name] = b
		c.order = append(c.order, b.Name)
	}
	if _, ok := c.backends[defaultName]; !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "catalog: default database %q is not registered", defaultName)
	}
	return c, nil
}

// Get returns the backend named name; the empty name selects the default.
func (c *Catalog) Get(name string) (*Backend, error) {
	if name == "" {
		name = c.def
	}
	b, ok := c.backends[name]
	if !ok {
		names := append([]string(nil), c.order...)
		sort.Strings(names)
		return nil, errors.Newf(errors.ErrCodeInvalidArguments,
			"unknown database %q; expected one of %s", name, strings.Join(names, ", "))
	}
	return b, nil
}

// Default returns the default backend.
func (c *Catalog) Default() *Backend {
	return c.backends[c.def]
}

// Names lists databases in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Status checks every database concurrently. A failing database is reported
// as unavailable rather than failing the whole call.
func (c *Catalog) Status(ctx context.Context) ([]DatabaseStatus, error) {
	out := make([]DatabaseStatus, len(c.order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)

	for i, name := range c.order {
		i, b := i, c.backends[name]
		g.Go(func() error {
			st := DatabaseStatus{
				Name:    b.Name,
				Backend: b.Adapter.Kind(),
				Schema:  b.Adapter.Dialect().Name(),
				Default: b.Name == c.def,
			}
			start := time.Now()
			n, err := b.Adapter.CountRecords(gctx)
			if err != nil {
				st.Error = err.Error()
				st.ErrorKind = errors.KindOf(err)
				c.logger.Warn("database unavailable",
					logging.String("database", b.Name),
					logging.Err(err))
			} else {
				st.Available = true
				st.Records = n
			}
			c.metrics.RecordDatabaseStatus(b.Name, st.Available, st.Records)
			c.logger.Debug("database checked",
				logging.String("database", b.Name),
				logging.Duration("elapsed", time.Since(start)))
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}
	return out, nil
}

// Ready reports the first database that cannot be reached.
func (c *Catalog) Ready(ctx context.Context) error {
	for _, name := range c.order {
		if err := c.backends[name].Adapter.Ping(ctx); err != nil {
			return errors.Wrapf(err, errors.GetCode(err), "database %s", name)
		}
	}
	return nil
}

// Close releases every adapter and returns the first error.
func (c *Catalog) Close() error {
	var first error
	for _, name := range c.order {
		if err := c.backends[name].Adapter.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
