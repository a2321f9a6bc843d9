package sqladapter

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net/url"
	"os"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// KindDirect identifies the on-disk backend.
const KindDirect = "direct"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(FoldFunc, 1, foldValue); err != nil {
		panic(err)
	}
}

// foldValue implements FoldFunc. NULL stays NULL and numbers fold as their
// text form.
func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return Fold(v), nil
	case []byte:
		return Fold(string(v)), nil
	default:
		return Fold(fmt.Sprint(v)), nil
	}
}

// Direct reads a SQLite file through database/sql. The file is opened
// read-only with query_only set, so a statement that slipped past the guard
// still cannot write.
type Direct struct {
	db *sqlx.DB
}

// DirectDSN builds the read-only DSN for path.
func DirectDSN(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "query_only(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// NewDirect opens path. A missing file is reported as Unavailable rather
// than silently creating an empty database.
func NewDirect(path string) (*Direct, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "database file %q is not accessible", path)
	}
	db, err := sqlx.Open("sqlite", DirectDSN(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to open database")
	}
	return &Direct{db: db}, nil
}

// NewDirectFromDB wraps an existing handle.
func NewDirectFromDB(db *sqlx.DB) *Direct {
	return &Direct{db: db}
}

func (d *Direct) Kind() string { return KindDirect }

func (d *Direct) Query(ctx context.Context, query string, args []interface{}) (*Rows, error) {
	rs, err := d.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	out := &Rows{Columns: cols, Data: [][]interface{}{}}
	for rs.Next() {
		vals, err := rs.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out.Data), err)
		}
		for i, v := range vals {
			vals[i] = normalizeCell(v)
		}
		out.Data = append(out.Data, vals)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Direct) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Direct) Close() error {
	return d.db.Close()
}
