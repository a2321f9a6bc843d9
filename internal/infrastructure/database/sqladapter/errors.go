package sqladapter

import (
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"net"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// SQLite primary result codes that the taxonomy distinguishes.
const (
	sqliteError     = 1
	sqlitePerm      = 3
	sqliteBusy      = 5
	sqliteLocked    = 6
	sqliteReadOnly  = 8
	sqliteInterrupt = 9
	sqliteIOErr     = 10
	sqliteCorrupt   = 11
	sqliteCantOpen  = 14
	sqliteSchema    = 17
	sqliteMismatch  = 20
	sqliteAuth      = 23
	sqliteRange     = 25
	sqliteNotADB    = 26
)

// classify maps a backend failure onto the shared error taxonomy:
// Unavailable, Timeout, BadQuery, Unauthorized, NotAllowed or Unknown.
// Errors that already carry an AppError pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		return err
	}
	if ce := errors.FromContext(err); ce != nil {
		return ce
	}
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "database connection unavailable")
	}

	var coded interface{ Code() int }
	if stderrors.As(err, &coded) {
		return classifySQLiteCode(err, coded.Code())
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.Wrap(err, errors.ErrCodeTimeout, "backend request timed out")
		}
		return errors.Wrap(err, errors.ErrCodeUnavailable, "backend unreachable")
	}
	return errors.Wrap(err, errors.ErrCodeUnknown, "query failed")
}

func classifySQLiteCode(err error, code int) error {
	switch code & 0xff {
	case sqliteError, sqliteMismatch, sqliteRange, sqliteSchema:
		return errors.Wrap(err, errors.ErrCodeBadQuery, "query rejected by database")
	case sqlitePerm, sqliteAuth:
		return errors.Wrap(err, errors.ErrCodeUnauthorized, "database denied access")
	case sqliteReadOnly:
		return errors.Wrap(err, errors.ErrCodeNotAllowed, "database is read-only")
	case sqliteBusy, sqliteLocked, sqliteIOErr, sqliteCorrupt, sqliteCantOpen, sqliteNotADB:
		return errors.Wrap(err, errors.ErrCodeUnavailable, "database unavailable")
	case sqliteInterrupt:
		return errors.Wrap(err, errors.ErrCodeCancelled, "query interrupted")
	}
	return errors.Wrap(err, errors.ErrCodeUnknown, "query failed")
}
