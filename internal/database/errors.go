package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrAcquisitionTimeout  = errors.New("connection acquisition timed out")
	ErrPoolClosed          = errors.New("connection pool is closed")
	ErrTransient           = errors.New("transient database error")
	ErrRetriesExhausted    = errors.New("retries exhausted")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrTransactionFailed   = errors.New("transaction failed")
)

// Category is the retry classification of a database error. The set is
// closed: every error maps to exactly one category.
type Category int

const (
	// CategoryFatal errors are returned to the caller as-is.
	CategoryFatal Category = iota
	// CategoryTransient errors mean the connection or session failed, not the
	// statement; the statement is safe to run again.
	CategoryTransient
	// CategoryConstraint errors are integrity violations (foreign key, unique,
	// not null, check). Never retried.
	CategoryConstraint
)

func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryConstraint:
		return "constraint"
	default:
		return "fatal"
	}
}

// Classify decides the Category of err once, at the driver boundary, so the
// retry loop never inspects driver-specific codes itself.
//
// PostgreSQL: SQLSTATE class 08 (connection exception) and 57 (operator
// intervention) are transient, class 23 is a constraint violation.
// SQLite: SQLITE_BUSY and SQLITE_LOCKED are transient.
func Classify(err error) Category {
	if err == nil {
		return CategoryFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryFatal
	}
	if errors.Is(err, ErrAcquisitionTimeout) || errors.Is(err, ErrPoolClosed) {
		return CategoryFatal
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsConnectionException(pgErr.Code), pgerrcode.IsOperatorIntervention(pgErr.Code):
			return CategoryTransient
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return CategoryConstraint
		}
		return CategoryFatal
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return CategoryTransient
		case sqlite3.ErrConstraint:
			return CategoryConstraint
		}
		return CategoryFatal
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CategoryTransient
	}
	if pgconn.SafeToRetry(err) {
		return CategoryTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransient
	}
	return CategoryFatal
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return Classify(err) == CategoryTransient
}

// IsForeignKeyViolation reports whether err is an insert or update that
// referenced a missing parent row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.ForeignKeyViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// annotate tags constraint violations with ErrConstraintViolation so callers
// can match them without knowing the driver.
func annotate(err error) error {
	if err == nil || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	if Classify(err) == CategoryConstraint {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	return err
}
