package batch

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
)

// Dialect selects placeholder syntax and estimate strategy.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TimeFormat describes how the timestamp column is stored, which decides how
// the cutoff is bound.
type TimeFormat string

const (
	// TimeNative binds the cutoff as a time.Time.
	TimeNative TimeFormat = "native"
	// TimeUnix binds Unix seconds.
	TimeUnix TimeFormat = "unix"
	// TimeUnixMilli binds Unix milliseconds.
	TimeUnixMilli TimeFormat = "unix_ms"
	// TimeText binds "2006-01-02 15:04:05" in UTC, the format of SQLite's
	// CURRENT_TIMESTAMP.
	TimeText TimeFormat = "text"
)

// textLayout matches SQLite's datetime() output.
const textLayout = "2006-01-02 15:04:05"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Target names the table and columns a Deleter operates on.
type Target struct {
	Table           string
	TimestampColumn string
	IDColumn        string
	TimeFormat      TimeFormat
}

// Validate checks that every identifier is safe to interpolate.
func (t Target) Validate() error {
	for field, v := range map[string]string{
		"table":            t.Table,
		"timestamp_column": t.TimestampColumn,
		"id_column":        t.IDColumn,
	} {
		if !identRe.MatchString(v) {
			return cleanup.NewValidationError(field, fmt.Sprintf("%q is not a valid SQL identifier", v))
		}
	}
	switch t.TimeFormat {
	case "", TimeNative, TimeUnix, TimeUnixMilli, TimeText:
	default:
		return cleanup.NewValidationError("time_format", fmt.Sprintf("unknown time format %q", t.TimeFormat))
	}
	return nil
}

// bindTime converts a cutoff to the column's representation.
func (t Target) bindTime(cutoff time.Time) any {
	switch t.TimeFormat {
	case TimeUnix:
		return cutoff.Unix()
	case TimeUnixMilli:
		return cutoff.UnixMilli()
	case TimeText:
		return cutoff.UTC().Format(textLayout)
	default:
		// Drivers that store time.Time as text keep the zone; binding UTC
		// keeps text comparison consistent with UTC-written rows.
		return cutoff.UTC()
	}
}

// DefaultEstimateCap bounds the SQLite estimate count.
const DefaultEstimateCap = 100000

// Deleter deletes bounded batches from one table.
type Deleter struct {
	db      *sql.DB
	dialect Dialect
	target  Target

	// EstimateCap bounds the SQLite count probe.
	EstimateCap int64

	selectAll   string
	selectAfter string
}

// NewDeleter validates the target and prepares the select statements.
func NewDeleter(db *sql.DB, dialect Dialect, target Target) (*Deleter, error) {
	if db == nil {
		return nil, cleanup.NewValidationError("db", "is required")
	}
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, cleanup.NewValidationError("dialect", fmt.Sprintf("unsupported dialect %q", dialect))
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	d := &Deleter{db: db, dialect: dialect, target: target, EstimateCap: DefaultEstimateCap}

	q := quote
	d.selectAll = fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC, %s ASC LIMIT %s",
		q(target.IDColumn), q(target.Table), q(target.TimestampColumn), q(target.IDColumn), d.placeholder(1))
	d.selectAfter = fmt.Sprintf("SELECT %s FROM %s WHERE %s < %s ORDER BY %s ASC, %s ASC LIMIT %s",
		q(target.IDColumn), q(target.Table), q(target.TimestampColumn), d.placeholder(1),
		q(target.TimestampColumn), q(target.IDColumn), d.placeholder(2))
	return d, nil
}

// Target returns the deleter's target.
func (d *Deleter) Target() Target {
	return d.target
}

// Delete removes up to batchSize rows strictly older than cutoff (every row
// when cutoff is nil) and returns how many were deleted.
func (d *Deleter) Delete(ctx context.Context, batchSize int, cutoff *time.Time) (int, error) {
	if batchSize <= 0 {
		return 0, cleanup.NewValidationError("batchSize", "must be positive")
	}

	ids, err := d.selectIDs(ctx, batchSize, cutoff)
	if err != nil {
		return 0, cleanup.NewTransientStorageError("select", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := d.deleteIDs(ctx, ids)
	if err != nil {
		return 0, cleanup.NewTransientStorageError("delete", err)
	}
	return n, nil
}

func (d *Deleter) selectIDs(ctx context.Context, limit int, cutoff *time.Time) ([]any, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cutoff != nil {
		rows, err = d.db.QueryContext(ctx, d.selectAfter, d.target.bindTime(*cutoff), limit)
	} else {
		rows, err = d.db.QueryContext(ctx, d.selectAll, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]any, 0, limit)
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		// Some drivers hand back text as []byte backed by a reused buffer.
		if b, ok := id.([]byte); ok {
			id = string(b)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *Deleter) deleteIDs(ctx context.Context, ids []any) (int, error) {
	q := quote
	marks := make([]string, len(ids))
	for i := range ids {
		marks[i] = d.placeholder(i + 1)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		q(d.target.Table), q(d.target.IDColumn), strings.Join(marks, ", "))

	res, err := d.db.ExecContext(ctx, query, ids...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(ids), nil
	}
	return int(n), nil
}

func (d *Deleter) placeholder(n int) string {
	if d.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// quote wraps an already validated identifier in double quotes, which both
// SQLite and Postgres accept.
func quote(ident string) string {
	return `"` + ident + `"`
}
