package database

import (
	"database/sql"

	"github.com/Konsultn-Engineering/linsql/errs"
)

// Cursor is an open result set. Iteration errors come back as execution
// errors carrying the statement; Close runs the release hook exactly once.
type Cursor struct {
	rows    *sql.Rows
	sql     string
	dialect string
	params  []any
	release func()
	closed  bool
}

// NewCursor wraps rows produced by query. release runs after the rows are
// closed and is typically the statement timeout cancel.
func NewCursor(rows *sql.Rows, query, dialect string, params []any, release func()) *Cursor {
	return &Cursor{rows: rows, sql: query, dialect: dialect, params: params, release: release}
}

func (c *Cursor) Next() bool { return !c.closed && c.rows.Next() }

func (c *Cursor) Scan(dest ...any) error { return c.rows.Scan(dest...) }

func (c *Cursor) Columns() ([]string, error) {
	cols, err := c.rows.Columns()
	if err != nil {
		return nil, c.wrap(err)
	}
	return cols, nil
}

func (c *Cursor) Err() error {
	if err := c.rows.Err(); err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	if c.release != nil {
		c.release()
	}
	if err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *Cursor) wrap(err error) error {
	return errs.Execution(err, c.sql, c.dialect, c.params)
}

// Result summarizes a statement that returned no rows.
type Result struct {
	RowsAffected int64
	// LastInsertID is zero when the driver does not report one, as with
	// PostgreSQL; use RETURNING there.
	LastInsertID int64
}

func NewResult(r sql.Result) Result {
	var out Result
	if r == nil {
		return out
	}
	if n, err := r.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := r.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out
}
