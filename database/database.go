package database

import (
	"context"
	"database/sql"
)

// Rows is the forward-only row source the result mapper reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Querier is the part of *sql.Conn and *sql.Tx statements run on.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ Querier = (*sql.Conn)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Rows    = (*sql.Rows)(nil)
	_ Rows    = (*Cursor)(nil)
)
