package connector

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("syntax error"), false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"bad conn", driver.ErrBadConn, true},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"mysql too many connections", &mysql.MySQLError{Number: 1040}, true},
		{"mysql duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"pgx admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"pgx connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pq too many connections", &pq.Error{Code: "53300"}, true},
		{"pq undefined table", &pq.Error{Code: "42P01"}, false},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestWithURLCredentials(t *testing.T) {
	got, err := withURLCredentials("postgres://db:5432/app?sslmode=disable", Credentials{Username: "app", Password: "p@ss"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:p%40ss@db:5432/app?sslmode=disable", got)

	got, err = withURLCredentials("postgres://owner:x@db/app", Credentials{Username: "app", Password: "y"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://owner:x@db/app", got, "credentials in the url win")

	got, err = withURLCredentials("host=db dbname=app", Credentials{Username: "app", Password: "it's"})
	require.NoError(t, err)
	assert.Equal(t, `host=db dbname=app user=app password='it\'s'`, got)

	got, err = withURLCredentials("postgres://db/app", Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/app", got)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db/app", redact("postgres://app:secret@db/app"))
	assert.Equal(t, "***@tcp(db:3306)/app", redact("root:secret@tcp(db:3306)/app"))
	assert.Equal(t, "host=db dbname=app", redact("host=db dbname=app"))
}
