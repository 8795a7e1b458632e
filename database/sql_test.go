package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/linsql/errs"
)

func TestCursorWrapsIterationErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).RowError(1, boom))

	rows, err := db.QueryContext(context.Background(), "SELECT id FROM users WHERE id > ?", 0)
	require.NoError(t, err)

	released := 0
	cur := NewCursor(rows, "SELECT id FROM users WHERE id > ?", "mariadb", []any{0}, func() { released++ })

	cols, err := cur.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, cols)

	var n int
	for cur.Next() {
		require.NoError(t, cur.Scan(&n))
	}
	assert.Equal(t, 1, n)

	err = cur.Err()
	require.ErrorIs(t, err, errs.ErrExecution)
	assert.ErrorIs(t, err, boom)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "mariadb", e.Dialect)
	assert.Equal(t, []any{0}, e.Params)

	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())
	assert.Equal(t, 1, released)
	assert.False(t, cur.Next())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewResult(t *testing.T) {
	r := NewResult(sqlmock.NewResult(7, 3))
	assert.Equal(t, Result{RowsAffected: 3, LastInsertID: 7}, r)

	r = NewResult(sqlmock.NewErrorResult(errors.New("unsupported")))
	assert.Zero(t, r)

	assert.Zero(t, NewResult(nil))
}
