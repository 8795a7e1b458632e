package engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/errs"
	"github.com/Konsultn-Engineering/linsql/internal/testutil"
	"github.com/Konsultn-Engineering/linsql/schema"
)

var testCatalog = ast.MustCatalog(
	ast.TableMeta{Name: "users", Columns: []ast.ColumnMeta{
		{Name: "id", Type: ast.TypeInt, PrimaryKey: true},
		{Name: "name", Type: ast.TypeString},
		{Name: "email", Type: ast.TypeString, Nullable: true},
	}},
	ast.TableMeta{Name: "orders", Columns: []ast.ColumnMeta{
		{Name: "id", Type: ast.TypeInt, PrimaryKey: true},
		{Name: "user_id", Type: ast.TypeInt},
		{Name: "total", Type: ast.TypeDecimal},
	}},
)

type User struct {
	ID    int64
	Name  string
	Email sql.Null[string]
}

var userSpec = schema.MustSpec(
	schema.Required("id", "id", schema.Int64, func(u *User, v int64) { u.ID = v }),
	schema.Required("name", "name", schema.String, func(u *User, v string) { u.Name = v }),
	schema.Optional("email", "email", schema.String, func(u *User, v sql.Null[string]) { u.Email = v }),
)

type OrderTotal struct {
	UserName string
	Total    float64
}

var orderTotalSpec = schema.MustSpec(
	schema.Required("user_name", "name", schema.String, func(o *OrderTotal, v string) { o.UserName = v }),
	schema.Required("total", "total", schema.Float64, func(o *OrderTotal, v float64) { o.Total = v }),
)

// newSQLiteEngine opens an engine over an embedded SQLite file using the
// mariadb dialect, with the catalog's tables created.
func newSQLiteEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	e, err := Open(ctx, connector.Config{
		URL:      "file:" + filepath.Join(t.TempDir(), "engine.db"),
		Dialect:  "mariadb",
		Driver:   "sqlite",
		PoolSize: 2,
	}, testCatalog, WithLogger(testutil.Logger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })

	require.NoError(t, e.CreateSchema(ctx))
	return e
}

func seedUsers(t *testing.T, e *Engine) {
	t.Helper()
	ins := e.Builder().Insert("users").
		Values(ast.Assign("id", 1), ast.Assign("name", "ada"), ast.Assign("email", "ada@example.com")).
		Values(ast.Assign("id", 2), ast.Assign("name", "bob"), ast.Assign("email", nil)).
		Values(ast.Assign("id", 3), ast.Assign("name", "cy"), ast.Assign("email", nil))
	res, err := e.Exec(context.Background(), ins)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)
}

// =========================================================================
// End-to-end over SQLite
// =========================================================================

func TestFindMapsRows(t *testing.T) {
	e := newSQLiteEngine(t)
	seedUsers(t, e)

	q := e.Builder().Select("id", "name", "email").From("users").OrderBy("id", ast.Asc)
	users, err := Find(context.Background(), e, q, userSpec)
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, User{ID: 1, Name: "ada", Email: sql.Null[string]{V: "ada@example.com", Valid: true}}, users[0])
	assert.Equal(t, "bob", users[1].Name)
	assert.False(t, users[1].Email.Valid)
	assert.Equal(t, 0, e.Stats().Pool.Active)
}

func TestFindWithNamedParameter(t *testing.T) {
	e := newSQLiteEngine(t)
	seedUsers(t, e)

	q := e.Builder().Select("id", "name", "email").From("users").
		Where(ast.Eq("id", ast.NamedParam("id", ast.TypeInt)))

	for _, id := range []int64{2, 3} {
		u, err := One(context.Background(), e, q, userSpec, id)
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
	}

	_, err := One(context.Background(), e, q, userSpec, int64(99))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, err, errs.ErrMapping)

	stats := e.Stats()
	assert.Equal(t, 4, stats.CachedStatements, "two tables, the seed insert and one select")
	assert.Equal(t, uint64(2), stats.CacheHits)
}

func TestPaginationAndJoins(t *testing.T) {
	e := newSQLiteEngine(t)
	seedUsers(t, e)
	ctx := context.Background()

	_, err := e.Exec(ctx, e.Builder().Insert("orders").
		Values(ast.Assign("id", 10), ast.Assign("user_id", 1), ast.Assign("total", 12.5)).
		Values(ast.Assign("id", 11), ast.Assign("user_id", 1), ast.Assign("total", 7.5)).
		Values(ast.Assign("id", 12), ast.Assign("user_id", 2), ast.Assign("total", 3.0)))
	require.NoError(t, err)

	page := e.Builder().Select("id", "name", "email").From("users").OrderBy("id", ast.Asc).Limit(2).Offset(1)
	users, err := Find(ctx, e, page, userSpec)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(2), users[0].ID)
	assert.Equal(t, int64(3), users[1].ID)

	q := e.Builder().Select("users.name", ast.Sum("orders.total").As("total")).
		From("users").
		Join("orders", ast.Eq("orders.user_id", ast.Col("users.id"))).
		GroupBy("users.name").
		OrderBy("users.name", ast.Asc)
	totals, err := Find(ctx, e, q, orderTotalSpec)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, OrderTotal{UserName: "ada", Total: 20}, totals[0])
	assert.Equal(t, OrderTotal{UserName: "bob", Total: 3}, totals[1])
}

func TestTransactionRollbackHidesWrites(t *testing.T) {
	e := newSQLiteEngine(t)
	ctx := context.Background()
	boom := errors.New("abort")
	all := e.Builder().Select("id", "name", "email").From("users")

	err := e.Transaction(ctx, func(s *Session) error {
		if _, err := s.Exec(ctx, e.Builder().Insert("users").Values(ast.Assign("id", 1), ast.Assign("name", "ada"))); err != nil {
			return err
		}
		inside, err := FindIn(ctx, s, all, userSpec)
		if err != nil {
			return err
		}
		assert.Len(t, inside, 1, "the transaction sees its own write")
		return boom
	})
	require.ErrorIs(t, err, boom)

	users, err := Find(ctx, e, all, userSpec)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, e.Transaction(ctx, func(s *Session) error {
		assert.Equal(t, connector.TxActive, s.Handle().State())
		_, err := s.Exec(ctx, e.Builder().Insert("users").Values(ast.Assign("id", 1), ast.Assign("name", "ada")))
		return err
	}))
	users, err = Find(ctx, e, all, userSpec)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUpdateAndDelete(t *testing.T) {
	e := newSQLiteEngine(t)
	seedUsers(t, e)
	ctx := context.Background()

	res, err := e.Exec(ctx, e.Builder().Update("users").
		Set(ast.Assign("email", "bob@example.com")).
		Where(ast.IsNull("email")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	res, err = e.Exec(ctx, e.Builder().Delete("users").Where(ast.Gt("id", 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	users, err := Find(ctx, e, e.Builder().Select("id", "name", "email").From("users"), userSpec)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Name)
}

func TestEachReleasesConnectionOnEarlyStop(t *testing.T) {
	e := newSQLiteEngine(t)
	seedUsers(t, e)

	q := e.Builder().Select("id", "name", "email").From("users").OrderBy("id", ast.Asc)
	var seen []int64
	for u, err := range Each(context.Background(), e, q, userSpec) {
		require.NoError(t, err)
		seen = append(seen, u.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []int64{1, 2}, seen)
	assert.Equal(t, 0, e.Stats().Pool.Active)

	n := 0
	for _, err := range Each(context.Background(), e, q, userSpec) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 3, n, "each range runs the query again")
}

func TestExecAndFindRejectWrongStatementKind(t *testing.T) {
	e := newSQLiteEngine(t)
	ctx := context.Background()

	_, err := e.Exec(ctx, e.Builder().Select("id").From("users"))
	assert.ErrorIs(t, err, errs.ErrInvalidExpression)

	_, err = Find(ctx, e, e.Builder().Delete("users"), userSpec)
	assert.ErrorIs(t, err, errs.ErrInvalidExpression)

	_, err = Find(ctx, e, e.Builder().Select("missing").From("users"), userSpec)
	assert.ErrorIs(t, err, errs.ErrUnresolvedReference)
	assert.Equal(t, 0, e.Stats().Pool.Active)
}

// =========================================================================
// Driver interaction over sqlmock
// =========================================================================

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mgr, err := connector.New(db, connector.Config{Dialect: "postgres"}, connector.WithLogger(testutil.Logger(t)))
	require.NoError(t, err)
	e, err := New(mgr, testCatalog, WithLogger(testutil.Logger(t)))
	require.NoError(t, err)
	return e, mock
}

func TestSelectByIDScenario(t *testing.T) {
	e, mock := newMockEngine(t)

	q := e.Builder().Select("id", "name").From("users").Where(ast.Eq("id", 1))
	stmt, err := e.Compile(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "id" = $1`, stmt.SQL())
	args, err := stmt.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{1}, args)

	mock.ExpectQuery(`SELECT "id", "name" FROM "users" WHERE "id" = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, nil))

	nameSpec := schema.MustSpec(
		schema.Required("id", "id", schema.Int64, func(u *User, v int64) { u.ID = v }),
		schema.Required("name", "name", schema.String, func(u *User, v string) { u.Name = v }),
	)
	_, err = Find(context.Background(), e, q, nameSpec)
	require.ErrorIs(t, err, errs.ErrMapping)

	var me *errs.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "name", me.Field)
	assert.Equal(t, 0, me.Row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionFailureIsNotRetried(t *testing.T) {
	e, mock := newMockEngine(t)
	dup := errors.New("duplicate key value violates unique constraint")

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(dup)

	_, err := e.Exec(context.Background(), e.Builder().Insert("users").Values(ast.Assign("id", 1), ast.Assign("name", "a")))
	require.ErrorIs(t, err, dup)

	var xe *errs.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, errs.ExecutionError, xe.Kind)
	assert.Equal(t, "postgres", xe.Dialect)
	assert.Equal(t, []any{1, "a"}, xe.Params)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresManagerAndCatalog(t *testing.T) {
	_, err := New(nil, testCatalog)
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	mgr, err := connector.New(db, connector.Config{Dialect: "h2"})
	require.NoError(t, err)
	_, err = New(mgr, nil)
	assert.Error(t, err)

	e, err := New(mgr, testCatalog, WithCacheSize(0))
	require.NoError(t, err, "a non-positive cache size falls back to the default")
	assert.Equal(t, 0, e.Stats().CachedStatements)
}

func TestCompileErrorsSurfaceBeforeAcquire(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	mgr, err := connector.New(db, connector.Config{Dialect: "postgres", PoolSize: 1, AcquireTimeoutMs: 50},
		connector.WithLogger(testutil.Logger(t)))
	require.NoError(t, err)
	e, err := New(mgr, testCatalog, WithLogger(testutil.Logger(t)))
	require.NoError(t, err)

	ctx := context.Background()
	held, err := mgr.Acquire(ctx)
	require.NoError(t, err)
	defer held.Release()

	mismatch := e.Builder().Delete("users").Where(ast.Eq("id", "not-an-int"))
	_, err = e.Exec(ctx, mismatch)
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)

	unknown := e.Builder().Select("nope").From("users")
	_, err = Find(ctx, e, unknown, userSpec)
	assert.ErrorIs(t, err, errs.ErrUnresolvedReference)

	_, err = One(ctx, e, unknown, userSpec)
	assert.ErrorIs(t, err, errs.ErrUnresolvedReference)

	for _, err := range Each(ctx, e, unknown, userSpec) {
		assert.ErrorIs(t, err, errs.ErrUnresolvedReference)
	}

	_, err = e.Exec(ctx, e.Builder().Select("id").From("users"))
	assert.ErrorIs(t, err, errs.ErrInvalidExpression)

	assert.Zero(t, e.Stats().Pool.Timeouts)
	assert.Equal(t, 1, e.Stats().Pool.Active)
}
