package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
	"github.com/Konsultn-Engineering/linsql/internal/testutil"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

var testCatalog = ast.MustCatalog(
	ast.TableMeta{Name: "users", Columns: []ast.ColumnMeta{
		{Name: "id", Type: ast.TypeInt, PrimaryKey: true},
		{Name: "name", Type: ast.TypeString, Nullable: true},
	}},
)

func newMockManager(t *testing.T, cfg Config) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	if cfg.Dialect == "" {
		cfg.Dialect = "postgres"
	}
	m, err := New(db, cfg, WithLogger(testutil.Logger(t)))
	require.NoError(t, err)
	return m, mock
}

func compileFor(t *testing.T, m *Manager, node ast.Node) *visitor.CompiledStatement {
	t.Helper()
	stmt, err := visitor.Compile(node, m.Dialect())
	require.NoError(t, err)
	return stmt
}

func insertUser(t *testing.T, m *Manager, id int, name string) *visitor.CompiledStatement {
	t.Helper()
	b := ast.NewBuilder(testCatalog)
	return compileFor(t, m, b.Insert("users").Values(ast.Assign("id", id), ast.Assign("name", name)))
}

// =========================================================================
// Pool Bound
// =========================================================================

func TestAcquireTimesOutWhenPoolExhausted(t *testing.T) {
	m, _ := newMockManager(t, Config{PoolSize: 1, AcquireTimeoutMs: 30})
	ctx := context.Background()

	h, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())

	start := time.Now()
	_, err = m.Acquire(ctx)
	require.ErrorIs(t, err, errs.ErrConnectionAcquisitionTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, uint64(1), stats.Timeouts)

	require.NoError(t, h.Release())

	h2, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, h.ID(), h2.ID())
	require.NoError(t, h2.Release())
	assert.Equal(t, 0, m.Stats().Active)
}

func TestAcquireHonorsCallerCancellation(t *testing.T) {
	m, _ := newMockManager(t, Config{PoolSize: 1, AcquireTimeoutMs: 5000})

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = m.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errs.ErrConnectionAcquisitionTimeout)
	assert.Zero(t, m.Stats().Timeouts)
}

func TestActiveHandlesNeverExceedPoolSize(t *testing.T) {
	const poolSize = 3
	m, _ := newMockManager(t, Config{PoolSize: poolSize, AcquireTimeoutMs: 2000})

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithConnection(context.Background(), func(*Handle) error {
				mu.Lock()
				current++
				peak = max(peak, current)
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, poolSize)
	assert.Equal(t, uint64(12), m.Stats().Acquired)
	assert.Equal(t, 0, m.Stats().Active)
}

func TestAcquireAfterCloseFails(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	mock.ExpectClose()

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	_, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, errs.ErrExecution)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =========================================================================
// Transactions
// =========================================================================

func TestTransactionCommits(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	stmt := insertUser(t, m, 1, "ada")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).
		WithArgs(1, "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen TxState
	err := m.Transaction(context.Background(), func(h *Handle) error {
		res, err := h.Exec(context.Background(), stmt)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), res.RowsAffected)
		seen = h.State()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, TxActive, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	boom := errors.New("validation failed")

	mock.ExpectBegin()
	mock.ExpectRollback()

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	err = m.WithTransaction(context.Background(), h, func(*Handle) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, TxRolledBack, h.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackFailureDoesNotMaskBodyError(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	boom := errors.New("body failed")
	lost := errors.New("connection lost")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(lost)

	err := m.Transaction(context.Background(), func(*Handle) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, lost)
	assert.Equal(t, uint64(1), m.Stats().Discarded)
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	m, mock := newMockManager(t, Config{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.Transaction(context.Background(), func(*Handle) error { panic("kaboom") })
	})
	assert.Equal(t, 0, m.Stats().Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitFailureIsReported(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	err = m.WithTransaction(context.Background(), h, func(*Handle) error { return nil })
	assert.ErrorIs(t, err, errs.ErrExecution)
	assert.Equal(t, TxRolledBack, h.State())
}

func TestReleaseRollsBackActiveTransaction(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Begin(context.Background()))

	require.NoError(t, h.Release())
	assert.Equal(t, TxRolledBack, h.State())
	assert.Equal(t, uint64(1), m.Stats().ForcedRollbacks)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, h.Release(), "release is idempotent")
	assert.Equal(t, 0, m.Stats().Active)
}

func TestIllegalTransitions(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	ctx := context.Background()
	mock.ExpectBegin()
	mock.ExpectCommit()

	h, err := m.Acquire(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Commit(), errs.ErrIllegalTransition)
	assert.ErrorIs(t, h.Rollback(), errs.ErrIllegalTransition)

	require.NoError(t, h.Begin(ctx))
	assert.ErrorIs(t, h.Begin(ctx), errs.ErrIllegalTransition)
	require.NoError(t, h.Commit())
	assert.Equal(t, TxCommitted, h.State())
	assert.ErrorIs(t, h.Rollback(), errs.ErrIllegalTransition)
	assert.ErrorIs(t, h.Begin(ctx), errs.ErrIllegalTransition)

	require.NoError(t, h.Release())
	_, err = h.Exec(ctx, insertUser(t, m, 1, "a"))
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)
	assert.ErrorIs(t, h.Ping(ctx), errs.ErrIllegalTransition)
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "none", TxNone.String())
	assert.Equal(t, "active", TxActive.String())
	assert.Equal(t, "committed", TxCommitted.String())
	assert.Equal(t, "rolledback", TxRolledBack.String())
	assert.Equal(t, "TxState(9)", TxState(9).String())
}

// =========================================================================
// Execution
// =========================================================================

func TestExecuteDispatchesOnStatementKind(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	ctx := context.Background()
	b := ast.NewBuilder(testCatalog)
	sel := compileFor(t, m, b.Select("id", "name").From("users").Where(ast.Eq("id", ast.NamedParam("id", ast.TypeInt))))

	mock.ExpectQuery(`SELECT "id", "name" FROM "users"`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "grace"))
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.WithConnection(ctx, func(h *Handle) error {
		out, err := h.Execute(ctx, sel, 7)
		require.NoError(t, err)
		require.NotNil(t, out.Rows)
		cols, err := out.Rows.Columns()
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, cols)
		n := 0
		for out.Rows.Next() {
			n++
		}
		require.NoError(t, out.Rows.Close())
		assert.Equal(t, 1, n)

		out, err = h.Execute(ctx, insertUser(t, m, 2, "b"))
		require.NoError(t, err)
		assert.Nil(t, out.Rows)
		assert.Equal(t, int64(1), out.Result.RowsAffected)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecRejectsUnboundAndForeignStatements(t *testing.T) {
	m, _ := newMockManager(t, Config{})
	ctx := context.Background()
	b := ast.NewBuilder(testCatalog)
	sel := compileFor(t, m, b.Select("id").From("users").Where(ast.Eq("id", ast.NamedParam("id", ast.TypeInt))))

	foreign, err := visitor.Compile(b.Select("id").From("users"), dialect.MariaDB{})
	require.NoError(t, err)

	err = m.WithConnection(ctx, func(h *Handle) error {
		_, err := h.Query(ctx, sel)
		assert.ErrorIs(t, err, errs.ErrInvalidExpression)

		_, err = h.Query(ctx, sel, "seven")
		assert.ErrorIs(t, err, errs.ErrTypeMismatch)

		_, err = h.Query(ctx, foreign)
		assert.ErrorIs(t, err, errs.ErrInvalidExpression)

		_, err = h.Exec(ctx, nil)
		assert.ErrorIs(t, err, errs.ErrInvalidExpression)
		return nil
	})
	require.NoError(t, err)
}

func TestStatementTimeoutMarksConnectionSuspect(t *testing.T) {
	m, mock := newMockManager(t, Config{StatementTimeoutMs: 20})
	ctx := context.Background()
	sel := compileFor(t, m, ast.NewBuilder(testCatalog).Select("id").From("users"))

	mock.ExpectQuery(`SELECT "id" FROM "users"`).
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	h, err := m.Acquire(ctx)
	require.NoError(t, err)

	_, err = h.Query(ctx, sel)
	require.ErrorIs(t, err, errs.ErrExecution)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, `SELECT "id" FROM "users"`, e.SQL)
	assert.Equal(t, "postgres", e.Dialect)

	assert.True(t, h.Suspect())
	require.NoError(t, h.Release())
	assert.Equal(t, uint64(1), m.Stats().Discarded)
}

func TestExecutionErrorCarriesStatement(t *testing.T) {
	m, mock := newMockManager(t, Config{})
	ctx := context.Background()
	stmt := insertUser(t, m, 1, "dup")
	dup := errors.New("duplicate key")

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(dup)

	err := m.WithConnection(ctx, func(h *Handle) error {
		_, err := h.Exec(ctx, stmt)
		assert.False(t, h.Suspect())
		return err
	})
	require.ErrorIs(t, err, dup)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.ExecutionError, e.Kind)
	assert.Equal(t, stmt.SQL(), e.SQL)
	assert.Equal(t, []any{1, "dup"}, e.Params)
}

// =========================================================================
// Connect Retry
// =========================================================================

func TestConnectRetriesTransientFailures(t *testing.T) {
	flaky := errors.New("server restarting")
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	m, err := New(db, Config{
		Dialect:  "postgres",
		PoolSize: 2,
		Retry:    RetryConfig{MaxAttempts: 3, BaseDelayMs: 1, MaxDelayMs: 2},
	},
		WithLogger(testutil.Logger(t)),
		WithTransientClassifier(func(err error) bool { return errors.Is(err, flaky) }),
	)
	require.NoError(t, err)

	// Keeps the mock registered while discarded connections are closed.
	spare, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer spare.Close()

	mock.ExpectPing().WillReturnError(flaky)
	mock.ExpectPing()

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Release())

	assert.Equal(t, uint64(1), m.Stats().Retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectGivesUpOnPermanentFailure(t *testing.T) {
	denied := errors.New("password authentication failed")
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	m, err := New(db, Config{Dialect: "postgres", PoolSize: 2},
		WithLogger(testutil.Logger(t)),
		WithTransientClassifier(func(error) bool { return false }),
	)
	require.NoError(t, err)

	spare, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer spare.Close()

	mock.ExpectPing().WillReturnError(denied)

	_, err = m.Acquire(context.Background())
	require.ErrorIs(t, err, denied)
	assert.ErrorIs(t, err, errs.ErrExecution)
	assert.Zero(t, m.Stats().Retries)
	assert.Equal(t, 0, m.Stats().Active)
}

func TestNewValidatesConfig(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, Config{Dialect: "sqlserver"})
	assert.ErrorIs(t, err, errs.ErrUnsupportedDialectFeature)

	_, err = New(db, Config{Dialect: "postgres", PoolSize: -1})
	assert.Error(t, err)

	_, err = New(nil, Config{Dialect: "postgres"})
	assert.Error(t, err)
}
