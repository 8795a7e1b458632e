package connector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/Konsultn-Engineering/linsql/database"
	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

// TxState is the transaction state of a handle. The only legal path is
// TxNone -> TxActive -> TxCommitted or TxRolledBack.
type TxState int

const (
	TxNone TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxNone:
		return "none"
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolledback"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// Handle is exclusive use of one physical connection. It is not safe for
// concurrent use and must not outlive Release.
type Handle struct {
	m        *Manager
	conn     *sql.Conn
	id       string
	tx       *sql.Tx
	state    TxState
	suspect  bool
	released bool
}

func (h *Handle) ID() string               { return h.id }
func (h *Handle) State() TxState           { return h.state }
func (h *Handle) Dialect() dialect.Dialect { return h.m.dialect }

// Suspect reports whether the handle will be discarded on release rather
// than returned to the pool.
func (h *Handle) Suspect() bool { return h.suspect }

func (h *Handle) transition(from TxState, op string) error {
	if h.released {
		return errs.New(errs.IllegalTransition, "%s on released handle %s", op, h.id)
	}
	if h.state != from {
		return errs.New(errs.IllegalTransition, "%s in transaction state %s", op, h.state)
	}
	return nil
}

func (h *Handle) Begin(ctx context.Context) error {
	if err := h.transition(TxNone, "begin"); err != nil {
		return err
	}
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		h.markIfBroken(ctx, err)
		return errs.Wrap(errs.ExecutionError, err, "begin transaction")
	}
	h.tx = tx
	h.state = TxActive
	return nil
}

// Commit ends the transaction. A failed commit leaves the handle in
// TxRolledBack, since the database has discarded the transaction.
func (h *Handle) Commit() error {
	if err := h.transition(TxActive, "commit"); err != nil {
		return err
	}
	err := h.tx.Commit()
	h.tx = nil
	if err != nil {
		h.state = TxRolledBack
		h.suspect = true
		return errs.Wrap(errs.ExecutionError, err, "commit")
	}
	h.state = TxCommitted
	return nil
}

func (h *Handle) Rollback() error {
	if err := h.transition(TxActive, "rollback"); err != nil {
		return err
	}
	err := h.tx.Rollback()
	h.tx = nil
	h.state = TxRolledBack
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		h.suspect = true
		return errs.Wrap(errs.ExecutionError, err, "rollback")
	}
	return nil
}

func (h *Handle) querier() database.Querier {
	if h.tx != nil {
		return h.tx
	}
	return h.conn
}

// Exec runs a statement that returns no rows. Params, when given, replace
// the statement's parameter values positionally.
func (h *Handle) Exec(ctx context.Context, stmt *visitor.CompiledStatement, params ...any) (database.Result, error) {
	args, err := h.prepare(stmt, params)
	if err != nil {
		return database.Result{}, err
	}
	ctx, cancel := h.statementContext(ctx)
	defer cancel()

	res, err := h.querier().ExecContext(ctx, stmt.SQL(), args...)
	if err != nil {
		return database.Result{}, h.fail(ctx, err, stmt, args)
	}
	return database.NewResult(res), nil
}

// Query runs a statement that returns rows. The statement timeout covers
// iteration too and is released when the cursor is closed.
func (h *Handle) Query(ctx context.Context, stmt *visitor.CompiledStatement, params ...any) (*database.Cursor, error) {
	args, err := h.prepare(stmt, params)
	if err != nil {
		return nil, err
	}
	ctx, cancel := h.statementContext(ctx)

	rows, err := h.querier().QueryContext(ctx, stmt.SQL(), args...)
	if err != nil {
		err = h.fail(ctx, err, stmt, args)
		cancel()
		return nil, err
	}
	release := func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.suspect = true
		}
		cancel()
	}
	return database.NewCursor(rows, stmt.SQL(), stmt.Dialect(), args, release), nil
}

// Outcome is what Execute produced: a cursor for reads, a result otherwise.
type Outcome struct {
	Rows   *database.Cursor
	Result database.Result
}

// Execute dispatches on whether stmt returns rows.
func (h *Handle) Execute(ctx context.Context, stmt *visitor.CompiledStatement, params ...any) (Outcome, error) {
	if stmt != nil && stmt.ReturnsRows() {
		rows, err := h.Query(ctx, stmt, params...)
		return Outcome{Rows: rows}, err
	}
	res, err := h.Exec(ctx, stmt, params...)
	return Outcome{Result: res}, err
}

func (h *Handle) prepare(stmt *visitor.CompiledStatement, params []any) ([]any, error) {
	if h.released {
		return nil, errs.New(errs.IllegalTransition, "execute on released handle %s", h.id)
	}
	if stmt == nil {
		return nil, errs.New(errs.InvalidExpression, "compiled statement is nil")
	}
	if stmt.Dialect() != h.m.dialect.Name() {
		return nil, errs.New(errs.InvalidExpression, "statement compiled for %s, connection speaks %s", stmt.Dialect(), h.m.dialect.Name())
	}
	if len(params) > 0 {
		bound, err := stmt.WithArgs(params...)
		if err != nil {
			return nil, err
		}
		stmt = bound
	}
	return stmt.Args()
}

func (h *Handle) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := h.m.cfg.StatementTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// fail turns a driver failure into an ExecutionError. A cancelled or timed
// out statement leaves the connection in an unknown state, so the handle
// becomes suspect.
func (h *Handle) fail(ctx context.Context, err error, stmt *visitor.CompiledStatement, args []any) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		h.suspect = true
		if errors.Is(ctxErr, context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		h.m.logger.Warn("statement cancelled; connection will be discarded",
			"handle", h.id,
			"timeout", h.m.cfg.StatementTimeout(),
			"error", err)
	} else {
		h.markIfBroken(ctx, err)
	}
	return errs.Execution(err, stmt.SQL(), stmt.Dialect(), args)
}

func (h *Handle) markIfBroken(_ context.Context, err error) {
	if errors.Is(err, driver.ErrBadConn) || h.m.transient(err) {
		h.suspect = true
	}
}

// Ping checks the connection; failure makes the handle suspect.
func (h *Handle) Ping(ctx context.Context) error {
	if h.released {
		return errs.New(errs.IllegalTransition, "ping on released handle %s", h.id)
	}
	if err := h.conn.PingContext(ctx); err != nil {
		h.suspect = true
		return errs.Wrap(errs.ExecutionError, err, "ping")
	}
	return nil
}

// Release returns the connection to the pool. An active transaction is a
// caller defect: it is rolled back and logged. Suspect connections are
// discarded instead of reused. Release is idempotent.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true

	var err error
	if h.state == TxActive {
		h.m.forced.Add(1)
		h.m.logger.Warn("handle released with an active transaction; rolling back", "handle", h.id)
		if rerr := h.tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			h.suspect = true
			err = errs.Wrap(errs.ExecutionError, rerr, "forced rollback")
		}
		h.tx = nil
		h.state = TxRolledBack
	}

	if h.suspect {
		h.m.discarded.Add(1)
		h.m.logger.Warn("discarding suspect connection", "handle", h.id)
		discard(h.conn)
	} else if cerr := h.conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) && err == nil {
		err = errs.Wrap(errs.ExecutionError, cerr, "release connection")
	}

	h.m.active.Add(-1)
	h.m.sem.Release(1)
	h.m.logger.Debug("connection released", "handle", h.id, "active", h.m.active.Load())
	return err
}
