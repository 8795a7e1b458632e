// Package engine ties the pipeline together: it builds nodes against a
// catalog, compiles them for the connection's dialect, executes them on
// pooled handles and maps the rows onto typed records.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/cache"
	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/database"
	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

type Option func(*options)

type options struct {
	logger    *slog.Logger
	cacheSize int
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCacheSize bounds the number of compiled statements kept per engine.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), cacheSize: cache.DefaultSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Engine struct {
	mgr     *connector.Manager
	builder *ast.Builder
	stmts   *cache.StatementCache
	logger  *slog.Logger
}

// New builds an engine over an open connection manager.
func New(mgr *connector.Manager, catalog *ast.Catalog, opts ...Option) (*Engine, error) {
	if mgr == nil {
		return nil, errors.New("engine: nil connection manager")
	}
	if catalog == nil {
		return nil, errors.New("engine: nil catalog")
	}
	o := buildOptions(opts)
	stmts, err := cache.NewStatementCache(o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		mgr:     mgr,
		builder: ast.NewBuilder(catalog),
		stmts:   stmts,
		logger:  o.logger,
	}, nil
}

// Open connects according to cfg and builds an engine on the result.
func Open(ctx context.Context, cfg connector.Config, catalog *ast.Catalog, opts ...Option) (*Engine, error) {
	o := buildOptions(opts)
	mgr, err := connector.Open(ctx, cfg, connector.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	e, err := New(mgr, catalog, opts...)
	if err != nil {
		return nil, errors.Join(err, mgr.Close(ctx))
	}
	return e, nil
}

func (e *Engine) Builder() *ast.Builder        { return e.builder }
func (e *Engine) Catalog() *ast.Catalog        { return e.builder.Catalog() }
func (e *Engine) Dialect() dialect.Dialect     { return e.mgr.Dialect() }
func (e *Engine) Manager() *connector.Manager  { return e.mgr }
func (e *Engine) Cache() *cache.StatementCache { return e.stmts }

// Compile renders node for the engine's dialect, reusing an earlier
// compilation of a structurally identical node.
func (e *Engine) Compile(node ast.Node) (*visitor.CompiledStatement, error) {
	return e.stmts.GetOrCompile(node, e.mgr.Dialect())
}

// Exec runs a statement that returns no rows on a pooled connection. The
// node is compiled before a connection is acquired.
func (e *Engine) Exec(ctx context.Context, node ast.Node, params ...any) (database.Result, error) {
	stmt, err := e.compileExec(node)
	if err != nil {
		return database.Result{}, err
	}
	var res database.Result
	err = e.mgr.WithConnection(ctx, func(h *connector.Handle) error {
		var err error
		res, err = e.exec(ctx, h, stmt, params)
		return err
	})
	return res, err
}

func (e *Engine) compileExec(node ast.Node) (*visitor.CompiledStatement, error) {
	stmt, err := e.Compile(node)
	if err != nil {
		return nil, err
	}
	if stmt.ReturnsRows() {
		return nil, errs.New(errs.InvalidExpression, "statement returns rows; query it instead")
	}
	return stmt, nil
}

func (e *Engine) compileQuery(node ast.Node) (*visitor.CompiledStatement, error) {
	stmt, err := e.Compile(node)
	if err != nil {
		return nil, err
	}
	if !stmt.ReturnsRows() {
		return nil, errs.New(errs.InvalidExpression, "statement returns no rows; exec it instead")
	}
	return stmt, nil
}

func (e *Engine) exec(ctx context.Context, h *connector.Handle, stmt *visitor.CompiledStatement, params []any) (database.Result, error) {
	res, err := h.Exec(ctx, stmt, params...)
	if err != nil {
		return res, err
	}
	e.logger.Debug("statement executed",
		"dialect", stmt.Dialect(),
		"fingerprint", stmt.Fingerprint(),
		"rows_affected", res.RowsAffected)
	return res, nil
}

// CreateSchema creates every catalog table, in catalog order.
func (e *Engine) CreateSchema(ctx context.Context) error {
	tables := e.Catalog().Tables()
	stmts := make([]*visitor.CompiledStatement, 0, len(tables))
	for _, t := range tables {
		stmt, err := e.compileExec(e.builder.CreateTable(t.Name))
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}
	return e.mgr.WithConnection(ctx, func(h *connector.Handle) error {
		for i, stmt := range stmts {
			if _, err := e.exec(ctx, h, stmt, nil); err != nil {
				return err
			}
			e.logger.Info("table created", "table", tables[i].Name, "dialect", e.Dialect().Name())
		}
		return nil
	})
}

type Stats struct {
	Pool             connector.Stats
	CachedStatements int
	CacheHits        uint64
	CacheMisses      uint64
}

func (e *Engine) Stats() Stats {
	hits, misses := e.stmts.Stats()
	return Stats{
		Pool:             e.mgr.Stats(),
		CachedStatements: e.stmts.Len(),
		CacheHits:        hits,
		CacheMisses:      misses,
	}
}

// Close waits for active handles until ctx ends and closes the pool.
func (e *Engine) Close(ctx context.Context) error {
	e.stmts.Purge()
	return e.mgr.Close(ctx)
}
