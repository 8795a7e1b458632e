package engine

import (
	"context"
	"iter"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/schema"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

// Find runs node on a pooled connection and maps every row through spec.
// On a mapping failure the records decoded before it are returned with the
// error.
func Find[T any](ctx context.Context, e *Engine, node ast.Node, spec *schema.MappingSpec[T], params ...any) ([]T, error) {
	stmt, err := e.compileQuery(node)
	if err != nil {
		return nil, err
	}
	var out []T
	err = e.mgr.WithConnection(ctx, func(h *connector.Handle) error {
		var err error
		out, err = find(ctx, h, stmt, spec, params)
		return err
	})
	return out, err
}

// One returns the first row of node. No rows is a MappingError wrapping
// sql.ErrNoRows.
func One[T any](ctx context.Context, e *Engine, node ast.Node, spec *schema.MappingSpec[T], params ...any) (T, error) {
	var out T
	stmt, err := e.compileQuery(node)
	if err != nil {
		return out, err
	}
	err = e.mgr.WithConnection(ctx, func(h *connector.Handle) error {
		rows, err := h.Query(ctx, stmt, params...)
		if err != nil {
			return err
		}
		out, err = spec.One(rows)
		return err
	})
	return out, err
}

// FindIn is Find inside a transaction.
func FindIn[T any](ctx context.Context, s *Session, node ast.Node, spec *schema.MappingSpec[T], params ...any) ([]T, error) {
	stmt, err := s.e.compileQuery(node)
	if err != nil {
		return nil, err
	}
	return find(ctx, s.h, stmt, spec, params)
}

func find[T any](ctx context.Context, h *connector.Handle, stmt *visitor.CompiledStatement, spec *schema.MappingSpec[T], params []any) ([]T, error) {
	rows, err := h.Query(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	return spec.All(rows)
}

// Each streams the rows of node. Every range over the sequence runs the
// query on its own connection, which is held until the loop ends. A node
// that does not compile yields its error without touching the pool.
func Each[T any](ctx context.Context, e *Engine, node ast.Node, spec *schema.MappingSpec[T], params ...any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		stmt, err := e.compileQuery(node)
		if err != nil {
			yield(zero, err)
			return
		}
		h, err := e.mgr.Acquire(ctx)
		if err != nil {
			yield(zero, err)
			return
		}
		defer func() {
			if err := h.Release(); err != nil {
				e.logger.Warn("release after streaming failed", "handle", h.ID(), "error", err)
			}
		}()

		rows, err := h.Query(ctx, stmt, params...)
		if err != nil {
			yield(zero, err)
			return
		}
		for rec, err := range spec.Map(rows) {
			if !yield(rec, err) {
				return
			}
		}
	}
}
