package engine

import (
	"context"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/database"
)

// Session runs statements inside one transaction. It is only valid within
// the Transaction callback that received it.
type Session struct {
	e *Engine
	h *connector.Handle
}

// Transaction runs body in a transaction on one pooled connection. It
// commits when body returns nil and rolls back otherwise.
func (e *Engine) Transaction(ctx context.Context, body func(*Session) error) error {
	return e.mgr.Transaction(ctx, func(h *connector.Handle) error {
		return body(&Session{e: e, h: h})
	})
}

func (s *Session) Handle() *connector.Handle { return s.h }

func (s *Session) Exec(ctx context.Context, node ast.Node, params ...any) (database.Result, error) {
	stmt, err := s.e.compileExec(node)
	if err != nil {
		return database.Result{}, err
	}
	return s.e.exec(ctx, s.h, stmt, params)
}
