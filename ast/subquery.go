package ast

import "github.com/Konsultn-Engineering/linsql/utils"

// SubqueryExpr embeds a SELECT. With Exists set it is the predicate
// [NOT] EXISTS (...); otherwise it yields the subquery's single column.
//
// The embedded statement is resolved by the enclosing statement, so it may
// refer to the enclosing tables (a correlated subquery).
type SubqueryExpr struct {
	Stmt   *SelectStmt
	Exists bool
	Not    bool

	raw     *SelectStmt
	catalog *Catalog
	err     error
}

func (s *SubqueryExpr) Type() NodeType         { return NodeSubqueryExpr }
func (s *SubqueryExpr) Accept(v Visitor) error { return v.VisitSubqueryExpr(s) }

func (s *SubqueryExpr) ResultType() SemanticType {
	if s.Exists {
		return TypeBool
	}
	if s.Stmt != nil && len(s.Stmt.Columns) == 1 {
		return s.Stmt.Columns[0].ResultType()
	}
	return TypeUnknown
}

// Err returns the structural construction error of the embedded statement,
// if any. Unresolved references are reported by the enclosing statement.
func (s *SubqueryExpr) Err() error { return s.err }

func (s *SubqueryExpr) Fingerprint() uint64 {
	tag := "subquery"
	if s.Exists {
		tag = "exists"
	}
	if s.Not {
		tag = "not" + tag
	}
	var fp uint64
	if s.Stmt != nil {
		fp = s.Stmt.Fingerprint()
	}
	return utils.Chain(tag, fp)
}
