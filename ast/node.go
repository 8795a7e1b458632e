package ast

type NodeType int

const (
	NodeSelect NodeType = iota
	NodeInsert
	NodeUpdate
	NodeDelete
	NodeCreateTable
	NodeColumn
	NodeTable
	NodeLiteral
	NodeParam
	NodeFunction
	NodeBinaryExpr
	NodeLogicalExpr
	NodeUnaryExpr
	NodeInExpr
	NodeBetweenExpr
	NodeSubqueryExpr
	NodeJoin
	NodeOrderBy
	NodeLimit
)

type Node interface {
	Type() NodeType
	Accept(v Visitor) error
	Fingerprint() uint64
}

// Expr is a node that yields a value: a column, a parameter, a function
// call or a predicate.
type Expr interface {
	Node
	ResultType() SemanticType
}

// IsPredicate reports whether e is a boolean-valued predicate node. Nested
// predicates are parenthesized by the compiler.
func IsPredicate(e Node) bool {
	switch n := e.(type) {
	case *BinaryExpr, *LogicalExpr, *UnaryExpr, *InExpr, *BetweenExpr:
		return true
	case *SubqueryExpr:
		return n.Exists
	}
	return false
}
