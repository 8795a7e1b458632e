package ast

import "github.com/Konsultn-Engineering/linsql/utils"

// BinaryExpr is a comparison or pattern match between two operands.
type BinaryExpr struct {
	Left     Expr
	Operator string
	Right    Expr
}

func (b *BinaryExpr) Type() NodeType           { return NodeBinaryExpr }
func (b *BinaryExpr) Accept(v Visitor) error   { return v.VisitBinaryExpr(b) }
func (b *BinaryExpr) ResultType() SemanticType { return TypeBool }
func (b *BinaryExpr) Fingerprint() uint64 {
	return utils.Chain("bin:"+b.Operator, b.Left.Fingerprint(), b.Right.Fingerprint())
}

// LogicalExpr joins two or more predicates with AND or OR.
type LogicalExpr struct {
	Operator string
	Operands []Expr
}

func (l *LogicalExpr) Type() NodeType           { return NodeLogicalExpr }
func (l *LogicalExpr) Accept(v Visitor) error   { return v.VisitLogicalExpr(l) }
func (l *LogicalExpr) ResultType() SemanticType { return TypeBool }
func (l *LogicalExpr) Fingerprint() uint64 {
	return utils.Chain("logic:"+l.Operator, fingerprints(l.Operands)...)
}

// UnaryExpr is NOT (prefix) or IS [NOT] NULL (postfix).
type UnaryExpr struct {
	Operator string
	Operand  Expr
	IsPrefix bool
}

func (u *UnaryExpr) Type() NodeType           { return NodeUnaryExpr }
func (u *UnaryExpr) Accept(v Visitor) error   { return v.VisitUnaryExpr(u) }
func (u *UnaryExpr) ResultType() SemanticType { return TypeBool }
func (u *UnaryExpr) Fingerprint() uint64 {
	return utils.Chain("unary:"+u.Operator, u.Operand.Fingerprint())
}

// InExpr tests membership in a value list or in a single-column subquery.
type InExpr struct {
	Left     Expr
	Values   []Expr
	Subquery *SubqueryExpr
	Not      bool
}

func (in *InExpr) Type() NodeType           { return NodeInExpr }
func (in *InExpr) Accept(v Visitor) error   { return v.VisitInExpr(in) }
func (in *InExpr) ResultType() SemanticType { return TypeBool }
func (in *InExpr) Fingerprint() uint64 {
	tag := "in"
	if in.Not {
		tag = "notin"
	}
	fps := append([]uint64{in.Left.Fingerprint()}, fingerprints(in.Values)...)
	if in.Subquery != nil {
		fps = append(fps, in.Subquery.Fingerprint())
	}
	return utils.Chain(tag, fps...)
}

type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

func (b *BetweenExpr) Type() NodeType           { return NodeBetweenExpr }
func (b *BetweenExpr) Accept(v Visitor) error   { return v.VisitBetweenExpr(b) }
func (b *BetweenExpr) ResultType() SemanticType { return TypeBool }
func (b *BetweenExpr) Fingerprint() uint64 {
	tag := "between"
	if b.Not {
		tag = "notbetween"
	}
	return utils.Chain(tag, b.Expr.Fingerprint(), b.Low.Fingerprint(), b.High.Fingerprint())
}

func fingerprints[N Node](nodes []N) []uint64 {
	out := make([]uint64, len(nodes))
	for i, n := range nodes {
		out[i] = n.Fingerprint()
	}
	return out
}
