package ast

type Visitor interface {
	VisitSelect(*SelectStmt) error
	VisitInsert(*InsertStmt) error
	VisitUpdate(*UpdateStmt) error
	VisitDelete(*DeleteStmt) error
	VisitCreateTable(*CreateTableStmt) error

	VisitColumn(*ColumnRef) error
	VisitTable(*TableRef) error
	VisitLiteral(*Literal) error
	VisitParam(*Param) error
	VisitFunction(*Function) error
	VisitBinaryExpr(*BinaryExpr) error
	VisitLogicalExpr(*LogicalExpr) error
	VisitUnaryExpr(*UnaryExpr) error
	VisitInExpr(*InExpr) error
	VisitBetweenExpr(*BetweenExpr) error
	VisitSubqueryExpr(*SubqueryExpr) error

	VisitJoinClause(*JoinClause) error
	VisitOrderByClause(*OrderByClause) error
	VisitLimitClause(*LimitClause) error
}
