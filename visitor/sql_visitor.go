package visitor

import (
	"strings"
	"sync"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
)

var visitorPool = sync.Pool{
	New: func() any {
		return &SQLVisitor{
			slots: make([]Slot, 0, 8),
		}
	},
}

// SQLVisitor renders a statement tree in one depth-first pass. Text and
// parameter slots are appended together, so the n-th placeholder always
// names the n-th slot.
type SQLVisitor struct {
	sb      strings.Builder
	slots   []Slot
	dialect dialect.Dialect
	depth   int
}

func NewSQLVisitor(d dialect.Dialect) *SQLVisitor {
	v := visitorPool.Get().(*SQLVisitor)
	v.dialect = d
	v.Reset()
	return v
}

func (v *SQLVisitor) Release() {
	v.dialect = nil
	v.Reset()
	visitorPool.Put(v)
}

func (v *SQLVisitor) Reset() {
	v.sb.Reset()
	v.slots = v.slots[:0]
	v.depth = 0
}

// Compile renders node for d. Construction errors carried by the node are
// reported before anything is rendered.
func Compile(node ast.Node, d dialect.Dialect) (*CompiledStatement, error) {
	if node == nil {
		return nil, errs.New(errs.InvalidExpression, "cannot compile a nil node")
	}
	if d == nil {
		return nil, errs.New(errs.InvalidExpression, "no dialect selected")
	}
	if e, ok := node.(interface{ Err() error }); ok {
		if err := e.Err(); err != nil {
			return nil, err
		}
	}

	v := NewSQLVisitor(d)
	defer v.Release()

	if err := node.Accept(v); err != nil {
		return nil, err
	}

	slots := make([]Slot, len(v.slots))
	copy(slots, v.slots)
	return &CompiledStatement{
		sql:         v.sb.String(),
		slots:       slots,
		dialect:     d.Name(),
		returnsRows: returnsRows(node),
		fingerprint: node.Fingerprint(),
	}, nil
}

func returnsRows(node ast.Node) bool {
	switch node.Type() {
	case ast.NodeSelect:
		return true
	case ast.NodeInsert:
		r, ok := node.(interface{ HasReturning() bool })
		return ok && r.HasReturning()
	}
	return false
}

func (v *SQLVisitor) unsupported(f dialect.Feature) error {
	return errs.Unsupported(f.String(), v.dialect.Name())
}

// clause renders a top-level expression of WHERE, HAVING, ON or a select
// list item: the root is bare, every nested predicate gets parentheses.
func (v *SQLVisitor) clause(e ast.Expr) error {
	saved := v.depth
	v.depth = 0
	err := v.expr(e)
	v.depth = saved
	return err
}

func (v *SQLVisitor) expr(e ast.Node) error {
	wrap := v.depth > 0 && ast.IsPredicate(e)
	if wrap {
		v.sb.WriteByte('(')
	}
	v.depth++
	err := e.Accept(v)
	v.depth--
	if wrap {
		v.sb.WriteByte(')')
	}
	return err
}

func (v *SQLVisitor) list(items []ast.Expr) error {
	for i, it := range items {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		if err := v.clause(it); err != nil {
			return err
		}
	}
	return nil
}

func (v *SQLVisitor) VisitSelect(s *ast.SelectStmt) error {
	v.sb.WriteString("SELECT ")
	if s.Distinct {
		v.sb.WriteString("DISTINCT ")
	}

	for i, col := range s.Columns {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		if err := v.clause(col); err != nil {
			return err
		}
		if alias := selectAlias(col); alias != "" {
			v.sb.WriteString(" AS ")
			v.sb.WriteString(v.dialect.QuoteIdentifier(alias))
		}
	}

	if s.From != nil {
		v.sb.WriteString(" FROM ")
		if err := s.From.Accept(v); err != nil {
			return err
		}
	}

	for _, join := range s.Joins {
		if err := join.Accept(v); err != nil {
			return err
		}
	}

	if s.Where != nil {
		v.sb.WriteString(" WHERE ")
		if err := v.clause(s.Where); err != nil {
			return err
		}
	}

	if len(s.GroupBy) > 0 {
		v.sb.WriteString(" GROUP BY ")
		if err := v.list(s.GroupBy); err != nil {
			return err
		}
	}

	if s.Having != nil {
		v.sb.WriteString(" HAVING ")
		if err := v.clause(s.Having); err != nil {
			return err
		}
	}

	if len(s.OrderBy) > 0 {
		v.sb.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				v.sb.WriteString(", ")
			}
			if err := o.Accept(v); err != nil {
				return err
			}
		}
	}

	if s.Limit != nil {
		if err := s.Limit.Accept(v); err != nil {
			return err
		}
	}

	return nil
}

func selectAlias(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.ColumnRef:
		if n.Alias != n.Name {
			return n.Alias
		}
	case *ast.Function:
		return n.Alias
	}
	return ""
}

func (v *SQLVisitor) VisitInsert(s *ast.InsertStmt) error {
	clause := dialect.PlainInsert
	if s.Upsert != nil {
		if !v.dialect.Supports(dialect.FeatureUpsert) {
			return v.unsupported(dialect.FeatureUpsert)
		}
		var err error
		clause, err = v.dialect.Upsert(dialect.UpsertSpec{
			Table:     s.Table.Name,
			Columns:   columnNames(s.Columns),
			Conflict:  columnNames(s.Upsert.Conflict),
			Update:    columnNames(s.UpdateColumns()),
			DoNothing: s.Upsert.DoNothing,
		})
		if err != nil {
			return err
		}
	}
	if len(s.Returning) > 0 && !v.dialect.Supports(dialect.FeatureReturning) {
		return v.unsupported(dialect.FeatureReturning)
	}

	v.sb.WriteString(clause.Head)
	v.sb.WriteByte(' ')
	if err := s.Table.Accept(v); err != nil {
		return err
	}

	v.sb.WriteString(" (")
	for i, c := range s.Columns {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		v.sb.WriteString(v.dialect.QuoteIdentifier(c.Name))
	}
	v.sb.WriteByte(')')
	v.sb.WriteString(clause.Key)

	v.sb.WriteString(" VALUES ")
	for r, row := range s.Rows {
		if r > 0 {
			v.sb.WriteString(", ")
		}
		v.sb.WriteByte('(')
		if err := v.list(row); err != nil {
			return err
		}
		v.sb.WriteByte(')')
	}
	v.sb.WriteString(clause.Tail)

	if len(s.Returning) > 0 {
		v.sb.WriteString(" RETURNING ")
		if err := v.list(s.Returning); err != nil {
			return err
		}
	}
	return nil
}

func columnNames(cols []*ast.ColumnRef) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func (v *SQLVisitor) VisitUpdate(s *ast.UpdateStmt) error {
	v.sb.WriteString("UPDATE ")
	if err := s.Table.Accept(v); err != nil {
		return err
	}
	v.sb.WriteString(" SET ")
	for i, set := range s.Set {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		v.sb.WriteString(v.dialect.QuoteIdentifier(set.Column.Name))
		v.sb.WriteString(" = ")
		if err := v.clause(set.Value); err != nil {
			return err
		}
	}
	if s.Where != nil {
		v.sb.WriteString(" WHERE ")
		if err := v.clause(s.Where); err != nil {
			return err
		}
	}
	return nil
}

func (v *SQLVisitor) VisitDelete(s *ast.DeleteStmt) error {
	v.sb.WriteString("DELETE FROM ")
	if err := s.Table.Accept(v); err != nil {
		return err
	}
	if s.Where != nil {
		v.sb.WriteString(" WHERE ")
		if err := v.clause(s.Where); err != nil {
			return err
		}
	}
	return nil
}

func (v *SQLVisitor) VisitCreateTable(s *ast.CreateTableStmt) error {
	v.sb.WriteString("CREATE TABLE ")
	if s.IfNotExists {
		v.sb.WriteString("IF NOT EXISTS ")
	}
	if err := s.Table.Accept(v); err != nil {
		return err
	}
	v.sb.WriteString(" (")

	var keys []string
	for i, c := range s.Columns {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		native, err := v.dialect.MapType(c.Type)
		if err != nil {
			return err
		}
		v.sb.WriteString(v.dialect.QuoteIdentifier(c.Name))
		v.sb.WriteByte(' ')
		v.sb.WriteString(native)
		if !c.Nullable {
			v.sb.WriteString(" NOT NULL")
		}
		if c.PrimaryKey {
			keys = append(keys, v.dialect.QuoteIdentifier(c.Name))
		}
	}
	if len(keys) > 0 {
		v.sb.WriteString(", PRIMARY KEY (")
		v.sb.WriteString(strings.Join(keys, ", "))
		v.sb.WriteByte(')')
	}
	v.sb.WriteByte(')')
	return nil
}

func (v *SQLVisitor) VisitColumn(c *ast.ColumnRef) error {
	if !c.Resolved() {
		ref := c.Name
		if c.Table != "" {
			ref = c.Table + "." + c.Name
		}
		return errs.New(errs.UnresolvedReference, "column %q is not bound to a table in scope", ref)
	}

	if c.Table != "" {
		v.sb.WriteString(v.dialect.QuoteIdentifier(c.Table))
		v.sb.WriteByte('.')
	}
	if c.IsStar() {
		v.sb.WriteByte('*')
		return nil
	}
	v.sb.WriteString(v.dialect.QuoteIdentifier(c.Name))
	return nil
}

func (v *SQLVisitor) VisitTable(t *ast.TableRef) error {
	if t.Schema != "" {
		v.sb.WriteString(v.dialect.QuoteIdentifier(t.Schema))
		v.sb.WriteByte('.')
	}
	v.sb.WriteString(v.dialect.QuoteIdentifier(t.Name))

	if t.Alias != "" && t.Alias != t.Name {
		v.sb.WriteString(" AS ")
		v.sb.WriteString(v.dialect.QuoteIdentifier(t.Alias))
	}

	return nil
}

func (v *SQLVisitor) VisitLiteral(l *ast.Literal) error {
	s, err := v.dialect.RenderLiteral(l.Val)
	if err != nil {
		return err
	}
	v.sb.WriteString(s)
	return nil
}

func (v *SQLVisitor) VisitParam(p *ast.Param) error {
	v.sb.WriteString(v.dialect.Placeholder(len(v.slots) + 1))
	v.slots = append(v.slots, Slot{
		Name:  p.Name,
		Type:  p.ResultType(),
		Value: p.Val,
		Bound: p.Bound,
	})
	return nil
}

func (v *SQLVisitor) VisitFunction(f *ast.Function) error {
	v.sb.WriteString(f.Name)
	v.sb.WriteByte('(')
	if f.Distinct {
		v.sb.WriteString("DISTINCT ")
	}
	for i, a := range f.Args {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		if err := v.expr(a); err != nil {
			return err
		}
	}
	v.sb.WriteByte(')')
	return nil
}

func (v *SQLVisitor) VisitBinaryExpr(expr *ast.BinaryExpr) error {
	if expr.Operator == ast.OpILike && !v.dialect.Supports(dialect.FeatureILike) {
		return v.unsupported(dialect.FeatureILike)
	}

	if err := v.expr(expr.Left); err != nil {
		return err
	}

	v.sb.WriteByte(' ')
	v.sb.WriteString(expr.Operator)
	v.sb.WriteByte(' ')

	return v.expr(expr.Right)
}

func (v *SQLVisitor) VisitLogicalExpr(expr *ast.LogicalExpr) error {
	for i, op := range expr.Operands {
		if i > 0 {
			v.sb.WriteByte(' ')
			v.sb.WriteString(expr.Operator)
			v.sb.WriteByte(' ')
		}
		if err := v.expr(op); err != nil {
			return err
		}
	}
	return nil
}

func (v *SQLVisitor) VisitUnaryExpr(expr *ast.UnaryExpr) error {
	if expr.IsPrefix {
		v.sb.WriteString(expr.Operator)
		v.sb.WriteByte(' ')
		return v.expr(expr.Operand)
	}

	if err := v.expr(expr.Operand); err != nil {
		return err
	}
	v.sb.WriteByte(' ')
	v.sb.WriteString(expr.Operator)
	return nil
}

func (v *SQLVisitor) VisitInExpr(in *ast.InExpr) error {
	if err := v.expr(in.Left); err != nil {
		return err
	}
	if in.Not {
		v.sb.WriteString(" NOT IN ")
	} else {
		v.sb.WriteString(" IN ")
	}

	if in.Subquery != nil {
		return in.Subquery.Accept(v)
	}

	v.sb.WriteByte('(')
	for i, val := range in.Values {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		if err := v.expr(val); err != nil {
			return err
		}
	}
	v.sb.WriteByte(')')
	return nil
}

func (v *SQLVisitor) VisitBetweenExpr(b *ast.BetweenExpr) error {
	if err := v.expr(b.Expr); err != nil {
		return err
	}
	if b.Not {
		v.sb.WriteString(" NOT BETWEEN ")
	} else {
		v.sb.WriteString(" BETWEEN ")
	}
	if err := v.expr(b.Low); err != nil {
		return err
	}
	v.sb.WriteString(" AND ")
	return v.expr(b.High)
}

func (v *SQLVisitor) VisitSubqueryExpr(s *ast.SubqueryExpr) error {
	if err := s.Err(); err != nil {
		return err
	}
	if s.Exists {
		if s.Not {
			v.sb.WriteString("NOT ")
		}
		v.sb.WriteString("EXISTS ")
	}

	saved := v.depth
	v.depth = 0
	v.sb.WriteByte('(')
	err := s.Stmt.Accept(v)
	v.sb.WriteByte(')')
	v.depth = saved
	return err
}

func (v *SQLVisitor) VisitJoinClause(clause *ast.JoinClause) error {
	if clause.JoinType == ast.JoinFull && !v.dialect.Supports(dialect.FeatureFullJoin) {
		return v.unsupported(dialect.FeatureFullJoin)
	}

	v.sb.WriteByte(' ')
	v.sb.WriteString(clause.JoinType.String())
	v.sb.WriteByte(' ')
	if err := clause.Table.Accept(v); err != nil {
		return err
	}

	if clause.On != nil {
		v.sb.WriteString(" ON ")
		return v.clause(clause.On)
	}
	return nil
}

func (v *SQLVisitor) VisitOrderByClause(o *ast.OrderByClause) error {
	if err := v.clause(o.Expr); err != nil {
		return err
	}
	if o.Desc {
		v.sb.WriteString(" DESC")
	} else {
		v.sb.WriteString(" ASC")
	}
	return nil
}

func (v *SQLVisitor) VisitLimitClause(l *ast.LimitClause) error {
	if p := v.dialect.Pagination(l.Count, l.Offset); p != "" {
		v.sb.WriteByte(' ')
		v.sb.WriteString(p)
	}
	return nil
}

var _ ast.Visitor = (*SQLVisitor)(nil)
