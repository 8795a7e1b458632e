package ast

import (
	"github.com/Konsultn-Engineering/linsql/errs"
)

var errNilSubquery = errs.New(errs.InvalidExpression, "subquery is nil")

type scopeEntry struct {
	ref  *TableRef
	meta TableMeta
}

// scope is the set of tables a statement's column references resolve
// against. A subquery's scope has the enclosing statement's scope as parent.
type scope struct {
	cat     *Catalog
	tables  []scopeEntry
	parent  *scope
	aliases map[string]SemanticType
	// substitutes maps select-list aliases to the expressions they name, for
	// clauses where the alias itself is not valid SQL.
	substitutes map[string]Expr
}

func newScope(cat *Catalog, refs ...*TableRef) (*scope, error) {
	sc := &scope{cat: cat}
	for _, ref := range refs {
		if err := sc.add(cat, ref); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func (sc *scope) add(cat *Catalog, ref *TableRef) error {
	meta, ok := cat.lookup(ref.Name)
	if !ok {
		return errs.New(errs.UnresolvedReference, "table %q not found in catalog", ref.Name)
	}
	for _, e := range sc.tables {
		if e.ref.RefName() == ref.RefName() {
			return errs.New(errs.InvalidExpression, "table reference %q used twice", ref.RefName())
		}
	}
	sc.tables = append(sc.tables, scopeEntry{ref: ref, meta: meta})
	return nil
}

func (sc *scope) table(name string) (scopeEntry, bool) {
	for _, e := range sc.tables {
		if e.ref.RefName() == name {
			return e, true
		}
	}
	return scopeEntry{}, false
}

// withAliases returns a scope that also accepts select-list aliases by
// name, as ORDER BY does.
func (sc *scope) withAliases(items []Expr) *scope {
	out := &scope{cat: sc.cat, tables: sc.tables, parent: sc.parent, aliases: make(map[string]SemanticType)}
	for _, it := range items {
		if alias, _ := aliased(it); alias != "" {
			out.aliases[alias] = it.ResultType()
		}
	}
	return out
}

// withSubstitutes returns a scope in which a select-list alias stands for
// the aliased expression. HAVING needs this: PostgreSQL and H2 do not accept
// output column names there.
func (sc *scope) withSubstitutes(items []Expr) *scope {
	out := &scope{cat: sc.cat, tables: sc.tables, parent: sc.parent, substitutes: make(map[string]Expr)}
	for _, it := range items {
		if alias, bare := aliased(it); alias != "" {
			out.substitutes[alias] = bare
		}
	}
	return out
}

// substitute returns the expression an unqualified alias stands for, unless
// a table in scope has a column of that name.
func (sc *scope) substitute(c *ColumnRef) Expr {
	if c.Table != "" || len(sc.substitutes) == 0 {
		return nil
	}
	sub, ok := sc.substitutes[c.Name]
	if !ok {
		return nil
	}
	for _, e := range sc.tables {
		if _, ok := e.meta.Column(c.Name); ok {
			return nil
		}
	}
	return sub
}

// aliased returns the alias of a select item and the item without it.
func aliased(e Expr) (string, Expr) {
	switch n := e.(type) {
	case *ColumnRef:
		if n.Alias != "" {
			cp := *n
			cp.Alias = ""
			return n.Alias, &cp
		}
	case *Function:
		if n.Alias != "" {
			cp := *n
			cp.Alias = ""
			return n.Alias, &cp
		}
	}
	return "", nil
}

func (sc *scope) column(c *ColumnRef) (*ColumnRef, error) {
	if c.IsStar() {
		if c.Table != "" {
			if _, ok := sc.table(c.Table); !ok {
				return nil, errs.New(errs.UnresolvedReference, "table %q is not in scope", c.Table)
			}
		}
		cp := *c
		cp.resolved = true
		return &cp, nil
	}

	if c.Table != "" {
		e, ok := sc.table(c.Table)
		if !ok {
			if sc.parent != nil {
				return sc.parent.column(c)
			}
			return nil, errs.New(errs.UnresolvedReference, "table %q is not in scope for column %q", c.Table, c.Name)
		}
		meta, ok := e.meta.Column(c.Name)
		if !ok {
			return nil, errs.New(errs.UnresolvedReference, "column %q not found in table %q", c.Name, e.meta.Name)
		}
		return c.withMeta(meta), nil
	}

	var (
		found ColumnMeta
		count int
	)
	for _, e := range sc.tables {
		if meta, ok := e.meta.Column(c.Name); ok {
			found = meta
			count++
		}
	}
	switch count {
	case 1:
		return c.withMeta(found), nil
	case 0:
		if t, ok := sc.aliases[c.Name]; ok {
			return c.withMeta(ColumnMeta{Name: c.Name, Type: t, Nullable: true}), nil
		}
		if sc.parent != nil {
			return sc.parent.column(c)
		}
		return nil, errs.New(errs.UnresolvedReference, "column %q not found", c.Name)
	default:
		return nil, errs.New(errs.UnresolvedReference, "column %q is ambiguous", c.Name)
	}
}

// predicate resolves e and requires it to be boolean.
func (sc *scope) predicate(e Expr, clause string) (Expr, error) {
	if e == nil {
		return nil, errs.New(errs.InvalidExpression, "%s predicate is nil", clause)
	}
	out, err := sc.expr(e)
	if err != nil {
		return nil, err
	}
	if t := out.ResultType(); t != TypeBool && t != TypeUnknown {
		return nil, errs.New(errs.TypeMismatch, "%s clause needs a predicate, got %s", clause, t)
	}
	return out, nil
}

func (sc *scope) exprs(in []Expr) ([]Expr, error) {
	out := make([]Expr, len(in))
	for i, e := range in {
		r, err := sc.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (sc *scope) expr(e Expr) (Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, errs.New(errs.InvalidExpression, "expression is nil")
	case *ColumnRef:
		if sub := sc.substitute(n); sub != nil {
			return sub, nil
		}
		return sc.column(n)
	case *Literal, *Param:
		return n, nil
	case *Function:
		return sc.function(n)
	case *BinaryExpr:
		return sc.binary(n)
	case *LogicalExpr:
		ops := make([]Expr, len(n.Operands))
		for i, op := range n.Operands {
			r, err := sc.expr(op)
			if err != nil {
				return nil, err
			}
			if t := r.ResultType(); t != TypeBool && t != TypeUnknown {
				return nil, errs.New(errs.TypeMismatch, "%s operand %d is %s, not a predicate", n.Operator, i+1, t)
			}
			ops[i] = r
		}
		return &LogicalExpr{Operator: n.Operator, Operands: ops}, nil
	case *UnaryExpr:
		op, err := sc.expr(n.Operand)
		if err != nil {
			return nil, err
		}
		if n.Operator == OpNot {
			if t := op.ResultType(); t != TypeBool && t != TypeUnknown {
				return nil, errs.New(errs.TypeMismatch, "NOT needs a predicate, got %s", t)
			}
		}
		return &UnaryExpr{Operator: n.Operator, Operand: op, IsPrefix: n.IsPrefix}, nil
	case *InExpr:
		return sc.in(n)
	case *BetweenExpr:
		x, err := sc.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		lo, err := sc.expr(n.Low)
		if err != nil {
			return nil, err
		}
		hi, err := sc.expr(n.High)
		if err != nil {
			return nil, err
		}
		for _, bound := range []Expr{lo, hi} {
			if err := comparable(x, bound); err != nil {
				return nil, err
			}
		}
		return &BetweenExpr{Expr: x, Low: lo, High: hi, Not: n.Not}, nil
	case *SubqueryExpr:
		return sc.subquery(n)
	}
	return nil, errs.New(errs.InvalidExpression, "unsupported expression %T", e)
}

// subquery resolves the embedded statement in a child of sc, so that it
// may refer to the enclosing tables.
func (sc *scope) subquery(n *SubqueryExpr) (Expr, error) {
	if n.err != nil {
		return nil, n.err
	}
	raw := n.raw
	if raw == nil {
		raw = n.Stmt
	}
	if raw == nil {
		return nil, errNilSubquery
	}
	cat := n.catalog
	if cat == nil {
		cat = sc.cat
	}
	stmt, err := resolveSelect(cat, raw, sc)
	if err != nil {
		return nil, err
	}
	if !n.Exists && len(stmt.Columns) != 1 {
		return nil, errs.New(errs.InvalidExpression, "scalar subquery must select exactly one column, got %d", len(stmt.Columns))
	}
	cp := *n
	cp.Stmt = stmt
	cp.raw = raw
	return &cp, nil
}

func (sc *scope) binary(n *BinaryExpr) (Expr, error) {
	left, err := sc.expr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := sc.expr(n.Right)
	if err != nil {
		return nil, err
	}

	switch {
	case isComparison(n.Operator):
		if err := comparable(left, right); err != nil {
			return nil, err
		}
	case isPattern(n.Operator):
		for _, side := range []Expr{left, right} {
			if t := side.ResultType(); t != TypeUnknown && !t.Textual() {
				return nil, errs.New(errs.TypeMismatch, "%s needs text operands, %s is %s", n.Operator, describe(side), t)
			}
		}
	default:
		return nil, errs.New(errs.InvalidExpression, "unknown operator %q", n.Operator)
	}
	return &BinaryExpr{Left: left, Operator: n.Operator, Right: right}, nil
}

func (sc *scope) in(n *InExpr) (Expr, error) {
	left, err := sc.expr(n.Left)
	if err != nil {
		return nil, err
	}
	out := &InExpr{Left: left, Not: n.Not}

	if n.Subquery != nil {
		sub, err := sc.expr(n.Subquery)
		if err != nil {
			return nil, err
		}
		if err := comparable(left, sub); err != nil {
			return nil, err
		}
		out.Subquery = sub.(*SubqueryExpr)
		return out, nil
	}

	if len(n.Values) == 0 {
		return nil, errs.New(errs.InvalidExpression, "IN needs at least one value")
	}
	out.Values, err = sc.exprs(n.Values)
	if err != nil {
		return nil, err
	}
	for _, v := range out.Values {
		if err := comparable(left, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (sc *scope) function(n *Function) (Expr, error) {
	args := make([]Expr, len(n.Args))
	for i, a := range n.Args {
		if c, ok := a.(*ColumnRef); ok && c.IsStar() && n.Name != "COUNT" {
			return nil, errs.New(errs.InvalidExpression, "%s(*) is not allowed", n.Name)
		}
		r, err := sc.expr(a)
		if err != nil {
			return nil, err
		}
		args[i] = r
	}

	switch n.Name {
	case "SUM", "AVG":
		if len(args) != 1 {
			return nil, errs.New(errs.InvalidExpression, "%s takes one argument", n.Name)
		}
		if t := args[0].ResultType(); t != TypeUnknown && !t.Numeric() {
			return nil, errs.New(errs.TypeMismatch, "%s needs a numeric argument, %s is %s", n.Name, describe(args[0]), t)
		}
	case "COUNT", "MIN", "MAX":
		if len(args) != 1 {
			return nil, errs.New(errs.InvalidExpression, "%s takes one argument", n.Name)
		}
	default:
		return nil, errs.New(errs.InvalidExpression, "unknown function %q", n.Name)
	}

	cp := *n
	cp.Args = args
	return &cp, nil
}

func comparable(a, b Expr) error {
	ta, tb := a.ResultType(), b.ResultType()
	if ta.ComparableWith(tb) {
		return nil
	}
	return errs.New(errs.TypeMismatch, "cannot compare %s (%s) with %s (%s)", describe(a), ta, describe(b), tb)
}

// assignable checks a value written to a column.
func assignable(col *ColumnRef, v Expr) error {
	if isNullValue(v) {
		if !col.Nullable() {
			return errs.New(errs.TypeMismatch, "column %q is not nullable", col.Name)
		}
		return nil
	}
	if t := v.ResultType(); !col.ResultType().ComparableWith(t) {
		return errs.New(errs.TypeMismatch, "cannot assign %s (%s) to column %q (%s)", describe(v), t, col.Name, col.ResultType())
	}
	return nil
}

func isNullValue(e Expr) bool {
	switch n := e.(type) {
	case *Literal:
		return n.Val == nil
	case *Param:
		return n.Bound && n.Val == nil
	}
	return false
}

func describe(e Expr) string {
	switch n := e.(type) {
	case *ColumnRef:
		if n.Table != "" {
			return "column " + n.Table + "." + n.Name
		}
		return "column " + n.Name
	case *Param:
		if n.Name != "" {
			return "parameter :" + n.Name
		}
		return "parameter"
	case *Literal:
		return "literal"
	case *Function:
		return n.Name + "()"
	case *SubqueryExpr:
		return "subquery"
	}
	return "expression"
}
