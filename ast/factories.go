package ast

// Col parses "column", "table.column" or "table.column AS alias".
func Col(spec string) *ColumnRef { return parseColumn(spec) }

// Star selects every column, optionally of one table.
func Star(table string) *ColumnRef { return &ColumnRef{Table: table, Name: "*"} }

// Lit renders v inline. Caller-supplied data should go through Value.
func Lit(v any) *Literal { return &Literal{Val: v} }

func Null() *Literal { return &Literal{} }

// Value binds v as a positional parameter.
func Value(v any) *Param { return &Param{Val: v, Bound: true} }

// NamedParam declares a parameter whose value is supplied after compilation.
func NamedParam(name string, t SemanticType) *Param {
	return &Param{Name: name, Declared: t}
}

// Assignment pairs a column with the value written to it.
type Assignment struct {
	Column string
	Value  Expr
}

func Assign(column string, v any) Assignment {
	return Assignment{Column: column, Value: operand(v)}
}

// column turns a string into a column reference; anything else is an operand.
func column(x any) Expr {
	if s, ok := x.(string); ok {
		return parseColumn(s)
	}
	return operand(x)
}

// operand keeps expressions as they are and binds every other value.
func operand(x any) Expr {
	if e, ok := x.(Expr); ok && e != nil {
		return e
	}
	return Value(x)
}

func binary(op string, left, right any) *BinaryExpr {
	return &BinaryExpr{Left: column(left), Operator: op, Right: operand(right)}
}

func Eq(left, right any) *BinaryExpr { return binary(OpEqual, left, right) }
func Ne(left, right any) *BinaryExpr { return binary(OpNotEqual, left, right) }
func Lt(left, right any) *BinaryExpr { return binary(OpLessThan, left, right) }
func Le(left, right any) *BinaryExpr { return binary(OpLessThanOrEqual, left, right) }
func Gt(left, right any) *BinaryExpr { return binary(OpGreaterThan, left, right) }
func Ge(left, right any) *BinaryExpr { return binary(OpGreaterThanOrEqual, left, right) }

func Like(left, pattern any) *BinaryExpr  { return binary(OpLike, left, pattern) }
func ILike(left, pattern any) *BinaryExpr { return binary(OpILike, left, pattern) }

func In(left any, values ...any) *InExpr {
	in := &InExpr{Left: column(left), Values: make([]Expr, len(values))}
	for i, v := range values {
		in.Values[i] = operand(v)
	}
	return in
}

func NotIn(left any, values ...any) *InExpr {
	in := In(left, values...)
	in.Not = true
	return in
}

// InSelect tests membership in the single column returned by sub.
func InSelect(left any, sub *SelectBuilder) *InExpr {
	return &InExpr{Left: column(left), Subquery: subquery(sub, false, false)}
}

func Between(x, low, high any) *BetweenExpr {
	return &BetweenExpr{Expr: column(x), Low: operand(low), High: operand(high)}
}

func NotBetween(x, low, high any) *BetweenExpr {
	b := Between(x, low, high)
	b.Not = true
	return b
}

func IsNull(x any) *UnaryExpr {
	return &UnaryExpr{Operator: OpIsNull, Operand: column(x)}
}

func IsNotNull(x any) *UnaryExpr {
	return &UnaryExpr{Operator: OpIsNotNull, Operand: column(x)}
}

func Not(p Expr) *UnaryExpr {
	return &UnaryExpr{Operator: OpNot, Operand: p, IsPrefix: true}
}

// And joins predicates; nested ANDs are flattened. A single predicate is
// returned unchanged and no predicates yield nil.
func And(preds ...Expr) Expr { return logical(OpAnd, preds) }

func Or(preds ...Expr) Expr { return logical(OpOr, preds) }

func logical(op string, preds []Expr) Expr {
	var flat []Expr
	for _, p := range preds {
		if p == nil {
			continue
		}
		if l, ok := p.(*LogicalExpr); ok && l.Operator == op {
			flat = append(flat, l.Operands...)
			continue
		}
		flat = append(flat, p)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &LogicalExpr{Operator: op, Operands: flat}
}

func Exists(sub *SelectBuilder) *SubqueryExpr    { return subquery(sub, true, false) }
func NotExists(sub *SelectBuilder) *SubqueryExpr { return subquery(sub, true, true) }

// Subquery embeds sub as a scalar value.
func Subquery(sub *SelectBuilder) *SubqueryExpr { return subquery(sub, false, false) }

func subquery(sub *SelectBuilder, exists, not bool) *SubqueryExpr {
	if sub == nil {
		return &SubqueryExpr{Exists: exists, Not: not, err: errNilSubquery}
	}
	return &SubqueryExpr{
		Stmt:    sub.Stmt(),
		Exists:  exists,
		Not:     not,
		raw:     sub.raw,
		catalog: sub.catalog,
		err:     sub.err,
	}
}

func aggregate(name string, x any) *Function {
	if s, ok := x.(string); ok && s == "*" {
		return &Function{Name: name, Args: []Expr{Star("")}}
	}
	return &Function{Name: name, Args: []Expr{column(x)}}
}

func Count(x any) *Function { return aggregate("COUNT", x) }
func Sum(x any) *Function   { return aggregate("SUM", x) }
func Avg(x any) *Function   { return aggregate("AVG", x) }
func Min(x any) *Function   { return aggregate("MIN", x) }
func Max(x any) *Function   { return aggregate("MAX", x) }

func CountDistinct(x any) *Function {
	f := aggregate("COUNT", x)
	f.Distinct = true
	return f
}
