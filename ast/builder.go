package ast

import (
	"github.com/Konsultn-Engineering/linsql/errs"
)

// Builder starts statements whose references resolve against a catalog.
type Builder struct {
	catalog *Catalog
}

func NewBuilder(catalog *Catalog) *Builder {
	return &Builder{catalog: catalog}
}

func (b *Builder) Catalog() *Catalog { return b.catalog }

// SelectBuilder is an immutable SELECT under construction. Every method
// returns a new builder and leaves the receiver untouched.
//
// Structural errors (negative limit, nil predicate) stick: later calls
// return the builder unchanged. References are resolved against the tables
// in scope after every call, so a column of a table joined later resolves
// once the join is added; until then Err reports the resolution error.
type SelectBuilder struct {
	catalog *Catalog
	raw     *SelectStmt
	stmt    *SelectStmt
	err     error
	pending error
}

// Select starts a query. Items are column specs ("t.col AS alias") or
// expressions; no items selects *.
func (b *Builder) Select(items ...any) *SelectBuilder {
	sb := &SelectBuilder{catalog: b.catalog, raw: &SelectStmt{}}
	cols, err := selectItems(items)
	if err != nil {
		sb.err = err
		sb.stmt = sb.raw
		return sb
	}
	sb.raw.Columns = cols
	sb.resolve()
	return sb
}

func selectItems(items []any) ([]Expr, error) {
	if len(items) == 0 {
		return []Expr{Star("")}, nil
	}
	out := make([]Expr, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, parseColumn(v))
		case Expr:
			if v == nil {
				return nil, errs.New(errs.InvalidExpression, "select item is nil")
			}
			out = append(out, v)
		default:
			return nil, errs.New(errs.InvalidExpression, "select item %T is neither a column nor an expression", it)
		}
	}
	return out, nil
}

func (b *SelectBuilder) Type() NodeType { return NodeSelect }

func (b *SelectBuilder) Accept(v Visitor) error {
	if err := b.Err(); err != nil {
		return err
	}
	return b.stmt.Accept(v)
}

func (b *SelectBuilder) Fingerprint() uint64 { return b.Stmt().Fingerprint() }

func (b *SelectBuilder) Err() error {
	if b.err != nil {
		return b.err
	}
	return b.pending
}

// Stmt returns the resolved statement, or the statement as written while
// references are unresolved.
func (b *SelectBuilder) Stmt() *SelectStmt {
	if b.stmt != nil {
		return b.stmt
	}
	return b.raw
}

// derive applies mut to a copy of the statement as written and resolves
// the result.
func (b *SelectBuilder) derive(mut func(s *SelectStmt) error) *SelectBuilder {
	if b.err != nil {
		return b
	}
	nb := &SelectBuilder{catalog: b.catalog, raw: b.raw.clone()}
	if err := mut(nb.raw); err != nil {
		nb.err = err
		nb.stmt = nb.raw
		return nb
	}
	nb.resolve()
	return nb
}

func (b *SelectBuilder) resolve() {
	resolved, err := resolveSelect(b.catalog, b.raw, nil)
	if err != nil {
		b.pending = err
		return
	}
	b.stmt = resolved
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		s.From = parseTable(table)
		return nil
	})
}

func (b *SelectBuilder) Distinct() *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		s.Distinct = true
		return nil
	})
}

func (b *SelectBuilder) join(kind JoinType, table string, on Expr) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		if on == nil {
			return errs.New(errs.InvalidExpression, "%s %s needs an ON predicate", kind, table)
		}
		s.Joins = appendClip(s.Joins, &JoinClause{JoinType: kind, Table: parseTable(table), On: on})
		return nil
	})
}

func (b *SelectBuilder) Join(table string, on Expr) *SelectBuilder {
	return b.join(JoinInner, table, on)
}

func (b *SelectBuilder) LeftJoin(table string, on Expr) *SelectBuilder {
	return b.join(JoinLeft, table, on)
}

func (b *SelectBuilder) RightJoin(table string, on Expr) *SelectBuilder {
	return b.join(JoinRight, table, on)
}

func (b *SelectBuilder) FullJoin(table string, on Expr) *SelectBuilder {
	return b.join(JoinFull, table, on)
}

// Where adds a predicate; repeated calls are combined with AND.
func (b *SelectBuilder) Where(pred Expr) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		if pred == nil {
			return errs.New(errs.InvalidExpression, "WHERE predicate is nil")
		}
		s.Where = And(s.Where, pred)
		return nil
	})
}

func (b *SelectBuilder) GroupBy(items ...any) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		for _, it := range items {
			s.GroupBy = appendClip(s.GroupBy, column(it))
		}
		return nil
	})
}

func (b *SelectBuilder) Having(pred Expr) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		if pred == nil {
			return errs.New(errs.InvalidExpression, "HAVING predicate is nil")
		}
		s.Having = And(s.Having, pred)
		return nil
	})
}

func (b *SelectBuilder) OrderBy(item any, dir Direction) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		s.OrderBy = appendClip(s.OrderBy, &OrderByClause{Expr: column(item), Desc: dir == Desc})
		return nil
	})
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		lc, err := withLimit(s.Limit, &n, nil)
		s.Limit = lc
		return err
	})
}

func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	return b.derive(func(s *SelectStmt) error {
		lc, err := withLimit(s.Limit, nil, &n)
		s.Limit = lc
		return err
	})
}

func withLimit(cur *LimitClause, count, offset *int) (*LimitClause, error) {
	out := &LimitClause{}
	if cur != nil {
		*out = *cur
	}
	if count != nil {
		if *count < 0 {
			return nil, errs.New(errs.InvalidExpression, "limit must not be negative, got %d", *count)
		}
		n := *count
		out.Count = &n
	}
	if offset != nil {
		if *offset < 0 {
			return nil, errs.New(errs.InvalidExpression, "offset must not be negative, got %d", *offset)
		}
		n := *offset
		out.Offset = &n
	}
	return out, nil
}

// Limit wraps a SELECT node in a row limit. Any other root is rejected.
func Limit(node Node, n int) (Node, error) { return paginate(node, &n, nil) }

// Offset skips n rows of a SELECT node. Any other root is rejected.
func Offset(node Node, n int) (Node, error) { return paginate(node, nil, &n) }

func paginate(node Node, count, offset *int) (Node, error) {
	switch s := node.(type) {
	case *SelectBuilder:
		var out *SelectBuilder
		if count != nil {
			out = s.Limit(*count)
		} else {
			out = s.Offset(*offset)
		}
		if err := out.Err(); err != nil {
			return nil, err
		}
		return out, nil
	case *SelectStmt:
		lc, err := withLimit(s.Limit, count, offset)
		if err != nil {
			return nil, err
		}
		cp := s.clone()
		cp.Limit = lc
		return cp, nil
	case nil:
		return nil, errs.New(errs.InvalidExpression, "cannot paginate a nil node")
	}
	return nil, errs.New(errs.InvalidExpression, "limit and offset apply only to SELECT, got %T", node)
}

// resolveSelect binds the references of s. parent is the enclosing scope
// of a subquery, nil for a top-level statement.
func resolveSelect(cat *Catalog, s *SelectStmt, parent *scope) (*SelectStmt, error) {
	var refs []*TableRef
	if s.From != nil {
		refs = append(refs, s.From)
	}
	for _, j := range s.Joins {
		refs = append(refs, j.Table)
	}
	sc, err := newScope(cat, refs...)
	if err != nil {
		return nil, err
	}
	sc.parent = parent

	out := s.clone()
	if out.Columns, err = sc.exprs(s.Columns); err != nil {
		return nil, err
	}

	if len(s.Joins) > 0 {
		out.Joins = make([]*JoinClause, len(s.Joins))
		for i, j := range s.Joins {
			on, err := sc.predicate(j.On, "ON")
			if err != nil {
				return nil, err
			}
			out.Joins[i] = &JoinClause{JoinType: j.JoinType, Table: j.Table, On: on}
		}
	}

	if s.Where != nil {
		if out.Where, err = sc.predicate(s.Where, "WHERE"); err != nil {
			return nil, err
		}
	}
	if out.GroupBy, err = sc.exprs(s.GroupBy); err != nil {
		return nil, err
	}

	if s.Having != nil {
		if out.Having, err = sc.withSubstitutes(out.Columns).predicate(s.Having, "HAVING"); err != nil {
			return nil, err
		}
	}
	aliased := sc.withAliases(out.Columns)
	if len(s.OrderBy) > 0 {
		out.OrderBy = make([]*OrderByClause, len(s.OrderBy))
		for i, o := range s.OrderBy {
			e, err := aliased.expr(o.Expr)
			if err != nil {
				return nil, err
			}
			out.OrderBy[i] = &OrderByClause{Expr: e, Desc: o.Desc}
		}
	}
	return out, nil
}
