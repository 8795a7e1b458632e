package ast

import (
	"slices"

	"github.com/Konsultn-Engineering/linsql/errs"
)

// tableScope resolves a single target table for INSERT, UPDATE, DELETE and
// CREATE TABLE.
func (b *Builder) tableScope(table string) (*TableRef, *scope, error) {
	ref := parseTable(table)
	sc, err := newScope(b.catalog, ref)
	if err != nil {
		return ref, nil, err
	}
	return ref, sc, nil
}

// InsertBuilder is an immutable INSERT under construction.
type InsertBuilder struct {
	scope *scope
	stmt  *InsertStmt
	err   error
}

func (b *Builder) Insert(table string) *InsertBuilder {
	ref, sc, err := b.tableScope(table)
	return &InsertBuilder{scope: sc, stmt: &InsertStmt{Table: ref}, err: err}
}

func (b *InsertBuilder) Type() NodeType { return NodeInsert }

func (b *InsertBuilder) Accept(v Visitor) error {
	if err := b.Err(); err != nil {
		return err
	}
	return b.stmt.Accept(v)
}

func (b *InsertBuilder) Fingerprint() uint64 { return b.stmt.Fingerprint() }
func (b *InsertBuilder) Stmt() *InsertStmt   { return b.stmt }
func (b *InsertBuilder) HasReturning() bool  { return b.stmt.HasReturning() }

func (b *InsertBuilder) Err() error {
	if b.err != nil {
		return b.err
	}
	if len(b.stmt.Rows) == 0 {
		return errs.New(errs.InvalidExpression, "insert into %q has no values", b.stmt.Table.Name)
	}
	return nil
}

func (b *InsertBuilder) derive(mut func(s *InsertStmt) error) *InsertBuilder {
	if b.err != nil {
		return b
	}
	cp := *b.stmt
	nb := &InsertBuilder{scope: b.scope, stmt: &cp}
	if err := mut(nb.stmt); err != nil {
		nb.err = err
	}
	return nb
}

// Values adds one row. The first row fixes the column list; later rows must
// assign the same columns, in any order.
func (b *InsertBuilder) Values(assigns ...Assignment) *InsertBuilder {
	return b.derive(func(s *InsertStmt) error {
		cols, vals, err := b.scope.assignments(assigns)
		if err != nil {
			return err
		}

		if len(s.Columns) == 0 {
			s.Columns = cols
			s.Rows = appendClip(s.Rows, vals)
			return nil
		}

		if len(cols) != len(s.Columns) {
			return errs.New(errs.InvalidExpression, "row %d assigns %d columns, expected %d", len(s.Rows), len(cols), len(s.Columns))
		}
		row := make([]Expr, len(s.Columns))
		for i, c := range cols {
			idx := indexOfColumn(s.Columns, c.Name)
			if idx < 0 {
				return errs.New(errs.InvalidExpression, "row %d assigns column %q absent from the first row", len(s.Rows), c.Name)
			}
			row[idx] = vals[i]
		}
		s.Rows = appendClip(s.Rows, row)
		return nil
	})
}

// OnConflict starts an upsert keyed by cols, or by the primary key when no
// columns are given.
func (b *InsertBuilder) OnConflict(cols ...string) *ConflictBuilder {
	cb := &ConflictBuilder{insert: b}
	if b.err != nil {
		return cb
	}
	if len(cols) == 0 {
		cols = b.scope.tables[0].meta.PrimaryKey()
	}
	if len(cols) == 0 {
		cb.err = errs.New(errs.InvalidExpression, "table %q has no primary key; name the conflict columns", b.stmt.Table.Name)
		return cb
	}
	cb.conflict, cb.err = b.scope.columnList(cols)
	return cb
}

func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	return b.derive(func(s *InsertStmt) error {
		refs, err := b.scope.columnList(cols)
		if err != nil {
			return err
		}
		for _, r := range refs {
			s.Returning = appendClip(s.Returning, Expr(r))
		}
		return nil
	})
}

// ConflictBuilder picks the action of an upsert.
type ConflictBuilder struct {
	insert   *InsertBuilder
	conflict []*ColumnRef
	err      error
}

// DoUpdate overwrites cols with the proposed row. With no columns every
// inserted non-key column is updated.
func (c *ConflictBuilder) DoUpdate(cols ...string) *InsertBuilder {
	return c.finish(func(u *UpsertClause) error {
		refs, err := c.insert.scope.columnList(cols)
		if err != nil {
			return err
		}
		u.Update = refs
		return nil
	})
}

func (c *ConflictBuilder) DoNothing() *InsertBuilder {
	return c.finish(func(u *UpsertClause) error {
		u.DoNothing = true
		return nil
	})
}

func (c *ConflictBuilder) finish(set func(u *UpsertClause) error) *InsertBuilder {
	if c.err != nil {
		return &InsertBuilder{scope: c.insert.scope, stmt: c.insert.stmt, err: c.err}
	}
	return c.insert.derive(func(s *InsertStmt) error {
		u := &UpsertClause{Conflict: c.conflict}
		if err := set(u); err != nil {
			return err
		}
		s.Upsert = u
		return nil
	})
}

// UpdateColumns returns the columns an upsert overwrites: the explicit list,
// or every inserted column outside the conflict key.
func (s *InsertStmt) UpdateColumns() []*ColumnRef {
	if s.Upsert == nil || s.Upsert.DoNothing {
		return nil
	}
	if len(s.Upsert.Update) > 0 {
		return s.Upsert.Update
	}
	var out []*ColumnRef
	for _, c := range s.Columns {
		if indexOfColumn(s.Upsert.Conflict, c.Name) < 0 {
			out = append(out, c)
		}
	}
	return out
}

// UpdateBuilder is an immutable UPDATE under construction.
type UpdateBuilder struct {
	scope *scope
	stmt  *UpdateStmt
	err   error
}

func (b *Builder) Update(table string) *UpdateBuilder {
	ref, sc, err := b.tableScope(table)
	return &UpdateBuilder{scope: sc, stmt: &UpdateStmt{Table: ref}, err: err}
}

func (b *UpdateBuilder) Type() NodeType { return NodeUpdate }

func (b *UpdateBuilder) Accept(v Visitor) error {
	if err := b.Err(); err != nil {
		return err
	}
	return b.stmt.Accept(v)
}

func (b *UpdateBuilder) Fingerprint() uint64 { return b.stmt.Fingerprint() }
func (b *UpdateBuilder) Stmt() *UpdateStmt   { return b.stmt }

func (b *UpdateBuilder) Err() error {
	if b.err != nil {
		return b.err
	}
	if len(b.stmt.Set) == 0 {
		return errs.New(errs.InvalidExpression, "update of %q sets no columns", b.stmt.Table.Name)
	}
	return nil
}

func (b *UpdateBuilder) derive(mut func(s *UpdateStmt) error) *UpdateBuilder {
	if b.err != nil {
		return b
	}
	cp := *b.stmt
	nb := &UpdateBuilder{scope: b.scope, stmt: &cp}
	if err := mut(nb.stmt); err != nil {
		nb.err = err
	}
	return nb
}

func (b *UpdateBuilder) Set(assigns ...Assignment) *UpdateBuilder {
	return b.derive(func(s *UpdateStmt) error {
		cols, vals, err := b.scope.assignments(assigns)
		if err != nil {
			return err
		}
		for i, c := range cols {
			for _, existing := range s.Set {
				if existing.Column.Name == c.Name {
					return errs.New(errs.InvalidExpression, "column %q is set twice", c.Name)
				}
			}
			s.Set = appendClip(s.Set, SetClause{Column: c, Value: vals[i]})
		}
		return nil
	})
}

func (b *UpdateBuilder) Where(pred Expr) *UpdateBuilder {
	return b.derive(func(s *UpdateStmt) error {
		p, err := b.scope.predicate(pred, "WHERE")
		if err != nil {
			return err
		}
		s.Where = And(s.Where, p)
		return nil
	})
}

// DeleteBuilder is an immutable DELETE under construction.
type DeleteBuilder struct {
	scope *scope
	stmt  *DeleteStmt
	err   error
}

func (b *Builder) Delete(table string) *DeleteBuilder {
	ref, sc, err := b.tableScope(table)
	return &DeleteBuilder{scope: sc, stmt: &DeleteStmt{Table: ref}, err: err}
}

func (b *DeleteBuilder) Type() NodeType { return NodeDelete }

func (b *DeleteBuilder) Accept(v Visitor) error {
	if b.err != nil {
		return b.err
	}
	return b.stmt.Accept(v)
}

func (b *DeleteBuilder) Fingerprint() uint64 { return b.stmt.Fingerprint() }
func (b *DeleteBuilder) Stmt() *DeleteStmt   { return b.stmt }
func (b *DeleteBuilder) Err() error          { return b.err }

func (b *DeleteBuilder) Where(pred Expr) *DeleteBuilder {
	if b.err != nil {
		return b
	}
	cp := *b.stmt
	nb := &DeleteBuilder{scope: b.scope, stmt: &cp}
	p, err := b.scope.predicate(pred, "WHERE")
	if err != nil {
		nb.err = err
		return nb
	}
	nb.stmt.Where = And(cp.Where, p)
	return nb
}

// CreateTableBuilder renders the DDL of a catalog table.
type CreateTableBuilder struct {
	stmt *CreateTableStmt
	err  error
}

func (b *Builder) CreateTable(table string) *CreateTableBuilder {
	ref, sc, err := b.tableScope(table)
	stmt := &CreateTableStmt{Table: ref}
	if err == nil {
		stmt.Columns = slices.Clone(sc.tables[0].meta.Columns)
		if len(stmt.Columns) == 0 {
			err = errs.New(errs.InvalidExpression, "table %q has no columns", ref.Name)
		}
	}
	return &CreateTableBuilder{stmt: stmt, err: err}
}

func (b *CreateTableBuilder) Type() NodeType { return NodeCreateTable }

func (b *CreateTableBuilder) Accept(v Visitor) error {
	if b.err != nil {
		return b.err
	}
	return b.stmt.Accept(v)
}

func (b *CreateTableBuilder) Fingerprint() uint64     { return b.stmt.Fingerprint() }
func (b *CreateTableBuilder) Stmt() *CreateTableStmt { return b.stmt }
func (b *CreateTableBuilder) Err() error             { return b.err }

func (b *CreateTableBuilder) IfNotExists() *CreateTableBuilder {
	if b.err != nil {
		return b
	}
	cp := *b.stmt
	cp.IfNotExists = true
	return &CreateTableBuilder{stmt: &cp}
}

// assignments resolves target columns and type-checks their values.
func (sc *scope) assignments(assigns []Assignment) ([]*ColumnRef, []Expr, error) {
	if len(assigns) == 0 {
		return nil, nil, errs.New(errs.InvalidExpression, "no columns assigned")
	}
	cols := make([]*ColumnRef, len(assigns))
	vals := make([]Expr, len(assigns))
	for i, a := range assigns {
		col, err := sc.column(parseColumn(a.Column))
		if err != nil {
			return nil, nil, err
		}
		if col.IsStar() {
			return nil, nil, errs.New(errs.InvalidExpression, "cannot assign to *")
		}
		if indexOfColumn(cols[:i], col.Name) >= 0 {
			return nil, nil, errs.New(errs.InvalidExpression, "column %q assigned twice", col.Name)
		}
		if a.Value == nil {
			return nil, nil, errs.New(errs.InvalidExpression, "value for column %q is nil", col.Name)
		}
		val, err := sc.expr(a.Value)
		if err != nil {
			return nil, nil, err
		}
		if err := assignable(col, val); err != nil {
			return nil, nil, err
		}
		cols[i], vals[i] = col, val
	}
	return cols, vals, nil
}

func (sc *scope) columnList(names []string) ([]*ColumnRef, error) {
	out := make([]*ColumnRef, 0, len(names))
	for _, n := range names {
		c, err := sc.column(parseColumn(n))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func indexOfColumn(cols []*ColumnRef, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}
