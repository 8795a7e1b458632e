package ast

import (
	"strings"

	"github.com/Konsultn-Engineering/linsql/utils"
)

// ColumnRef names a column, optionally qualified by a table name or alias.
// Name "*" selects every column. A reference is resolved once a statement
// binds it to a catalog column; only resolved references compile.
type ColumnRef struct {
	Table string
	Name  string
	Alias string

	typ      SemanticType
	nullable bool
	resolved bool
}

func NewColumn(table, name, alias string) *ColumnRef {
	return &ColumnRef{Table: table, Name: name, Alias: alias}
}

func (c *ColumnRef) Type() NodeType           { return NodeColumn }
func (c *ColumnRef) Accept(v Visitor) error   { return v.VisitColumn(c) }
func (c *ColumnRef) ResultType() SemanticType { return c.typ }
func (c *ColumnRef) Resolved() bool           { return c.resolved }
func (c *ColumnRef) Nullable() bool           { return c.nullable }
func (c *ColumnRef) IsStar() bool             { return c.Name == "*" }

// As returns a copy of the reference carrying a select-list alias.
func (c *ColumnRef) As(alias string) *ColumnRef {
	cp := *c
	cp.Alias = alias
	return &cp
}

func (c *ColumnRef) Fingerprint() uint64 {
	s := "col:" + c.Table + "." + c.Name + " as " + c.Alias
	return utils.FingerprintString(s)
}

func (c *ColumnRef) withMeta(meta ColumnMeta) *ColumnRef {
	cp := *c
	cp.typ = meta.Type
	cp.nullable = meta.Nullable
	cp.resolved = true
	return &cp
}

// parseColumn splits "table.column AS alias" into its parts.
func parseColumn(spec string) *ColumnRef {
	spec = strings.TrimSpace(spec)
	var table, name, alias string

	if asIdx := strings.Index(strings.ToUpper(spec), " AS "); asIdx > 0 {
		alias = strings.TrimSpace(spec[asIdx+4:])
		spec = strings.TrimSpace(spec[:asIdx])
	}

	if dotIdx := strings.LastIndex(spec, "."); dotIdx > 0 {
		table = spec[:dotIdx]
		name = spec[dotIdx+1:]
	} else {
		name = spec
	}

	return &ColumnRef{Table: table, Name: name, Alias: alias}
}
