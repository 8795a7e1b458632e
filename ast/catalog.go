package ast

import (
	"slices"

	"github.com/Konsultn-Engineering/linsql/errs"
)

// ColumnMeta describes one column of a catalog table.
type ColumnMeta struct {
	Name       string
	Type       SemanticType
	Nullable   bool
	PrimaryKey bool
}

// TableMeta describes a table known to the builder.
type TableMeta struct {
	Name    string
	Columns []ColumnMeta
}

func (t TableMeta) Column(name string) (ColumnMeta, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMeta{}, false
}

// PrimaryKey returns the names of the key columns in declaration order.
func (t TableMeta) PrimaryKey() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Catalog is the read-only set of tables column references resolve against.
type Catalog struct {
	tables map[string]TableMeta
	order  []string
}

// NewCatalog copies the given tables into a catalog. Duplicate table or
// column names are rejected.
func NewCatalog(tables ...TableMeta) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]TableMeta, len(tables))}
	for _, t := range tables {
		if t.Name == "" {
			return nil, errs.New(errs.InvalidExpression, "table name is empty")
		}
		if _, dup := c.tables[t.Name]; dup {
			return nil, errs.New(errs.InvalidExpression, "table %q declared twice", t.Name)
		}
		seen := make(map[string]struct{}, len(t.Columns))
		for _, col := range t.Columns {
			if _, dup := seen[col.Name]; dup {
				return nil, errs.New(errs.InvalidExpression, "column %q declared twice in table %q", col.Name, t.Name)
			}
			seen[col.Name] = struct{}{}
		}
		c.tables[t.Name] = t.clone()
		c.order = append(c.order, t.Name)
	}
	return c, nil
}

// MustCatalog is NewCatalog for package-level catalogs; it panics on error.
func MustCatalog(tables ...TableMeta) *Catalog {
	c, err := NewCatalog(tables...)
	if err != nil {
		panic(err)
	}
	return c
}

// Table returns a copy of the named table's metadata.
func (c *Catalog) Table(name string) (TableMeta, bool) {
	t, ok := c.lookup(name)
	if !ok {
		return TableMeta{}, false
	}
	return t.clone(), true
}

// Tables returns copies of the tables in the order they were declared.
func (c *Catalog) Tables() []TableMeta {
	if c == nil {
		return nil
	}
	out := make([]TableMeta, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tables[name].clone())
	}
	return out
}

// lookup returns the stored metadata without copying; callers in this
// package only read it.
func (c *Catalog) lookup(name string) (TableMeta, bool) {
	if c == nil {
		return TableMeta{}, false
	}
	t, ok := c.tables[name]
	return t, ok
}

func (t TableMeta) clone() TableMeta {
	t.Columns = slices.Clone(t.Columns)
	return t
}
