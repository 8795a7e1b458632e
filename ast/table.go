package ast

import "github.com/Konsultn-Engineering/linsql/utils"

type TableRef struct {
	Schema string
	Name   string
	Alias  string
}

func NewTable(schema, name, alias string) *TableRef {
	return &TableRef{Schema: schema, Name: name, Alias: alias}
}

func (t *TableRef) Type() NodeType         { return NodeTable }
func (t *TableRef) Accept(v Visitor) error { return v.VisitTable(t) }
func (t *TableRef) Fingerprint() uint64 {
	return utils.FingerprintString("table:" + t.Schema + "." + t.Name + " as " + t.Alias)
}

// RefName is the name other clauses use to qualify this table's columns.
func (t *TableRef) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// parseTable accepts "name", "name alias", "name AS alias" and "schema.name".
func parseTable(spec string) *TableRef {
	c := parseColumn(spec)
	name, alias := c.Name, c.Alias
	if alias == "" {
		if fields := splitFields(name); len(fields) == 2 {
			name, alias = fields[0], fields[1]
		}
	}
	return &TableRef{Schema: c.Table, Name: name, Alias: alias}
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
