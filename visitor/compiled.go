package visitor

import (
	"slices"
	"strings"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/errs"
)

// Slot is one bind parameter of a compiled statement, in placeholder order.
type Slot struct {
	Name  string
	Type  ast.SemanticType
	Value any
	Bound bool
}

// CompiledStatement is SQL text plus its ordered parameters for one dialect.
// It never changes after compilation; Bind and WithArgs return copies.
type CompiledStatement struct {
	sql         string
	slots       []Slot
	dialect     string
	returnsRows bool
	fingerprint uint64
}

func (c *CompiledStatement) SQL() string         { return c.sql }
func (c *CompiledStatement) Dialect() string     { return c.dialect }
func (c *CompiledStatement) ReturnsRows() bool   { return c.returnsRows }
func (c *CompiledStatement) Fingerprint() uint64 { return c.fingerprint }
func (c *CompiledStatement) String() string      { return c.sql }

// Params returns a copy of the parameter slots.
func (c *CompiledStatement) Params() []Slot { return slices.Clone(c.slots) }

// Args returns the parameter values in placeholder order. It fails if a
// named parameter has not been bound.
func (c *CompiledStatement) Args() ([]any, error) {
	args := make([]any, len(c.slots))
	var missing []string
	for i, s := range c.slots {
		if !s.Bound {
			missing = append(missing, s.Name)
			continue
		}
		args[i] = s.Value
	}
	if len(missing) > 0 {
		return nil, errs.New(errs.InvalidExpression, "unbound parameters: %s", strings.Join(missing, ", "))
	}
	return args, nil
}

// Bind supplies values for named parameters by name.
func (c *CompiledStatement) Bind(values map[string]any) (*CompiledStatement, error) {
	out := c.copy()
	used := make(map[string]bool, len(values))
	for i, s := range out.slots {
		if s.Name == "" {
			continue
		}
		v, ok := values[s.Name]
		if !ok {
			continue
		}
		if err := checkSlot(i, s, v); err != nil {
			return nil, err
		}
		out.slots[i].Value = v
		out.slots[i].Bound = true
		used[s.Name] = true
	}
	for name := range values {
		if !used[name] {
			return nil, errs.New(errs.InvalidExpression, "statement has no parameter :%s", name)
		}
	}
	return out, nil
}

// WithArgs replaces every parameter value positionally.
func (c *CompiledStatement) WithArgs(values ...any) (*CompiledStatement, error) {
	if len(values) != len(c.slots) {
		return nil, errs.New(errs.InvalidExpression, "statement takes %d parameters, got %d", len(c.slots), len(values))
	}
	out := c.copy()
	for i, v := range values {
		if err := checkSlot(i, out.slots[i], v); err != nil {
			return nil, err
		}
		out.slots[i].Value = v
		out.slots[i].Bound = true
	}
	return out, nil
}

func (c *CompiledStatement) copy() *CompiledStatement {
	cp := *c
	cp.slots = slices.Clone(c.slots)
	return &cp
}

// checkSlot rejects values whose type cannot stand in for the slot's. This
// holds for slots bound at construction too: their type is that of the
// value they were built with.
func checkSlot(i int, s Slot, v any) error {
	if t := ast.InferType(v); !s.Type.ComparableWith(t) {
		if s.Name == "" {
			return errs.New(errs.TypeMismatch, "parameter %d is %s, got %s", i+1, s.Type, t)
		}
		return errs.New(errs.TypeMismatch, "parameter :%s is %s, got %s", s.Name, s.Type, t)
	}
	return nil
}
