package ast

import "github.com/Konsultn-Engineering/linsql/utils"

// Function is an aggregate call: COUNT, SUM, AVG, MIN or MAX.
type Function struct {
	Name     string
	Args     []Expr
	Distinct bool
	Alias    string
}

func (f *Function) Type() NodeType         { return NodeFunction }
func (f *Function) Accept(v Visitor) error { return v.VisitFunction(f) }

func (f *Function) ResultType() SemanticType {
	switch f.Name {
	case "COUNT":
		return TypeInt
	case "AVG":
		return TypeFloat
	}
	if len(f.Args) == 1 {
		return f.Args[0].ResultType()
	}
	return TypeUnknown
}

// As returns a copy of the call carrying a select-list alias.
func (f *Function) As(alias string) *Function {
	cp := *f
	cp.Alias = alias
	return &cp
}

func (f *Function) Fingerprint() uint64 {
	tag := "fn:" + f.Name + " as " + f.Alias
	if f.Distinct {
		tag += ":distinct"
	}
	return utils.Chain(tag, fingerprints(f.Args)...)
}
