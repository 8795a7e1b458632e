package ast

import (
	"strconv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

// Literal is a constant rendered inline into SQL text by the dialect.
// Use it only for trusted constants; caller data belongs in a Param.
type Literal struct {
	Val any
}

func (l *Literal) Type() NodeType           { return NodeLiteral }
func (l *Literal) Accept(v Visitor) error   { return v.VisitLiteral(l) }
func (l *Literal) ResultType() SemanticType { return InferType(l.Val) }
func (l *Literal) Fingerprint() uint64 {
	return utils.Mix64(utils.U64("lit"), utils.FingerprintValue(l.Val))
}

// Param is a bind parameter. A bound Param carries its value; a named Param
// declares a type and receives its value after compilation.
type Param struct {
	Name     string
	Val      any
	Bound    bool
	Declared SemanticType
}

func (p *Param) Type() NodeType         { return NodeParam }
func (p *Param) Accept(v Visitor) error { return v.VisitParam(p) }

func (p *Param) ResultType() SemanticType {
	if p.Bound {
		return InferType(p.Val)
	}
	return p.Declared
}

func (p *Param) Fingerprint() uint64 {
	if !p.Bound {
		return utils.FingerprintString("param:" + p.Name + ":" + strconv.Itoa(int(p.Declared)))
	}
	return utils.Mix64(utils.U64("param:"+p.Name), utils.FingerprintValue(p.Val))
}
