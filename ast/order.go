package ast

import (
	"hash/fnv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type OrderByClause struct {
	Expr Expr
	Desc bool
}

func (o *OrderByClause) Type() NodeType         { return NodeOrderBy }
func (o *OrderByClause) Accept(v Visitor) error { return v.VisitOrderByClause(o) }
func (o *OrderByClause) Fingerprint() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("order:"))
	if o.Expr != nil {
		_, _ = h.Write(utils.U64ToBytes(o.Expr.Fingerprint()))
	}
	if o.Desc {
		_, _ = h.Write([]byte("desc"))
	}
	return h.Sum64()
}
