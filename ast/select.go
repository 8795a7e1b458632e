package ast

import (
	"hash/fnv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

type SelectStmt struct {
	Distinct bool
	Columns  []Expr
	From     *TableRef
	Joins    []*JoinClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderByClause
	Limit    *LimitClause
}

func (s *SelectStmt) Type() NodeType         { return NodeSelect }
func (s *SelectStmt) Accept(v Visitor) error { return v.VisitSelect(s) }
func (s *SelectStmt) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte("select:"))
	if s.Distinct {
		h.Write([]byte("distinct:"))
	}
	if s.From != nil {
		h.Write(utils.U64ToBytes(s.From.Fingerprint()))
	}
	for _, col := range s.Columns {
		h.Write(utils.U64ToBytes(col.Fingerprint()))
	}
	for _, j := range s.Joins {
		h.Write(utils.U64ToBytes(j.Fingerprint()))
	}
	if s.Where != nil {
		h.Write([]byte("where:"))
		h.Write(utils.U64ToBytes(s.Where.Fingerprint()))
	}
	for _, g := range s.GroupBy {
		h.Write([]byte("group:"))
		h.Write(utils.U64ToBytes(g.Fingerprint()))
	}
	if s.Having != nil {
		h.Write([]byte("having:"))
		h.Write(utils.U64ToBytes(s.Having.Fingerprint()))
	}
	for _, o := range s.OrderBy {
		h.Write(utils.U64ToBytes(o.Fingerprint()))
	}
	if s.Limit != nil {
		h.Write(utils.U64ToBytes(s.Limit.Fingerprint()))
	}
	return h.Sum64()
}

// clone copies the statement header; slices are shared until appended to
// through appendClip.
func (s *SelectStmt) clone() *SelectStmt {
	cp := *s
	return &cp
}

// appendClip appends to a copy of s, never to its backing array.
func appendClip[E any](s []E, e ...E) []E {
	out := make([]E, 0, len(s)+len(e))
	out = append(out, s...)
	return append(out, e...)
}
